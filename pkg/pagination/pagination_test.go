package pagination

import (
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-4))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+1))
	assert.Equal(t, 10, NormalizeLimit(10))
}

func TestCursorRoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 30, 0, 123, time.FixedZone("ART", -3*3600))

	decoded, err := ParseCursor(EncodeCursor(Cursor{CreatedAt: created, ID: 981}))
	require.NoError(t, err)
	require.NotNil(t, decoded)
	assert.True(t, decoded.CreatedAt.Equal(created))
	assert.Equal(t, time.UTC, decoded.CreatedAt.Location())
	assert.Equal(t, int64(981), decoded.ID)
}

func TestParseCursor(t *testing.T) {
	blank, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, blank)

	for _, token := range []string{
		"!!!",
		base64.RawURLEncoding.EncodeToString([]byte("not json")),
		base64.RawURLEncoding.EncodeToString([]byte(`{"id":4}`)),
		base64.RawURLEncoding.EncodeToString([]byte(`{"t":"2026-03-01T00:00:00Z","id":0}`)),
	} {
		_, err := ParseCursor(token)
		assert.Error(t, err, token)
	}
}

func TestFetchWalksEveryActiveRowOnce(t *testing.T) {
	conn := dbtest.NewSQLite(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		p := models.Product{SKU: fmt.Sprintf("SKU-%d", i), Name: "Mate", PriceCents: 1500, IsActive: true}
		require.NoError(t, conn.Create(&p).Error)
		// Rows 1 and 2 share a timestamp so the id tiebreak is exercised.
		at := base.Add(time.Duration(i) * time.Minute)
		if i == 2 {
			at = base.Add(time.Minute)
		}
		require.NoError(t, conn.Model(&p).Update("created_at", at).Error)
	}
	key := func(p models.Product) Cursor { return Cursor{CreatedAt: p.CreatedAt, ID: p.ID} }

	var seen []string
	params := Params{Limit: 2}
	for pages := 0; ; pages++ {
		require.Less(t, pages, 5, "pagination did not terminate")
		rows, next, err := Fetch(conn.Model(&models.Product{}), params, key)
		require.NoError(t, err)
		for _, r := range rows {
			seen = append(seen, r.SKU)
		}
		if next == "" {
			break
		}
		params.Cursor = next
	}
	assert.Equal(t, []string{"SKU-4", "SKU-3", "SKU-2", "SKU-1", "SKU-0"}, seen)
}

func TestFetchRejectsBadCursorAsValidation(t *testing.T) {
	conn := dbtest.NewSQLite(t)
	_, _, err := Fetch(conn.Model(&models.Product{}), Params{Cursor: "%%%"}, func(p models.Product) Cursor { return Cursor{} })
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
