// Package pagination implements keyset paging over (created_at DESC, id DESC).
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Params is a page request. An empty Cursor starts at the newest row.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the sort key of the last row already returned.
type Cursor struct {
	CreatedAt time.Time `json:"t"`
	ID        int64     `json:"id"`
}

func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// EncodeCursor renders c as an opaque URL-safe token.
func EncodeCursor(c Cursor) string {
	c.CreatedAt = c.CreatedAt.UTC()
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseCursor reverses EncodeCursor. A blank token means "first page" and yields nil.
func ParseCursor(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	if c.ID <= 0 || c.CreatedAt.IsZero() {
		return nil, fmt.Errorf("cursor is missing its sort key")
	}
	return &c, nil
}

// After restricts a query to rows strictly older than c in the page order.
func After(c *Cursor) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if c == nil {
			return q
		}
		return q.Where("created_at < ? OR (created_at = ? AND id < ?)", c.CreatedAt, c.CreatedAt, c.ID)
	}
}

// Fetch loads one page of T from q and returns the token for the next page, or ""
// on the last one. key reads the sort key back out of a row.
func Fetch[T any](q *gorm.DB, params Params, key func(T) Cursor) ([]T, string, error) {
	cursor, err := ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := NormalizeLimit(params.Limit)

	var rows []T
	if err := q.Scopes(After(cursor)).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1).
		Find(&rows).Error; err != nil {
		return nil, "", err
	}
	if len(rows) <= limit {
		return rows, "", nil
	}
	rows = rows[:limit]
	return rows, EncodeCursor(key(rows[limit-1])), nil
}
