package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type ledgerRow struct {
	ID  int
	Ref string `gorm:"uniqueIndex"`
}

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:dbclient_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&ledgerRow{}))
	return conn
}

func countRows(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&ledgerRow{}).Count(&n).Error)
	return n
}

func TestWithTxCommitsOrRollsBack(t *testing.T) {
	conn := openSQLite(t)
	client := FromGorm(conn)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&ledgerRow{Ref: "kept"}).Error
	}))
	assert.Equal(t, int64(1), countRows(t, conn))

	boom := errors.New("boom")
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&ledgerRow{Ref: "discarded"}).Error)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), countRows(t, conn))
}

func TestWithTxRollsBackAndRepanics(t *testing.T) {
	conn := openSQLite(t)
	client := FromGorm(conn)

	assert.Panics(t, func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			require.NoError(t, tx.Create(&ledgerRow{Ref: "panicked"}).Error)
			panic("boom")
		})
	})
	assert.Equal(t, int64(0), countRows(t, conn))
}

func TestNewOpensSQLite(t *testing.T) {
	client, err := New(context.Background(), config.DBConfig{
		Driver: config.DBDriverSQLite,
		DSN:    "file:dbnew_" + uuid.NewString() + "?mode=memory&cache=shared",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	assert.NoError(t, client.Ping(context.Background()))

	_, err = New(context.Background(), config.DBConfig{}, nil)
	assert.Error(t, err)
}

func TestIsUniqueViolation(t *testing.T) {
	conn := openSQLite(t)
	require.NoError(t, conn.Create(&ledgerRow{Ref: "dup"}).Error)
	assert.True(t, IsUniqueViolation(conn.Create(&ledgerRow{Ref: "dup"}).Error, ""))

	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_orders_payment_id"}
	assert.True(t, IsUniqueViolation(pgErr, "ux_orders_payment_id"))
	assert.False(t, IsUniqueViolation(pgErr, "ux_other"))
	assert.False(t, IsUniqueViolation(nil, ""))
}

func TestQueryLoggerReportsFailuresAndSlowQueries(t *testing.T) {
	buf := &bytes.Buffer{}
	ql := newQueryLogger(logger.New(logger.Options{ServiceName: "test", Output: buf}), 100*time.Millisecond)
	ctx := context.Background()
	stmt := func() (string, int64) { return "SELECT 1", 1 }

	ql.Trace(ctx, time.Now(), stmt, nil)
	ql.Trace(ctx, time.Now(), stmt, gorm.ErrRecordNotFound)
	ql.Trace(ctx, time.Now(), stmt, &pgconn.PgError{Code: "23505"})
	assert.Zero(t, buf.Len(), "expected quiet for fast, not-found and duplicate results: %s", buf.String())

	ql.Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	assert.Contains(t, buf.String(), "db.slow_query")

	ql.Trace(ctx, time.Now(), stmt, errors.New("relation missing"))
	assert.Contains(t, buf.String(), "db.query_failed")

	buf.Reset()
	ql.LogMode(gormlogger.Silent).Trace(ctx, time.Now(), stmt, errors.New("silenced"))
	assert.Zero(t, buf.Len())
}
