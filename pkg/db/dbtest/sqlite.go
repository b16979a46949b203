// Package dbtest opens isolated in-memory sqlite databases migrated with the storefront models.
package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// NewSQLite returns a fresh shared-cache in-memory database with every model migrated.
func NewSQLite(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:storefront_" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err == nil {
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	return conn
}

// NewClient wraps NewSQLite in a db.Client.
func NewClient(t testing.TB) *db.Client {
	t.Helper()
	return db.FromGorm(NewSQLite(t))
}
