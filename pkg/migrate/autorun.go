package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// MaybeRunDev applies the schema automatically in dev when the feature flag is enabled.
// Postgres runs the goose migrations; the sqlite driver falls back to gorm AutoMigrate
// because the SQL files rely on Postgres enum types.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver})

	if cfg.DB.IsSQLite() {
		if err := AutoMigrateModels(client); err != nil {
			return err
		}
		logg.Info(ctx, "migrate.dev_automigrate.done")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	migrator, err := New(sqlDB)
	if err != nil {
		return err
	}
	logg.Info(ctx, "migrate.dev_up.start")
	if err := migrator.Run(ctx, "up"); err != nil {
		return err
	}
	if version, err := migrator.Version(); err == nil {
		ctx = logg.WithField(ctx, "version", version)
	}
	logg.Info(ctx, "migrate.dev_up.done")
	return nil
}

// AutoMigrateModels creates tables for every model through gorm.
func AutoMigrateModels(client *db.Client) error {
	if client == nil || client.DB() == nil {
		return fmt.Errorf("db client is required")
	}
	if err := client.DB().AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto-migrate models: %w", err)
	}
	return nil
}
