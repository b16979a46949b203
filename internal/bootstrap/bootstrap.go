// Package bootstrap holds the startup steps shared by the long-running binaries.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/gateway"
	"github.com/angelmondragon/storefront-backend/pkg/instance"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Load reads .env (when present) and the environment, then builds the service logger.
// The returned logger is usable even when err is non-nil.
func Load(service string) (*config.Config, *logger.Logger, error) {
	logg := logger.New(logger.Options{ServiceName: service})
	if err := godotenv.Load(); err != nil {
		logg.Debug(context.Background(), "bootstrap.dotenv_missing")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, logg, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = service

	logg = logger.New(logger.Options{
		ServiceName: service,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	return cfg, logg, nil
}

// RootContext carries the fields every line from a binary should include.
func RootContext(ctx context.Context, cfg *config.Config, logg *logger.Logger) context.Context {
	return logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
}

// Closers runs deferred shutdown steps in reverse order, logging failures.
type Closers struct {
	logg  *logger.Logger
	steps []closer
}

type closer struct {
	name string
	fn   func() error
}

func NewClosers(logg *logger.Logger) *Closers { return &Closers{logg: logg} }

func (c *Closers) Add(name string, fn func() error) {
	c.steps = append(c.steps, closer{name: name, fn: fn})
}

func (c *Closers) Close() {
	for i := len(c.steps) - 1; i >= 0; i-- {
		step := c.steps[i]
		if err := step.fn(); err != nil {
			c.logg.Error(c.logg.WithField(context.Background(), "resource", step.name), "bootstrap.close_failed", err)
		}
	}
}

// Database opens postgres (or sqlite) and applies dev migrations when enabled.
func Database(ctx context.Context, cfg *config.Config, logg *logger.Logger, closers *Closers) (*db.Client, error) {
	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	closers.Add("database", client.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, client); err != nil {
		return nil, fmt.Errorf("dev migrations: %w", err)
	}
	return client, nil
}

func Redis(ctx context.Context, cfg *config.Config, logg *logger.Logger, closers *Closers) (*redis.Client, error) {
	client, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}
	closers.Add("redis", client.Close)
	return client, nil
}

func Gateway(cfg *config.Config) (*gateway.Client, error) {
	client, err := gateway.NewClient(
		cfg.Gateway.AccessToken,
		gateway.WithBaseURL(cfg.Gateway.BaseURL),
		gateway.WithTimeout(cfg.Gateway.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("gateway client: %w", err)
	}
	return client, nil
}
