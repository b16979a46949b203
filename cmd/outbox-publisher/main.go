package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
	"github.com/angelmondragon/storefront-backend/pkg/pubsub"
)

const serviceName = "outbox-publisher"

func main() {
	cfg, logg, err := bootstrap.Load(serviceName)
	if err != nil {
		logg.Error(context.Background(), "outbox.config_invalid", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = bootstrap.RootContext(ctx, cfg, logg)

	closers := bootstrap.NewClosers(logg)
	err = run(ctx, cfg, logg, closers)
	closers.Close()
	if err != nil {
		logg.Error(ctx, "outbox.stopped_unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, closers *bootstrap.Closers) error {
	dbClient, err := bootstrap.Database(ctx, cfg, logg, closers)
	if err != nil {
		return err
	}
	// Topics come from the registry so the client can verify each one exists at startup.
	events, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("event registry: %w", err)
	}
	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, events.Topics(), logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	closers.Add("pubsub", pubsubClient.Close)

	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      events,
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return fmt.Errorf("outbox dispatcher: %w", err)
	}

	metrics.Serve(ctx, cfg.App.MetricsAddr, logg)
	logg.Info(ctx, "outbox.dispatcher_started")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
