package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/env"
	"github.com/angelmondragon/storefront-backend/pkg/idempotency"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

const (
	serviceName       = "api"
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	cfg, logg, err := bootstrap.Load(serviceName)
	if err != nil {
		logg.Error(context.Background(), "api.config_invalid", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = bootstrap.RootContext(ctx, cfg, logg)

	closers := bootstrap.NewClosers(logg)
	err = run(ctx, cfg, logg, closers)
	closers.Close()
	if err != nil {
		logg.Error(ctx, "api.stopped_unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, closers *bootstrap.Closers) error {
	dbClient, err := bootstrap.Database(ctx, cfg, logg, closers)
	if err != nil {
		return err
	}
	redisClient, err := bootstrap.Redis(ctx, cfg, logg, closers)
	if err != nil {
		return err
	}
	gatewayClient, err := bootstrap.Gateway(cfg)
	if err != nil {
		return err
	}
	core, err := bootstrap.NewReconciliation(dbClient, gatewayClient, prometheus.DefaultRegisterer, logg)
	if err != nil {
		return err
	}

	productService, err := product.NewService(core.Products)
	if err != nil {
		return fmt.Errorf("product service: %w", err)
	}
	ordersService, err := orders.NewService(dbClient, core.Orders, core.Products,
		coupons.NewRepository(dbClient.DB()), core.Outbox, gatewayClient, cfg.Gateway)
	if err != nil {
		return fmt.Errorf("orders service: %w", err)
	}
	webhookGuard, err := idempotency.NewManager(redisClient, cfg.Webhook.IdempotencyTTL)
	if err != nil {
		return fmt.Errorf("webhook idempotency guard: %w", err)
	}
	deadLetters, err := outbox.NewRemediation(dbClient, outbox.NewRepository(dbClient.DB()), outbox.NewDLQRepository(dbClient.DB()), logg)
	if err != nil {
		return fmt.Errorf("outbox remediation: %w", err)
	}

	server := &http.Server{
		Addr: ":" + env.Get("PORT", cfg.App.Port),
		Handler: routes.NewRouter(routes.Dependencies{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Store:          redisClient,
			Products:       productService,
			Orders:         ordersService,
			Reconciler:     core.Reconciler,
			WebhookGuard:   webhookGuard,
			ReconMetrics:   core.Metrics,
			DeadLetters:    deadLetters,
			MetricsHandler: promhttp.Handler(),
		}),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return serve(logg.WithField(ctx, "addr", server.Addr), logg, server)
}

// serve blocks until the listener fails or ctx is canceled, then drains in-flight requests.
func serve(ctx context.Context, logg *logger.Logger, server *http.Server) error {
	listenErr := make(chan error, 1)
	go func() { listenErr <- server.ListenAndServe() }()
	logg.Info(ctx, "api.listening")

	select {
	case err := <-listenErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "api.shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
