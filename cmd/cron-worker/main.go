package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
	"github.com/angelmondragon/storefront-backend/internal/cron"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const serviceName = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit, for external schedulers")
	flag.Parse()

	cfg, logg, err := bootstrap.Load(serviceName)
	if err != nil {
		logg.Error(context.Background(), "cron.config_invalid", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = bootstrap.RootContext(ctx, cfg, logg)

	closers := bootstrap.NewClosers(logg)
	err = run(ctx, cfg, logg, closers, *once)
	closers.Close()
	if err != nil {
		logg.Error(ctx, "cron.stopped_unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, closers *bootstrap.Closers, once bool) error {
	service, err := buildService(ctx, cfg, logg, closers)
	if err != nil {
		return err
	}

	if once {
		err := service.RunOnce(ctx)
		if errors.Is(err, cron.ErrCycleSkipped) {
			logg.Info(ctx, "cron.cycle_skipped")
			return nil
		}
		return err
	}

	metrics.Serve(ctx, cfg.App.MetricsAddr, logg)
	logg.Info(ctx, "cron.worker_started")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "cron.worker_stopped")
	return nil
}

// buildService registers the payment sweep and stock repair jobs behind a
// redis lock scoped to the deployment environment.
func buildService(ctx context.Context, cfg *config.Config, logg *logger.Logger, closers *bootstrap.Closers) (*cron.Service, error) {
	dbClient, err := bootstrap.Database(ctx, cfg, logg, closers)
	if err != nil {
		return nil, err
	}
	redisClient, err := bootstrap.Redis(ctx, cfg, logg, closers)
	if err != nil {
		return nil, err
	}
	gatewayClient, err := bootstrap.Gateway(cfg)
	if err != nil {
		return nil, err
	}
	core, err := bootstrap.NewReconciliation(dbClient, gatewayClient, prometheus.DefaultRegisterer, logg)
	if err != nil {
		return nil, err
	}
	jobMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	sweep, err := cron.NewPaymentSweepJob(cron.PaymentSweepJobParams{
		Logger:     logg,
		Orders:     core.Orders,
		Reconciler: core.Reconciler,
		Metrics:    jobMetrics,
		StaleAfter: cfg.Reconcile.PendingStaleAfter,
		MaxAge:     cfg.Reconcile.PendingMaxAge,
		BatchSize:  cfg.Reconcile.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("payment sweep job: %w", err)
	}
	repair, err := cron.NewStockRepairJob(cron.StockRepairJobParams{
		Logger:    logg,
		Orders:    core.Orders,
		Stock:     core.Stock,
		Metrics:   jobMetrics,
		BatchSize: cfg.Reconcile.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("stock repair job: %w", err)
	}
	jobs, err := cron.NewRegistry(sweep, repair)
	if err != nil {
		return nil, fmt.Errorf("register jobs: %w", err)
	}

	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(serviceName+":"+env), 0)
	if err != nil {
		return nil, fmt.Errorf("cron lock: %w", err)
	}

	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Reconcile.SweepInterval,
	})
}
