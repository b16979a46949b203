package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/internal/reconciliation"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	PaymentSweepJobName      = "payment-status-sweep"
	defaultSweepBatchSize    = 100
	defaultPendingStaleAfter = 15 * time.Minute
	defaultPendingMaxAge     = 7 * 24 * time.Hour
)

type stalePendingReader interface {
	FindStalePending(ctx context.Context, createdBefore, createdAfter time.Time, limit int) ([]models.Order, error)
}

type paymentReconciler interface {
	ReconcilePayment(ctx context.Context, paymentID string, source reconciliation.Source) (*reconciliation.Result, error)
	ReconcileOrderPayments(ctx context.Context, orderID int64, source reconciliation.Source) (*reconciliation.Result, error)
}

type processedRecorder interface {
	AddProcessed(job string, n int)
}

// PaymentSweepJobParams configure the pending payment sweep.
type PaymentSweepJobParams struct {
	Logger     *logger.Logger
	Orders     stalePendingReader
	Reconciler paymentReconciler
	Metrics    processedRecorder
	StaleAfter time.Duration
	MaxAge     time.Duration
	BatchSize  int
	Now        func() time.Time
}

type paymentSweepJob struct {
	logg       *logger.Logger
	orders     stalePendingReader
	reconciler paymentReconciler
	metrics    processedRecorder
	staleAfter time.Duration
	maxAge     time.Duration
	batchSize  int
	now        func() time.Time
}

// NewPaymentSweepJob builds the job that re-polls the gateway for orders stuck in pending_payment,
// covering notifications that never arrived.
func NewPaymentSweepJob(params PaymentSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders reader required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	job := &paymentSweepJob{
		logg:       params.Logger,
		orders:     params.Orders,
		reconciler: params.Reconciler,
		metrics:    params.Metrics,
		staleAfter: params.StaleAfter,
		maxAge:     params.MaxAge,
		batchSize:  params.BatchSize,
		now:        params.Now,
	}
	if job.staleAfter <= 0 {
		job.staleAfter = defaultPendingStaleAfter
	}
	if job.maxAge <= job.staleAfter {
		job.maxAge = defaultPendingMaxAge
	}
	if job.batchSize <= 0 {
		job.batchSize = defaultSweepBatchSize
	}
	if job.now == nil {
		job.now = time.Now
	}
	return job, nil
}

func (j *paymentSweepJob) Name() string { return PaymentSweepJobName }

// Run reconciles each stale order independently; one failure does not stop the batch.
// Permanent failures are logged and skipped; the next sweep sees the order again.
func (j *paymentSweepJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	rows, err := j.orders.FindStalePending(ctx, now.Add(-j.staleAfter), now.Add(-j.maxAge), j.batchSize)
	if err != nil {
		return fmt.Errorf("load stale pending orders: %w", err)
	}
	if j.metrics != nil {
		j.metrics.AddProcessed(PaymentSweepJobName, len(rows))
	}

	var errs error
	transitioned := 0
	for _, order := range rows {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		orderCtx := j.logg.WithOrderID(ctx, order.ID)
		var res *reconciliation.Result
		if order.PaymentID != nil && *order.PaymentID != "" {
			res, err = j.reconciler.ReconcilePayment(orderCtx, *order.PaymentID, reconciliation.SourceSweep)
		} else {
			res, err = j.reconciler.ReconcileOrderPayments(orderCtx, order.ID, reconciliation.SourceSweep)
		}
		if err != nil && !pkgerrors.Retryable(err) {
			j.logg.Warn(j.logg.WithField(orderCtx, "error", err.Error()), "cron.payment_sweep.order_skipped")
			continue
		}
		if err != nil {
			j.logg.Error(orderCtx, "cron.payment_sweep.order_failed", err)
			errs = multierr.Append(errs, fmt.Errorf("order %d: %w", order.ID, err))
			continue
		}
		if res != nil && res.Outcome == reconciliation.OutcomeTransitioned {
			transitioned++
		}
	}

	summaryCtx := j.logg.WithFields(ctx, map[string]any{"examined": len(rows), "transitioned": transitioned})
	j.logg.Info(summaryCtx, "cron.payment_sweep.summary")
	return errs
}
