package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	StockRepairJobName          = "stock-deduction-repair"
	defaultStockRepairBatchSize = 100
)

type undeductedOrderReader interface {
	FindSettledWithoutDeduction(ctx context.Context, limit int) ([]models.Order, error)
}

type stockDeductor interface {
	DeductStockForOrder(ctx context.Context, orderID int64) (*inventory.DeductResult, error)
}

// StockRepairJobParams configure the deduction repair job.
type StockRepairJobParams struct {
	Logger    *logger.Logger
	Orders    undeductedOrderReader
	Stock     stockDeductor
	Metrics   processedRecorder
	BatchSize int
}

type stockRepairJob struct {
	logg      *logger.Logger
	orders    undeductedOrderReader
	stock     stockDeductor
	metrics   processedRecorder
	batchSize int
}

// NewStockRepairJob builds the job that retries stock deduction for settled orders
// whose best-effort deduction never committed.
func NewStockRepairJob(params StockRepairJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders reader required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock deductor required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultStockRepairBatchSize
	}
	return &stockRepairJob{
		logg:      params.Logger,
		orders:    params.Orders,
		stock:     params.Stock,
		metrics:   params.Metrics,
		batchSize: batch,
	}, nil
}

func (j *stockRepairJob) Name() string { return StockRepairJobName }

func (j *stockRepairJob) Run(ctx context.Context) error {
	rows, err := j.orders.FindSettledWithoutDeduction(ctx, j.batchSize)
	if err != nil {
		return fmt.Errorf("load undeducted orders: %w", err)
	}
	if j.metrics != nil {
		j.metrics.AddProcessed(StockRepairJobName, len(rows))
	}

	var errs error
	for _, order := range rows {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		orderCtx := j.logg.WithOrderID(ctx, order.ID)
		res, err := j.stock.DeductStockForOrder(orderCtx, order.ID)
		if err != nil {
			j.logg.Error(orderCtx, "cron.stock_repair.order_failed", err)
			errs = multierr.Append(errs, fmt.Errorf("order %d: %w", order.ID, err))
			continue
		}
		if res != nil && !res.AlreadyApplied && !res.NotSettled {
			fields := map[string]any{"deducted": len(res.Deducted), "shortfalls": len(res.Shortfalls)}
			j.logg.Warn(j.logg.WithFields(orderCtx, fields), "cron.stock_repair.applied")
		}
	}
	return errs
}
