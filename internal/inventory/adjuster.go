package inventory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type stockRecorder interface {
	AddShortfalls(n int)
	AddRestocked(n int)
}

// Shortfall is an order line whose stock could not be decremented.
type Shortfall struct {
	ItemID    int64 `json:"item_id"`
	ProductID int64 `json:"product_id"`
	Requested int   `json:"requested"`
	Available int   `json:"available"`
}

// DeductResult reports what a deduction attempt changed.
type DeductResult struct {
	OrderID        int64
	AlreadyApplied bool
	// NotSettled is set when the order left paid/shipped/delivered before stock was taken.
	NotSettled bool
	Deducted       []payloads.StockLine
	Shortfalls     []Shortfall
}

// RestockResult reports what a restock attempt changed.
type RestockResult struct {
	OrderID  int64
	Skipped  bool
	Restocks []payloads.StockLine
}

// Adjuster moves product stock for orders. The order row carries a one-shot ledger
// (stock_deducted_at, stock_restocked_at) so repeated calls never apply twice.
type Adjuster struct {
	tx       txRunner
	orders   orders.Repository
	products *product.Repository
	outbox   outboxPublisher
	metrics  stockRecorder
	logg     *logger.Logger
	now      func() time.Time
}

// NewAdjuster wires the stock adjuster. metrics and logg may be nil.
func NewAdjuster(tx txRunner, ordersRepo orders.Repository, products *product.Repository, publisher outboxPublisher, metrics stockRecorder, logg *logger.Logger) (*Adjuster, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &Adjuster{
		tx:       tx,
		orders:   ordersRepo,
		products: products,
		outbox:   publisher,
		metrics:  metrics,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// DeductStockForOrder decrements stock for each line with a guarded update.
// Lines that would drive stock negative are skipped and reported as shortfalls; they never fail the call.
func (a *Adjuster) DeductStockForOrder(ctx context.Context, orderID int64) (*DeductResult, error) {
	result := &DeductResult{OrderID: orderID}
	err := a.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := a.orders.WithTx(tx)
		productsRepo := a.products.WithTx(tx)

		claimed, err := ordersRepo.ClaimStockDeduction(ctx, orderID, a.now().UTC())
		if err != nil {
			return err
		}
		order, err := ordersRepo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if !claimed {
			if order.StockDeductedAt != nil {
				result.AlreadyApplied = true
			} else {
				result.NotSettled = true
			}
			return nil
		}

		for _, item := range order.Items {
			ok, err := productsRepo.DecrementStock(ctx, item.ProductID, item.Quantity)
			if err != nil {
				return fmt.Errorf("decrement product %d: %w", item.ProductID, err)
			}
			if ok {
				if err := ordersRepo.MarkItemDeducted(ctx, item.ID); err != nil {
					return err
				}
				result.Deducted = append(result.Deducted, payloads.StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
				continue
			}

			available := 0
			current, err := productsRepo.FindByID(ctx, item.ProductID)
			if err != nil {
				return err
			}
			if current != nil {
				available = current.Stock
			}
			shortfall := Shortfall{ItemID: item.ID, ProductID: item.ProductID, Requested: item.Quantity, Available: available}
			result.Shortfalls = append(result.Shortfalls, shortfall)
			if err := a.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventInventoryShortfall,
				AggregateType: enums.AggregateProduct,
				AggregateID:   strconv.FormatInt(item.ProductID, 10),
				Data: payloads.InventoryShortfallEvent{
					OrderID:   orderID,
					ProductID: item.ProductID,
					Requested: item.Quantity,
					Available: available,
				},
			}); err != nil {
				return err
			}
		}

		if len(result.Deducted) == 0 {
			return nil
		}
		return a.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockDeducted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   outbox.OrderAggregateID(orderID),
			Data:          payloads.StockDeductedEvent{OrderID: orderID, Items: result.Deducted},
		})
	})
	if err != nil {
		return nil, err
	}
	if result.NotSettled && a.logg != nil {
		a.logg.Warn(a.logg.WithOrderID(ctx, orderID), "inventory.deduct.order_not_settled")
	}

	for _, s := range result.Shortfalls {
		a.warnShortfall(ctx, orderID, s)
	}
	if a.metrics != nil && len(result.Shortfalls) > 0 {
		a.metrics.AddShortfalls(len(result.Shortfalls))
	}
	return result, nil
}

// RestockItemsForOrder returns previously deducted lines to stock.
// It is a no-op unless a deduction was recorded and no restock has happened yet.
func (a *Adjuster) RestockItemsForOrder(ctx context.Context, orderID int64) (*RestockResult, error) {
	result := &RestockResult{OrderID: orderID}
	err := a.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := a.orders.WithTx(tx)
		productsRepo := a.products.WithTx(tx)

		claimed, err := ordersRepo.ClaimStockRestock(ctx, orderID, a.now().UTC())
		if err != nil {
			return err
		}
		if !claimed {
			result.Skipped = true
			return nil
		}
		order, err := ordersRepo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}

		for _, item := range order.Items {
			if !item.StockDeducted {
				continue
			}
			ok, err := ordersRepo.ClaimItemRestock(ctx, item.ID)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := productsRepo.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				return fmt.Errorf("increment product %d: %w", item.ProductID, err)
			}
			result.Restocks = append(result.Restocks, payloads.StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
		}

		if len(result.Restocks) == 0 {
			return nil
		}
		return a.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockRestocked,
			AggregateType: enums.AggregateOrder,
			AggregateID:   outbox.OrderAggregateID(orderID),
			Data:          payloads.StockRestockedEvent{OrderID: orderID, Items: result.Restocks},
		})
	})
	if err != nil {
		return nil, err
	}

	if a.metrics != nil && len(result.Restocks) > 0 {
		units := 0
		for _, line := range result.Restocks {
			units += line.Quantity
		}
		a.metrics.AddRestocked(units)
	}
	return result, nil
}

func (a *Adjuster) warnShortfall(ctx context.Context, orderID int64, s Shortfall) {
	if a.logg == nil {
		return
	}
	ctx = a.logg.WithOrderID(ctx, orderID)
	ctx = a.logg.WithFields(ctx, map[string]any{
		"product_id":          s.ProductID,
		"requested":           s.Requested,
		"available":           s.Available,
		"manual_intervention": true,
	})
	a.logg.Warn(ctx, "inventory.deduct.shortfall")
}
