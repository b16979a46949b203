package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order == nil {
		return nil, errors.New("order required")
	}
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.Order, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *repository) FindByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	trimmed := strings.TrimSpace(paymentID)
	if trimmed == "" {
		return nil, nil
	}
	return r.findOne(ctx, "payment_id = ?", trimmed)
}

func (r *repository) findOne(ctx context.Context, query string, args ...any) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where(query, args...).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// UpdateStatus is the non-CAS administrative write: it sets the status unconditionally and
// records a payment id only when none is stored yet. Reconciliation and admin transitions
// use TransitionStatus instead.
func (r *repository) UpdateStatus(ctx context.Context, id int64, status enums.OrderStatus, paymentID *string) error {
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(statusUpdates(status, paymentID))
	if res.Error != nil {
		return paymentConflict(res.Error)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return nil
}

// TransitionStatus is a compare-and-swap: the row changes only while its status is one of from.
func (r *repository) TransitionStatus(ctx context.Context, id int64, from []enums.OrderStatus, to enums.OrderStatus, paymentID *string) (bool, error) {
	if !to.IsValid() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if len(from) == 0 {
		return false, errors.New("transition requires at least one source status")
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(statusUpdates(to, paymentID))
	if res.Error != nil {
		return false, paymentConflict(res.Error)
	}
	return res.RowsAffected == 1, nil
}

const paymentIDConstraint = "ux_orders_payment_id"

func paymentConflict(err error) error {
	if db.IsUniqueViolation(err, paymentIDConstraint) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payment id already linked to another order")
	}
	return err
}

func statusUpdates(status enums.OrderStatus, paymentID *string) map[string]any {
	updates := map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if paymentID != nil {
		if trimmed := strings.TrimSpace(*paymentID); trimmed != "" {
			updates["payment_id"] = gorm.Expr("COALESCE(payment_id, ?)", trimmed)
		}
	}
	return updates
}

func (r *repository) List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error) {
	q := r.db.WithContext(ctx).Model(&models.Order{}).Preload("Items")
	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}
	if filters.PaymentID != "" {
		q = q.Where("payment_id = ?", filters.PaymentID)
	}

	rows, next, err := pagination.Fetch(q, params, orderCursor)
	if err != nil {
		return nil, err
	}
	list := &OrderList{Orders: make([]OrderSummary, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		list.Orders = append(list.Orders, ToSummary(row))
	}
	return list, nil
}

func orderCursor(o models.Order) pagination.Cursor {
	return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
}

// FindStalePending returns pending_payment orders created inside (createdAfter, createdBefore), oldest first.
func (r *repository) FindStalePending(ctx context.Context, createdBefore, createdAfter time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ? AND created_at > ?", enums.OrderStatusPendingPayment, createdBefore, createdAfter).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// FindSettledWithoutDeduction returns settled orders whose stock deduction was never recorded.
func (r *repository) FindSettledWithoutDeduction(ctx context.Context, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status IN ? AND stock_deducted_at IS NULL", enums.SettledOrderStatuses).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ClaimStockDeduction records the deduction timestamp once per order, and only while the
// order is still settled. A cancel or refund that commits first leaves nothing to claim.
func (r *repository) ClaimStockDeduction(ctx context.Context, id int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND stock_deducted_at IS NULL AND status IN ?", id, enums.SettledOrderStatuses).
		Update("stock_deducted_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ClaimStockRestock records the restock timestamp once, and only after a deduction happened.
func (r *repository) ClaimStockRestock(ctx context.Context, id int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND stock_deducted_at IS NOT NULL AND stock_restocked_at IS NULL", id).
		Update("stock_restocked_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) MarkItemDeducted(ctx context.Context, itemID int64) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ?", itemID).
		Update("stock_deducted", true).Error
}

// ClaimItemRestock flips the item's deducted flag back; only the winner returns its quantity to stock.
func (r *repository) ClaimItemRestock(ctx context.Context, itemID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ? AND stock_deducted = ?", itemID, true).
		Update("stock_deducted", false)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
