package orders

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their line items.
// Finders return (nil, nil) when no row matches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id int64) (*models.Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
	UpdateStatus(ctx context.Context, id int64, status enums.OrderStatus, paymentID *string) error
	TransitionStatus(ctx context.Context, id int64, from []enums.OrderStatus, to enums.OrderStatus, paymentID *string) (bool, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error)
	FindStalePending(ctx context.Context, createdBefore, createdAfter time.Time, limit int) ([]models.Order, error)
	FindSettledWithoutDeduction(ctx context.Context, limit int) ([]models.Order, error)

	ClaimStockDeduction(ctx context.Context, id int64, at time.Time) (bool, error)
	ClaimStockRestock(ctx context.Context, id int64, at time.Time) (bool, error)
	MarkItemDeducted(ctx context.Context, itemID int64) error
	ClaimItemRestock(ctx context.Context, itemID int64) (bool, error)
}
