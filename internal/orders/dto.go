package orders

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// CreateOrderInput carries a validated checkout request.
type CreateOrderInput struct {
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   *string
	ShippingAddress *string
	DeliveryMethod  enums.DeliveryMethod
	CouponCode      *string
	Items           []CreateOrderItem
}

// CreateOrderItem is one requested product quantity.
type CreateOrderItem struct {
	ProductID int64
	Quantity  int
}

// ListFilters narrows the admin order list.
type ListFilters struct {
	Status    *enums.OrderStatus
	PaymentID string
}

// OrderItemSummary is the API projection of a line item.
type OrderItemSummary struct {
	ID                   int64  `json:"id"`
	ProductID            int64  `json:"product_id"`
	ProductName          string `json:"product_name"`
	Quantity             int    `json:"quantity"`
	PriceAtPurchaseCents int64  `json:"price_at_purchase_cents"`
	OriginalPriceCents   *int64 `json:"original_price_cents,omitempty"`
	StockDeducted        bool   `json:"stock_deducted"`
}

// OrderSummary is the API projection of an order.
type OrderSummary struct {
	ID               int64                `json:"id"`
	Status           enums.OrderStatus    `json:"status"`
	DeliveryMethod   enums.DeliveryMethod `json:"delivery_method"`
	PaymentID        *string              `json:"payment_id,omitempty"`
	CustomerName     string               `json:"customer_name"`
	CustomerEmail    string               `json:"customer_email"`
	SubtotalCents    int64                `json:"subtotal_cents"`
	DiscountCents    int64                `json:"discount_cents"`
	TotalCents       int64                `json:"total_cents"`
	CouponCode       *string              `json:"coupon_code,omitempty"`
	StockDeductedAt  *time.Time           `json:"stock_deducted_at,omitempty"`
	StockRestockedAt *time.Time           `json:"stock_restocked_at,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
	Items            []OrderItemSummary   `json:"items"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// PaymentPreference is the hosted checkout link for an order.
type PaymentPreference struct {
	OrderID          int64  `json:"order_id"`
	PreferenceID     string `json:"preference_id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point,omitempty"`
}

// ToSummary projects an order row for API responses.
func ToSummary(o models.Order) OrderSummary {
	items := make([]OrderItemSummary, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemSummary{
			ID:                   item.ID,
			ProductID:            item.ProductID,
			ProductName:          item.ProductName,
			Quantity:             item.Quantity,
			PriceAtPurchaseCents: item.PriceAtPurchaseCents,
			OriginalPriceCents:   item.OriginalPriceCents,
			StockDeducted:        item.StockDeducted,
		})
	}
	return OrderSummary{
		ID:               o.ID,
		Status:           o.Status,
		DeliveryMethod:   o.DeliveryMethod,
		PaymentID:        o.PaymentID,
		CustomerName:     o.CustomerName,
		CustomerEmail:    o.CustomerEmail,
		SubtotalCents:    o.SubtotalCents,
		DiscountCents:    o.DiscountCents,
		TotalCents:       o.TotalCents,
		CouponCode:       o.CouponCode,
		StockDeductedAt:  o.StockDeductedAt,
		StockRestockedAt: o.StockRestockedAt,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		Items:            items,
	}
}
