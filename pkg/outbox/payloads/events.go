package payloads

import (
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderCreatedEvent is emitted when checkout persists a new order.
type OrderCreatedEvent struct {
	OrderID        int64                `json:"order_id"`
	Status         enums.OrderStatus    `json:"status"`
	DeliveryMethod enums.DeliveryMethod `json:"delivery_method"`
	TotalCents     int64                `json:"total_cents"`
	ItemCount      int                  `json:"item_count"`
	CouponCode     *string              `json:"coupon_code,omitempty"`
}

// OrderStatusChangedEvent is emitted whenever an order status transition is applied.
type OrderStatusChangedEvent struct {
	OrderID   int64             `json:"order_id"`
	From      enums.OrderStatus `json:"from"`
	To        enums.OrderStatus `json:"to"`
	PaymentID *string           `json:"payment_id,omitempty"`
	Source    string            `json:"source"`
	Reason    string            `json:"reason,omitempty"`
}

// StockLine is a product quantity moved by a stock adjustment.
type StockLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// StockDeductedEvent reports the items whose stock was decremented for a paid order.
type StockDeductedEvent struct {
	OrderID int64       `json:"order_id"`
	Items   []StockLine `json:"items"`
}

// StockRestockedEvent reports the items returned to stock for a reversed order.
type StockRestockedEvent struct {
	OrderID int64       `json:"order_id"`
	Items   []StockLine `json:"items"`
}

// InventoryShortfallEvent flags a paid order item that could not be deducted.
type InventoryShortfallEvent struct {
	OrderID   int64 `json:"order_id"`
	ProductID int64 `json:"product_id"`
	Requested int   `json:"requested"`
	Available int   `json:"available"`
}
