package models

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Order is a storefront order. Status only changes through conditional updates.
type Order struct {
	ID               int64                `gorm:"column:id;primaryKey;autoIncrement"`
	Status           enums.OrderStatus    `gorm:"column:status;type:order_status;not null"`
	DeliveryMethod   enums.DeliveryMethod `gorm:"column:delivery_method;type:delivery_method;not null"`
	PaymentID        *string              `gorm:"column:payment_id;uniqueIndex:ux_orders_payment_id"`
	CustomerName     string               `gorm:"column:customer_name;not null"`
	CustomerEmail    string               `gorm:"column:customer_email;not null"`
	CustomerPhone    *string              `gorm:"column:customer_phone"`
	ShippingAddress  *string              `gorm:"column:shipping_address"`
	SubtotalCents    int64                `gorm:"column:subtotal_cents;not null"`
	DiscountCents    int64                `gorm:"column:discount_cents;not null;default:0"`
	TotalCents       int64                `gorm:"column:total_cents;not null"`
	CouponCode       *string              `gorm:"column:coupon_code"`
	StockDeductedAt  *time.Time           `gorm:"column:stock_deducted_at"`
	StockRestockedAt *time.Time           `gorm:"column:stock_restocked_at"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
	Items            []OrderItem          `gorm:"foreignKey:OrderID"`
}

// OrderItem is a line item with the price snapshot taken at checkout.
type OrderItem struct {
	ID                   int64     `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID              int64     `gorm:"column:order_id;not null;index"`
	ProductID            int64     `gorm:"column:product_id;not null;index"`
	ProductName          string    `gorm:"column:product_name;not null"`
	Quantity             int       `gorm:"column:quantity;not null"`
	PriceAtPurchaseCents int64     `gorm:"column:price_at_purchase_cents;not null"`
	OriginalPriceCents   *int64    `gorm:"column:original_price_cents"`
	StockDeducted        bool      `gorm:"column:stock_deducted;not null;default:false"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime"`
}

// LineTotalCents returns the purchase price multiplied by quantity.
func (i OrderItem) LineTotalCents() int64 {
	return i.PriceAtPurchaseCents * int64(i.Quantity)
}
