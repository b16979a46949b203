package models

import "time"

// Coupon is a checkout discount code. Exactly one of PercentOff or AmountOffCents is set.
type Coupon struct {
	ID               int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Code             string     `gorm:"column:code;not null;uniqueIndex"`
	PercentOff       *int       `gorm:"column:percent_off"`
	AmountOffCents   *int64     `gorm:"column:amount_off_cents"`
	MinSubtotalCents int64      `gorm:"column:min_subtotal_cents;not null;default:0"`
	IsActive         bool       `gorm:"column:is_active;not null"`
	ExpiresAt        *time.Time `gorm:"column:expires_at"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
}
