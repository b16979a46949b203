package models

import "time"

// Product is a catalog entry whose stock column is the inventory record.
type Product struct {
	ID                 int64     `gorm:"column:id;primaryKey;autoIncrement"`
	SKU                string    `gorm:"column:sku;not null;uniqueIndex"`
	Name               string    `gorm:"column:name;not null"`
	Description        *string   `gorm:"column:description"`
	PriceCents         int64     `gorm:"column:price_cents;not null"`
	OriginalPriceCents *int64    `gorm:"column:original_price_cents"`
	Stock              int       `gorm:"column:stock;not null;default:0;check:products_stock_non_negative,stock >= 0"`
	ImageURL           *string   `gorm:"column:image_url"`
	IsActive           bool      `gorm:"column:is_active;not null"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
