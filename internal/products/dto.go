package product

import "github.com/angelmondragon/storefront-backend/pkg/db/models"

// Summary is the public catalog projection of a product.
type Summary struct {
	ID                 int64   `json:"id"`
	SKU                string  `json:"sku"`
	Name               string  `json:"name"`
	Description        *string `json:"description,omitempty"`
	PriceCents         int64   `json:"price_cents"`
	OriginalPriceCents *int64  `json:"original_price_cents,omitempty"`
	Stock              int     `json:"stock"`
	ImageURL           *string `json:"image_url,omitempty"`
	IsActive           bool    `json:"is_active"`
}

// ToSummary projects a product row for API responses.
func ToSummary(p models.Product) Summary {
	return Summary{
		ID:                 p.ID,
		SKU:                p.SKU,
		Name:               p.Name,
		Description:        p.Description,
		PriceCents:         p.PriceCents,
		OriginalPriceCents: p.OriginalPriceCents,
		Stock:              p.Stock,
		ImageURL:           p.ImageURL,
		IsActive:           p.IsActive,
	}
}

// ListResult is a page of catalog products.
type ListResult struct {
	Products   []Summary `json:"products"`
	NextCursor string    `json:"next_cursor,omitempty"`
}
