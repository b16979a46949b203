package reconciliation

import (
	"context"

	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// RestorableItem is an order line re-hydrated with current product data so a shopper can retry checkout.
type RestorableItem struct {
	Product  product.Summary `json:"product"`
	Quantity int             `json:"quantity"`
}

// restorableItems skips lines whose product no longer exists.
func (s *Service) restorableItems(ctx context.Context, order *models.Order) ([]RestorableItem, error) {
	if order == nil || len(order.Items) == 0 {
		return []RestorableItem{}, nil
	}
	ids := make([]int64, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ProductID)
	}
	found, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	items := make([]RestorableItem, 0, len(order.Items))
	for _, item := range order.Items {
		p, ok := found[item.ProductID]
		if !ok {
			continue
		}
		items = append(items, RestorableItem{Product: product.ToSummary(p), Quantity: item.Quantity})
	}
	return items, nil
}
