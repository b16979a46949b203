package bootstrap

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/reconciliation"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

// Reconciliation is the order/stock core both the API and the cron worker drive.
type Reconciliation struct {
	Orders     orders.Repository
	Products   *product.Repository
	Outbox     *outbox.Service
	Stock      *inventory.Adjuster
	Reconciler *reconciliation.Service
	Metrics    *metrics.ReconciliationMetrics
}

func NewReconciliation(client *db.Client, gw reconciliation.PaymentGateway, reg prometheus.Registerer, logg *logger.Logger) (*Reconciliation, error) {
	r := &Reconciliation{
		Orders:   orders.NewRepository(client.DB()),
		Products: product.NewRepository(client.DB()),
		Outbox:   outbox.NewService(outbox.NewRepository(client.DB()), logg),
		Metrics:  metrics.NewReconciliationMetrics(reg),
	}

	var err error
	r.Stock, err = inventory.NewAdjuster(client, r.Orders, r.Products, r.Outbox, r.Metrics, logg)
	if err != nil {
		return nil, fmt.Errorf("stock adjuster: %w", err)
	}
	r.Reconciler, err = reconciliation.NewService(client, r.Orders, r.Products, r.Stock, r.Outbox, gw, r.Metrics, logg)
	if err != nil {
		return nil, fmt.Errorf("reconciliation service: %w", err)
	}
	return r, nil
}
