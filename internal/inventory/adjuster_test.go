package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

type countingMetrics struct {
	shortfalls int
	restocked  int
}

func (m *countingMetrics) AddShortfalls(n int) { m.shortfalls += n }
func (m *countingMetrics) AddRestocked(n int)  { m.restocked += n }

type fixture struct {
	conn     *gorm.DB
	adjuster *Adjuster
	metrics  *countingMetrics
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.NewSQLite(t)
	metrics := &countingMetrics{}
	adj, err := NewAdjuster(
		db.FromGorm(conn),
		orders.NewRepository(conn),
		product.NewRepository(conn),
		outbox.NewService(outbox.NewRepository(conn), nil),
		metrics,
		nil,
	)
	require.NoError(t, err)
	return fixture{conn: conn, adjuster: adj, metrics: metrics}
}

type line struct {
	stock int
	qty   int
}

func (f fixture) seed(t *testing.T, status enums.OrderStatus, lines ...line) (*models.Order, []int64) {
	t.Helper()
	order := &models.Order{
		Status:         status,
		DeliveryMethod: enums.DeliveryMethodPickup,
		CustomerName:   "Ana",
		CustomerEmail:  "ana@example.com",
	}
	productIDs := make([]int64, 0, len(lines))
	for i, l := range lines {
		p := models.Product{SKU: "sku-" + string(rune('a'+i)), Name: "Product", PriceCents: 100, Stock: l.stock, IsActive: true}
		require.NoError(t, f.conn.Create(&p).Error)
		productIDs = append(productIDs, p.ID)
		order.Items = append(order.Items, models.OrderItem{ProductID: p.ID, ProductName: p.Name, Quantity: l.qty, PriceAtPurchaseCents: 100})
	}
	require.NoError(t, f.conn.Create(order).Error)
	return order, productIDs
}

func (f fixture) stock(t *testing.T, productID int64) int {
	t.Helper()
	var p models.Product
	require.NoError(t, f.conn.First(&p, productID).Error)
	return p.Stock
}

func (f fixture) events(t *testing.T, eventType enums.OutboxEventType) int {
	t.Helper()
	var count int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return int(count)
}

func TestDeductStockForOrderAppliesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, products := f.seed(t, enums.OrderStatusPaid, line{stock: 10, qty: 1})

	first, err := f.adjuster.DeductStockForOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, first.AlreadyApplied)
	require.Len(t, first.Deducted, 1)

	for i := 0; i < 3; i++ {
		again, err := f.adjuster.DeductStockForOrder(ctx, order.ID)
		require.NoError(t, err)
		assert.True(t, again.AlreadyApplied)
		assert.Empty(t, again.Deducted)
	}

	assert.Equal(t, 9, f.stock(t, products[0]))
	assert.Equal(t, 1, f.events(t, enums.EventStockDeducted))
}

func TestDeductStockForOrderReportsShortfall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, products := f.seed(t, enums.OrderStatusPaid, line{stock: 2, qty: 5}, line{stock: 4, qty: 1})

	res, err := f.adjuster.DeductStockForOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, res.Shortfalls, 1)
	assert.Equal(t, Shortfall{ItemID: order.Items[0].ID, ProductID: products[0], Requested: 5, Available: 2}, res.Shortfalls[0])
	require.Len(t, res.Deducted, 1)

	assert.Equal(t, 2, f.stock(t, products[0]))
	assert.Equal(t, 3, f.stock(t, products[1]))
	assert.Equal(t, 1, f.metrics.shortfalls)
	assert.Equal(t, 1, f.events(t, enums.EventInventoryShortfall))

	var items []models.OrderItem
	require.NoError(t, f.conn.Where("order_id = ?", order.ID).Order("id ASC").Find(&items).Error)
	assert.False(t, items[0].StockDeducted)
	assert.True(t, items[1].StockDeducted)
}

func TestRestockReturnsOnlyDeductedLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, products := f.seed(t, enums.OrderStatusPaid, line{stock: 2, qty: 5}, line{stock: 4, qty: 1})

	_, err := f.adjuster.DeductStockForOrder(ctx, order.ID)
	require.NoError(t, err)

	res, err := f.adjuster.RestockItemsForOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	require.Len(t, res.Restocks, 1)
	assert.Equal(t, products[1], res.Restocks[0].ProductID)

	assert.Equal(t, 2, f.stock(t, products[0]))
	assert.Equal(t, 4, f.stock(t, products[1]))
	assert.Equal(t, 1, f.metrics.restocked)

	again, err := f.adjuster.RestockItemsForOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, again.Skipped)
	assert.Equal(t, 4, f.stock(t, products[1]))
}

func TestRestockSkipsOrdersNeverDeducted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, products := f.seed(t, enums.OrderStatusCancelled, line{stock: 10, qty: 3})

	res, err := f.adjuster.RestockItemsForOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, 10, f.stock(t, products[0]))
	assert.Zero(t, f.events(t, enums.EventStockRestocked))
}

func TestDeductAfterRestockDoesNotReapply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, products := f.seed(t, enums.OrderStatusPaid, line{stock: 5, qty: 2})

	_, err := f.adjuster.DeductStockForOrder(ctx, order.ID)
	require.NoError(t, err)
	_, err = f.adjuster.RestockItemsForOrder(ctx, order.ID)
	require.NoError(t, err)
	res, err := f.adjuster.DeductStockForOrder(ctx, order.ID)
	require.NoError(t, err)

	assert.True(t, res.AlreadyApplied)
	assert.Equal(t, 5, f.stock(t, products[0]))
}

func TestDeductSkipsOrderCancelledBeforeClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, products := f.seed(t, enums.OrderStatusPaid, line{stock: 6, qty: 2})
	// an admin cancel commits between the paid transition and the deduction
	require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", enums.OrderStatusCancelled).Error)

	res, err := f.adjuster.DeductStockForOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, res.NotSettled)
	assert.False(t, res.AlreadyApplied)
	assert.Empty(t, res.Deducted)
	assert.Equal(t, 6, f.stock(t, products[0]))
	assert.Zero(t, f.events(t, enums.EventStockDeducted))

	restock, err := f.adjuster.RestockItemsForOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, restock.Skipped)
	assert.Equal(t, 6, f.stock(t, products[0]))
}

func TestNewAdjusterValidatesDependencies(t *testing.T) {
	_, err := NewAdjuster(nil, nil, nil, nil, nil, nil)
	assert.Error(t, err)
}
