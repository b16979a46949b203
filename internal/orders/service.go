package orders

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/coupons"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/gateway"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// PreferenceCreator opens hosted checkout sessions at the payment gateway.
type PreferenceCreator interface {
	CreatePreference(ctx context.Context, req gateway.PreferenceRequest) (*gateway.Preference, error)
}

// Service exposes checkout and order read operations.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderSummary, error)
	GetOrder(ctx context.Context, id int64) (*OrderSummary, error)
	ListOrders(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error)
	CreatePaymentPreference(ctx context.Context, orderID int64) (*PaymentPreference, error)
}

type service struct {
	tx          txRunner
	repo        Repository
	products    *product.Repository
	coupons     *coupons.Repository
	outbox      outboxPublisher
	preferences PreferenceCreator
	gatewayCfg  config.GatewayConfig
	now         func() time.Time
}

// NewService builds the orders service.
func NewService(
	tx txRunner,
	repo Repository,
	products *product.Repository,
	couponRepo *coupons.Repository,
	publisher outboxPublisher,
	preferences PreferenceCreator,
	gatewayCfg config.GatewayConfig,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if couponRepo == nil {
		return nil, fmt.Errorf("coupons repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if preferences == nil {
		return nil, fmt.Errorf("preference creator required")
	}
	return &service{
		tx:          tx,
		repo:        repo,
		products:    products,
		coupons:     couponRepo,
		outbox:      publisher,
		preferences: preferences,
		gatewayCfg:  gatewayCfg,
		now:         time.Now,
	}, nil
}

// CreateOrder validates every line against locked product rows and persists the order in one transaction.
// Stock is only checked here; it is deducted when the payment settles.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderSummary, error) {
	lines, err := mergeLines(input.Items)
	if err != nil {
		return nil, err
	}
	if !input.DeliveryMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery method")
	}
	if input.DeliveryMethod == enums.DeliveryMethodShipping && (input.ShippingAddress == nil || strings.TrimSpace(*input.ShippingAddress) == "") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address required for shipping orders")
	}

	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}

	var created *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		found, err := s.products.WithTx(tx).FindByIDsForUpdate(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
		}

		items := make([]models.OrderItem, 0, len(lines))
		var subtotal int64
		for _, line := range lines {
			p, ok := found[line.ProductID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("product %d not found", line.ProductID)).
					WithDetails(map[string]any{"product_id": line.ProductID})
			}
			if !p.IsActive {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("product %d is not available", line.ProductID)).
					WithDetails(map[string]any{"product_id": line.ProductID})
			}
			if p.Stock < line.Quantity {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("insufficient stock for product %d", line.ProductID)).
					WithDetails(map[string]any{
						"product_id": line.ProductID,
						"requested":  line.Quantity,
						"available":  p.Stock,
					})
			}
			items = append(items, models.OrderItem{
				ProductID:            p.ID,
				ProductName:          p.Name,
				Quantity:             line.Quantity,
				PriceAtPurchaseCents: p.PriceCents,
				OriginalPriceCents:   p.OriginalPriceCents,
			})
			subtotal += p.PriceCents * int64(line.Quantity)
		}

		var discount int64
		var couponCode *string
		if input.CouponCode != nil && strings.TrimSpace(*input.CouponCode) != "" {
			code := coupons.NormalizeCode(*input.CouponCode)
			coupon, err := s.coupons.WithTx(tx).FindByCode(ctx, code)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
			}
			discount, err = coupons.Discount(coupon, subtotal, s.now().UTC())
			if err != nil {
				return err
			}
			couponCode = &code
		}

		order := &models.Order{
			Status:          input.DeliveryMethod.InitialOrderStatus(),
			DeliveryMethod:  input.DeliveryMethod,
			CustomerName:    strings.TrimSpace(input.CustomerName),
			CustomerEmail:   strings.TrimSpace(input.CustomerEmail),
			CustomerPhone:   input.CustomerPhone,
			ShippingAddress: input.ShippingAddress,
			SubtotalCents:   subtotal,
			DiscountCents:   discount,
			TotalCents:      subtotal - discount,
			CouponCode:      couponCode,
			Items:           items,
		}
		created, err = s.repo.WithTx(tx).CreateOrder(ctx, order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   outbox.OrderAggregateID(created.ID),
			Data: payloads.OrderCreatedEvent{
				OrderID:        created.ID,
				Status:         created.Status,
				DeliveryMethod: created.DeliveryMethod,
				TotalCents:     created.TotalCents,
				ItemCount:      len(created.Items),
				CouponCode:     created.CouponCode,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	summary := ToSummary(*created)
	return &summary, nil
}

// mergeLines folds duplicate product ids and orders lines by product id so row locks are taken consistently.
func mergeLines(items []CreateOrderItem) ([]CreateOrderItem, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	byProduct := make(map[int64]int, len(items))
	for _, item := range items {
		if item.ProductID <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		byProduct[item.ProductID] += item.Quantity
	}
	out := make([]CreateOrderItem, 0, len(byProduct))
	for id, qty := range byProduct {
		out = append(out, CreateOrderItem{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (s *service) GetOrder(ctx context.Context, id int64) (*OrderSummary, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	summary := ToSummary(*order)
	return &summary, nil
}

func (s *service) ListOrders(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error) {
	list, err := s.repo.List(ctx, params, filters)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

// CreatePaymentPreference opens a hosted checkout for a pending_payment order.
// The order id travels as the external reference so notifications can be resolved before a payment id is stored.
func (s *service) CreatePaymentPreference(ctx context.Context, orderID int64) (*PaymentPreference, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.Status != enums.OrderStatusPendingPayment {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting online payment").
			WithDetails(map[string]any{"status": order.Status})
	}

	req := gateway.PreferenceRequest{
		Items:             preferenceItems(order, s.gatewayCfg.CurrencyID),
		Payer:             &gateway.PreferencePayer{Name: order.CustomerName, Email: order.CustomerEmail},
		ExternalReference: strconv.FormatInt(order.ID, 10),
		NotificationURL:   s.gatewayCfg.NotificationURL,
	}
	if s.gatewayCfg.SuccessURL != "" {
		req.BackURLs = &gateway.BackURLs{
			Success: s.gatewayCfg.SuccessURL,
			Failure: s.gatewayCfg.FailureURL,
			Pending: s.gatewayCfg.PendingURL,
		}
		req.AutoReturn = "approved"
	}

	pref, err := s.preferences.CreatePreference(ctx, req)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "create payment preference")
	}
	return &PaymentPreference{
		OrderID:          order.ID,
		PreferenceID:     pref.ID,
		InitPoint:        pref.InitPoint,
		SandboxInitPoint: pref.SandboxInitPoint,
	}, nil
}

// preferenceItems bills the order total as line items, folding any coupon discount into a single line.
func preferenceItems(order *models.Order, currency string) []gateway.PreferenceItem {
	if order.DiscountCents > 0 {
		return []gateway.PreferenceItem{{
			ID:         strconv.FormatInt(order.ID, 10),
			Title:      fmt.Sprintf("Order #%d", order.ID),
			Quantity:   1,
			UnitPrice:  gateway.UnitPriceFromCents(order.TotalCents),
			CurrencyID: currency,
		}}
	}
	items := make([]gateway.PreferenceItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, gateway.PreferenceItem{
			ID:         strconv.FormatInt(item.ProductID, 10),
			Title:      item.ProductName,
			Quantity:   item.Quantity,
			UnitPrice:  gateway.UnitPriceFromCents(item.PriceAtPurchaseCents),
			CurrencyID: currency,
		})
	}
	return items
}
