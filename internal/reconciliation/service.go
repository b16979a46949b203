package reconciliation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/gateway"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type stockAdjuster interface {
	DeductStockForOrder(ctx context.Context, orderID int64) (*inventory.DeductResult, error)
	RestockItemsForOrder(ctx context.Context, orderID int64) (*inventory.RestockResult, error)
}

type productLoader interface {
	FindByIDs(ctx context.Context, ids []int64) (map[int64]models.Product, error)
}

// PaymentGateway is the read surface of the payment gateway used to fetch authoritative statuses.
type PaymentGateway interface {
	GetPayment(ctx context.Context, paymentID string) (*gateway.Payment, error)
	SearchPayments(ctx context.Context, externalReference string) ([]gateway.Payment, error)
}

type outcomeRecorder interface {
	IncOutcome(source, outcome string)
}

// Event is a payment status observation from any trigger.
type Event struct {
	PaymentID         string
	GatewayStatus     string
	ExternalReference string
	Source            Source
}

// Actor identifies the back-office user behind a manual transition.
type Actor struct {
	Subject string
	Role    string
}

// Result describes what a reconciliation attempt did.
type Result struct {
	Outcome         Outcome
	OrderID         int64
	PaymentID       string
	GatewayStatus   string
	MappedStatus    MappedStatus
	FromStatus      enums.OrderStatus
	OrderStatus     enums.OrderStatus
	Decision        Decision
	Deduction       *inventory.DeductResult
	Restock         *inventory.RestockResult
	RestorableItems []RestorableItem
	Payment         *gateway.Payment
}

// Service applies payment status events to orders. Every trigger funnels into the same decision
// function and compare-and-swap write; sources only differ in what the caller does with the result.
type Service struct {
	tx       txRunner
	orders   orders.Repository
	products productLoader
	stock    stockAdjuster
	outbox   outboxPublisher
	gateway  PaymentGateway
	metrics  outcomeRecorder
	logg     *logger.Logger
}

// NewService wires the reconciliation service. metrics may be nil.
func NewService(
	tx txRunner,
	ordersRepo orders.Repository,
	products productLoader,
	stock stockAdjuster,
	publisher outboxPublisher,
	gw PaymentGateway,
	metrics outcomeRecorder,
	logg *logger.Logger,
) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock adjuster required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if gw == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		tx:       tx,
		orders:   ordersRepo,
		products: products,
		stock:    stock,
		outbox:   publisher,
		gateway:  gw,
		metrics:  metrics,
		logg:     logg,
	}, nil
}

// ReconcilePayment fetches the authoritative payment from the gateway and reconciles it.
func (s *Service) ReconcilePayment(ctx context.Context, paymentID string, source Source) (*Result, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	ctx = s.logg.WithPaymentID(ctx, paymentID)
	payment, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		s.record(source, OutcomeError)
		return nil, err
	}
	result, err := s.Reconcile(ctx, eventFromPayment(payment, source))
	if err != nil {
		return nil, err
	}
	result.Payment = payment
	return result, nil
}

// ReconcileOrderPayments looks up payments by order reference, for orders whose payment id was never recorded.
// An approved payment wins over newer attempts; otherwise the most recent payment is used.
func (s *Service) ReconcileOrderPayments(ctx context.Context, orderID int64, source Source) (*Result, error) {
	payments, err := s.gateway.SearchPayments(ctx, strconv.FormatInt(orderID, 10))
	if err != nil {
		s.record(source, OutcomeError)
		return nil, err
	}
	if len(payments) == 0 {
		s.record(source, OutcomeUnresolved)
		return &Result{Outcome: OutcomeUnresolved, OrderID: orderID}, nil
	}
	chosen := payments[0]
	for _, p := range payments {
		if p.Status == enums.GatewayStatusApproved {
			chosen = p
			break
		}
	}
	result, err := s.Reconcile(ctx, eventFromPayment(&chosen, source))
	if err != nil {
		return nil, err
	}
	result.Payment = &chosen
	return result, nil
}

func eventFromPayment(p *gateway.Payment, source Source) Event {
	return Event{
		PaymentID:         p.ID,
		GatewayStatus:     p.RawStatus,
		ExternalReference: p.ExternalReference,
		Source:            source,
	}
}

// Reconcile resolves the order, maps the status, decides and applies the transition.
// An event that matches no order is not an error; the Result carries OutcomeUnresolved.
func (s *Service) Reconcile(ctx context.Context, evt Event) (*Result, error) {
	evt.PaymentID = strings.TrimSpace(evt.PaymentID)
	result := &Result{PaymentID: evt.PaymentID, GatewayStatus: evt.GatewayStatus}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"payment_id":     evt.PaymentID,
		"source":         string(evt.Source),
		"gateway_status": evt.GatewayStatus,
	})

	order, err := s.resolveOrder(ctx, evt)
	if err != nil {
		s.record(evt.Source, OutcomeError)
		s.logg.Error(ctx, "reconcile.resolve_failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve order")
	}
	if order == nil {
		result.Outcome = OutcomeUnresolved
		s.record(evt.Source, result.Outcome)
		s.logg.Warn(ctx, "reconcile.unresolved")
		return result, nil
	}
	ctx = s.logg.WithOrderID(ctx, order.ID)
	result.OrderID = order.ID
	result.FromStatus = order.Status
	result.OrderStatus = order.Status

	mapped, ok := MapGatewayStatus(evt.GatewayStatus)
	if !ok {
		result.Outcome = OutcomeIgnoredStatus
		s.record(evt.Source, result.Outcome)
		s.logg.Info(ctx, "reconcile.ignored_status")
		return result, nil
	}
	result.MappedStatus = mapped

	decision := Decide(order, mapped, evt.Source)
	result.Decision = decision

	var paymentID *string
	if evt.PaymentID != "" {
		paymentID = &evt.PaymentID
	}
	if err := s.apply(ctx, order, decision, paymentID, &outbox.ActorRef{Source: string(evt.Source)}, result); err != nil {
		s.record(evt.Source, OutcomeError)
		s.logg.Error(ctx, "reconcile.apply_failed", err)
		return nil, err
	}

	// A lost race can leave the order settled; its cart is no longer the shopper's to re-buy.
	if decision.ReturnRestorable && !result.OrderStatus.IsSettled() &&
		result.OrderStatus != enums.OrderStatusAwaitingPaymentInStore {
		items, err := s.restorableItems(ctx, order)
		if err != nil {
			s.logg.Error(ctx, "reconcile.restorable_failed", err)
		} else {
			result.RestorableItems = items
		}
	}

	s.record(evt.Source, result.Outcome)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"from_status": string(result.FromStatus),
		"to_status":   string(result.OrderStatus),
		"outcome":     string(result.Outcome),
		"reason":      decision.Reason,
	})
	s.logg.Info(ctx, "reconcile.completed")
	return result, nil
}

// AdminTransition applies a back-office status change through the same compare-and-swap path.
func (s *Service) AdminTransition(ctx context.Context, orderID int64, target enums.OrderStatus, actor Actor) (*Result, error) {
	ctx = s.logg.WithOrderID(ctx, orderID)
	ctx = s.logg.WithActor(ctx, actor.Subject, actor.Role)

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	decision, err := DecideAdminTransition(order, target)
	if err != nil {
		return nil, err
	}
	result := &Result{
		OrderID:     order.ID,
		FromStatus:  order.Status,
		OrderStatus: order.Status,
		Decision:    decision,
	}
	if order.PaymentID != nil {
		result.PaymentID = *order.PaymentID
	}

	ref := &outbox.ActorRef{Subject: actor.Subject, Role: actor.Role, Source: string(SourceAdmin)}
	if err := s.apply(ctx, order, decision, nil, ref, result); err != nil {
		s.record(SourceAdmin, OutcomeError)
		return nil, err
	}
	if result.Outcome == OutcomeLostRace {
		s.record(SourceAdmin, result.Outcome)
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently").
			WithDetails(map[string]any{"status": result.OrderStatus})
	}

	s.record(SourceAdmin, result.Outcome)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"from_status": string(result.FromStatus),
		"to_status":   string(result.OrderStatus),
		"outcome":     string(result.Outcome),
	})
	s.logg.Info(ctx, "order.admin_transition")
	return result, nil
}

// apply performs the compare-and-swap and its outbox event in one transaction, then the stock side effects.
// Stock failures are logged and never returned: the status write has already committed.
func (s *Service) apply(ctx context.Context, order *models.Order, decision Decision, paymentID *string, actor *outbox.ActorRef, result *Result) error {
	if !decision.Transition {
		result.Outcome = OutcomeNoop
		return nil
	}

	var applied bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		applied, err = s.orders.WithTx(tx).TransitionStatus(ctx, order.ID, decision.From, decision.To, paymentID)
		if err != nil || !applied || decision.To == order.Status {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   outbox.OrderAggregateID(order.ID),
			Actor:         actor,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:   order.ID,
				From:      order.Status,
				To:        decision.To,
				PaymentID: paymentIDFor(order, paymentID),
				Source:    actor.Source,
				Reason:    decision.Reason,
			},
		})
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply order transition")
	}

	if !applied {
		result.Outcome = OutcomeLostRace
		current, err := s.orders.FindByID(ctx, order.ID)
		if err == nil && current != nil {
			result.OrderStatus = current.Status
		}
		s.logg.Warn(ctx, "reconcile.lost_race")
		return nil
	}

	result.OrderStatus = decision.To
	if decision.To == order.Status {
		result.Outcome = OutcomeNoop
	} else {
		result.Outcome = OutcomeTransitioned
	}

	if decision.DeductStock {
		deduction, err := s.stock.DeductStockForOrder(ctx, order.ID)
		if err != nil {
			s.logg.Error(ctx, "inventory.deduct.failed", err)
		}
		result.Deduction = deduction
	}
	if decision.Restock {
		restock, err := s.stock.RestockItemsForOrder(ctx, order.ID)
		if err != nil {
			s.logg.Error(ctx, "inventory.restock.failed", err)
		}
		result.Restock = restock
	}
	return nil
}

func paymentIDFor(order *models.Order, paymentID *string) *string {
	if order.PaymentID != nil {
		return order.PaymentID
	}
	return paymentID
}

func (s *Service) resolveOrder(ctx context.Context, evt Event) (*models.Order, error) {
	if evt.PaymentID != "" {
		order, err := s.orders.FindByPaymentID(ctx, evt.PaymentID)
		if err != nil || order != nil {
			return order, err
		}
	}
	ref := strings.TrimSpace(evt.ExternalReference)
	if ref == "" {
		return nil, nil
	}
	orderID, err := strconv.ParseInt(ref, 10, 64)
	if err != nil || orderID <= 0 {
		return nil, nil
	}
	return s.orders.FindByID(ctx, orderID)
}

func (s *Service) record(source Source, outcome Outcome) {
	if s.metrics != nil {
		s.metrics.IncOutcome(string(source), string(outcome))
	}
}
