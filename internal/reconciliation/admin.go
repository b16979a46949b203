package reconciliation

import (
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type adminRule struct {
	from        enums.OrderStatus
	deductStock bool
	restock     bool
}

var adminTransitions = map[enums.OrderStatus][]adminRule{
	enums.OrderStatusShipped: {
		{from: enums.OrderStatusPaid},
	},
	enums.OrderStatusDelivered: {
		{from: enums.OrderStatusShipped},
		{from: enums.OrderStatusPaid},
		{from: enums.OrderStatusAwaitingPaymentInStore, deductStock: true},
	},
	enums.OrderStatusCancelled: {
		{from: enums.OrderStatusPendingPayment},
		{from: enums.OrderStatusAwaitingPaymentInStore},
		{from: enums.OrderStatusPaid, restock: true},
		{from: enums.OrderStatusShipped, restock: true},
	},
	enums.OrderStatusRefunded: {
		{from: enums.OrderStatusPaid, restock: true},
		{from: enums.OrderStatusShipped, restock: true},
		{from: enums.OrderStatusDelivered, restock: true},
	},
}

// DecideAdminTransition validates a back-office status change.
// Requesting the status the order already has is a no-op decision, not an error.
func DecideAdminTransition(order *models.Order, target enums.OrderStatus) (Decision, error) {
	if order == nil {
		return Decision{}, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if !target.IsValid() {
		return Decision{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if order.Status == target {
		return Decision{Reason: "order already in requested status"}, nil
	}
	for _, rule := range adminTransitions[target] {
		if rule.from != order.Status {
			continue
		}
		return Decision{
			Transition:  true,
			From:        []enums.OrderStatus{order.Status},
			To:          target,
			DeductStock: rule.deductStock,
			Restock:     rule.restock,
			Reason:      "admin transition",
		}, nil
	}
	return Decision{}, pkgerrors.New(pkgerrors.CodeStateConflict, "order status transition not allowed").
		WithDetails(map[string]any{"from": order.Status, "to": target})
}
