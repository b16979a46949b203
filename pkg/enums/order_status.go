package enums

import "fmt"

// OrderStatus maps to the order_status enum in Postgres.
type OrderStatus string

const (
	OrderStatusPendingPayment         OrderStatus = "pending_payment"
	OrderStatusAwaitingPaymentInStore OrderStatus = "awaiting_payment_in_store"
	OrderStatusPaid                   OrderStatus = "paid"
	OrderStatusFailed                 OrderStatus = "failed"
	OrderStatusCancelled              OrderStatus = "cancelled"
	OrderStatusShipped                OrderStatus = "shipped"
	OrderStatusDelivered              OrderStatus = "delivered"
	OrderStatusRefunded               OrderStatus = "refunded"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPendingPayment,
	OrderStatusAwaitingPaymentInStore,
	OrderStatusPaid,
	OrderStatusFailed,
	OrderStatusCancelled,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusRefunded,
}

// SettledOrderStatuses are the terminal-successful statuses: payment was taken
// and stock has been (or must be) deducted.
var SettledOrderStatuses = []OrderStatus{
	OrderStatusPaid,
	OrderStatusShipped,
	OrderStatusDelivered,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsSettled reports whether the status is terminal-successful.
func (s OrderStatus) IsSettled() bool {
	for _, candidate := range SettledOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsClosedUnsuccessful reports whether the status is terminal-unsuccessful.
func (s OrderStatus) IsClosedUnsuccessful() bool {
	switch s {
	case OrderStatusFailed, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
