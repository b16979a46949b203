package enums

import "fmt"

// DeliveryMethod maps to the delivery_method enum in Postgres.
type DeliveryMethod string

const (
	DeliveryMethodShipping   DeliveryMethod = "shipping"
	DeliveryMethodPickup     DeliveryMethod = "pickup"
	DeliveryMethodPayInStore DeliveryMethod = "pay_in_store"
)

var validDeliveryMethods = []DeliveryMethod{
	DeliveryMethodShipping,
	DeliveryMethodPickup,
	DeliveryMethodPayInStore,
}

// String implements fmt.Stringer.
func (d DeliveryMethod) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryMethod.
func (d DeliveryMethod) IsValid() bool {
	for _, candidate := range validDeliveryMethods {
		if candidate == d {
			return true
		}
	}
	return false
}

// InitialOrderStatus returns the status a new order starts in. In-store payment
// skips the gateway entirely and defers stock deduction to handover.
func (d DeliveryMethod) InitialOrderStatus() OrderStatus {
	if d == DeliveryMethodPayInStore {
		return OrderStatusAwaitingPaymentInStore
	}
	return OrderStatusPendingPayment
}

// ParseDeliveryMethod converts raw input into a DeliveryMethod.
func ParseDeliveryMethod(value string) (DeliveryMethod, error) {
	for _, candidate := range validDeliveryMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery method %q", value)
}
