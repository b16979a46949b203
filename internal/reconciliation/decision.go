package reconciliation

import (
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Decision is the pure outcome of applying a mapped payment status to an order.
// When Transition is set the write is a compare-and-swap from one of From to To.
type Decision struct {
	Transition       bool
	From             []enums.OrderStatus
	To               enums.OrderStatus
	DeductStock      bool
	Restock          bool
	ReturnRestorable bool
	Reason           string
}

// Decide is the single decision function every gateway-driven trigger goes through.
// It never reads storage; the caller applies the decision atomically.
// Only a shopper polling an unsettled order gets the cart back to re-buy.
func Decide(order *models.Order, mapped MappedStatus, source Source) Decision {
	var d Decision
	restorable := source == SourcePoll && isRestorable(mapped)
	if order == nil {
		d.Reason = "order not found"
		return d
	}
	current := order.Status

	switch {
	case current.IsSettled():
		if mapped == MappedRefunded {
			d.Transition = true
			d.From = []enums.OrderStatus{current}
			d.To = enums.OrderStatusRefunded
			d.Restock = true
			d.Reason = "refund of settled order"
			return d
		}
		d.Reason = "order already settled"
		return d
	case current == enums.OrderStatusAwaitingPaymentInStore:
		d.Reason = "order is paid in store"
		return d
	case current.IsClosedUnsuccessful():
		d.ReturnRestorable = restorable
		d.Reason = "order already closed"
		return d
	case current != enums.OrderStatusPendingPayment:
		d.Reason = "unsupported order status"
		return d
	}

	to := mapped.OrderStatus()
	if to == "" {
		d.Reason = "unmapped status"
		return d
	}
	d.Transition = true
	d.ReturnRestorable = restorable
	d.From = []enums.OrderStatus{enums.OrderStatusPendingPayment}
	d.To = to
	d.DeductStock = mapped == MappedPaid
	switch mapped {
	case MappedPaid:
		d.Reason = "payment approved"
	case MappedPending:
		d.Reason = "payment still pending"
	case MappedFailed:
		d.Reason = "payment rejected"
	case MappedCancelled:
		d.Reason = "payment cancelled"
	case MappedRefunded:
		d.Reason = "payment refunded before settlement"
	}
	return d
}

func isRestorable(mapped MappedStatus) bool {
	switch mapped {
	case MappedPending, MappedFailed, MappedCancelled:
		return true
	}
	return false
}
