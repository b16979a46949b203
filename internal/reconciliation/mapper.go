package reconciliation

import (
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// MappedStatus is the internal payment outcome derived from a gateway status.
type MappedStatus string

const (
	MappedPaid      MappedStatus = "paid"
	MappedPending   MappedStatus = "pending"
	MappedFailed    MappedStatus = "failed"
	MappedCancelled MappedStatus = "cancelled"
	MappedRefunded  MappedStatus = "refunded"
)

var gatewayStatusMap = map[enums.GatewayStatus]MappedStatus{
	enums.GatewayStatusApproved:  MappedPaid,
	enums.GatewayStatusInProcess: MappedPending,
	enums.GatewayStatusPending:   MappedPending,
	enums.GatewayStatusRejected:  MappedFailed,
	enums.GatewayStatusCancelled: MappedCancelled,
	enums.GatewayStatusRefunded:  MappedRefunded,
}

// MapGatewayStatus translates a raw gateway status. The bool is false for any status
// outside the known vocabulary, which means no transition.
func MapGatewayStatus(raw string) (MappedStatus, bool) {
	mapped, ok := gatewayStatusMap[enums.GatewayStatus(strings.ToLower(strings.TrimSpace(raw)))]
	return mapped, ok
}

// OrderStatus is the order status a mapped outcome persists as.
func (m MappedStatus) OrderStatus() enums.OrderStatus {
	switch m {
	case MappedPaid:
		return enums.OrderStatusPaid
	case MappedPending:
		return enums.OrderStatusPendingPayment
	case MappedFailed:
		return enums.OrderStatusFailed
	case MappedCancelled:
		return enums.OrderStatusCancelled
	case MappedRefunded:
		return enums.OrderStatusRefunded
	}
	return ""
}
