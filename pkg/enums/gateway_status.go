package enums

import (
	"fmt"
	"strings"
)

// GatewayStatus is the payment status vocabulary reported by the payment gateway.
type GatewayStatus string

const (
	GatewayStatusApproved  GatewayStatus = "approved"
	GatewayStatusInProcess GatewayStatus = "in_process"
	GatewayStatusPending   GatewayStatus = "pending"
	GatewayStatusRejected  GatewayStatus = "rejected"
	GatewayStatusCancelled GatewayStatus = "cancelled"
	GatewayStatusRefunded  GatewayStatus = "refunded"
)

var validGatewayStatuses = []GatewayStatus{
	GatewayStatusApproved,
	GatewayStatusInProcess,
	GatewayStatusPending,
	GatewayStatusRejected,
	GatewayStatusCancelled,
	GatewayStatusRefunded,
}

// String implements fmt.Stringer.
func (g GatewayStatus) String() string {
	return string(g)
}

// IsValid reports whether the value is a known GatewayStatus.
func (g GatewayStatus) IsValid() bool {
	for _, candidate := range validGatewayStatuses {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGatewayStatus converts raw gateway input into a GatewayStatus.
func ParseGatewayStatus(value string) (GatewayStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validGatewayStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gateway status %q", value)
}
