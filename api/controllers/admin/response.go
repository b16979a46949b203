package admin

import (
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/reconciliation"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// ReconcileResponse reports what a manual trigger or status change did to the order.
type ReconcileResponse struct {
	Outcome        reconciliation.Outcome      `json:"outcome"`
	OrderID        int64                       `json:"order_id,omitempty"`
	PaymentID      string                      `json:"payment_id,omitempty"`
	GatewayStatus  string                      `json:"gateway_status,omitempty"`
	MappedStatus   reconciliation.MappedStatus `json:"mapped_status,omitempty"`
	FromStatus     enums.OrderStatus           `json:"from_status,omitempty"`
	OrderStatus    enums.OrderStatus           `json:"order_status,omitempty"`
	Reason         string                      `json:"reason,omitempty"`
	StockDeducted  []payloads.StockLine        `json:"stock_deducted,omitempty"`
	Shortfalls     []inventory.Shortfall       `json:"shortfalls,omitempty"`
	StockRestocked []payloads.StockLine        `json:"stock_restocked,omitempty"`
}

func toResponse(result *reconciliation.Result) ReconcileResponse {
	resp := ReconcileResponse{
		Outcome:       result.Outcome,
		OrderID:       result.OrderID,
		PaymentID:     result.PaymentID,
		GatewayStatus: result.GatewayStatus,
		MappedStatus:  result.MappedStatus,
		FromStatus:    result.FromStatus,
		OrderStatus:   result.OrderStatus,
		Reason:        result.Decision.Reason,
	}
	if d := result.Deduction; d != nil {
		resp.StockDeducted = d.Deducted
		resp.Shortfalls = d.Shortfalls
	}
	if r := result.Restock; r != nil {
		resp.StockRestocked = r.Restocks
	}
	return resp
}
