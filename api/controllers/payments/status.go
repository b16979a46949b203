package payments

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/reconciliation"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// PaymentReconciler applies the authoritative gateway state of a payment.
type PaymentReconciler interface {
	ReconcilePayment(ctx context.Context, paymentID string, source reconciliation.Source) (*reconciliation.Result, error)
}

// StatusResponse is returned to a shopper polling after the checkout redirect.
type StatusResponse struct {
	PaymentID           string                          `json:"payment_id"`
	Status              string                          `json:"status"`
	StatusDetail        string                          `json:"status_detail,omitempty"`
	OrderID             int64                           `json:"order_id"`
	OrderStatus         enums.OrderStatus               `json:"order_status"`
	RestorableCartItems []reconciliation.RestorableItem `json:"restorable_cart_items,omitempty"`
}

// Status reconciles a payment on behalf of the shopper and reports the recorded order state.
// Unlike the webhook, errors are surfaced to the caller.
func Status(svc PaymentReconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation service unavailable"))
			return
		}

		paymentID := strings.TrimSpace(chi.URLParam(r, "paymentId"))
		if paymentID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required"))
			return
		}

		result, err := svc.ReconcilePayment(ctx, paymentID, reconciliation.SourcePoll)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if result.Outcome == reconciliation.OutcomeUnresolved {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "no order matches this payment"))
			return
		}

		resp := StatusResponse{
			PaymentID:           result.PaymentID,
			Status:              result.GatewayStatus,
			OrderID:             result.OrderID,
			OrderStatus:         result.OrderStatus,
			RestorableCartItems: result.RestorableItems,
		}
		if result.Payment != nil {
			resp.StatusDetail = result.Payment.StatusDetail
		}

		// an approved payment is only reported once the order store holds a settled status
		if result.MappedStatus == reconciliation.MappedPaid && !result.OrderStatus.IsSettled() {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeStateConflict, "payment approved but order was not marked paid").WithDetails(map[string]any{
				"order_id":     result.OrderID,
				"order_status": result.OrderStatus,
			}))
			return
		}

		responses.WriteSuccess(w, resp)
	}
}
