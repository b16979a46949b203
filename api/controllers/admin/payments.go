package admin

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/reconciliation"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// ReconcilePayment is the manual trigger: it fetches the payment and runs it through reconciliation.
// Unlike the webhook, failures are returned to the operator.
func ReconcilePayment(svc Reconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation service unavailable"))
			return
		}

		paymentID := strings.TrimSpace(chi.URLParam(r, "paymentId"))
		if paymentID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required"))
			return
		}

		result, err := svc.ReconcilePayment(r.Context(), paymentID, reconciliation.SourceManual)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toResponse(result))
	}
}
