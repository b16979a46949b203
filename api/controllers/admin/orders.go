package admin

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/reconciliation"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// OrderReader serves the back-office order views.
type OrderReader interface {
	GetOrder(ctx context.Context, id int64) (*internalorders.OrderSummary, error)
	ListOrders(ctx context.Context, params pagination.Params, filters internalorders.ListFilters) (*internalorders.OrderList, error)
}

// Reconciler is the reconciliation surface exposed to operators.
type Reconciler interface {
	ReconcilePayment(ctx context.Context, paymentID string, source reconciliation.Source) (*reconciliation.Result, error)
	ReconcileOrderPayments(ctx context.Context, orderID int64, source reconciliation.Source) (*reconciliation.Result, error)
	AdminTransition(ctx context.Context, orderID int64, target enums.OrderStatus, actor reconciliation.Actor) (*reconciliation.Result, error)
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ListOrders pages through orders, optionally filtered by status or payment id.
func ListOrders(svc OrderReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := r.URL.Query()
		filters := internalorders.ListFilters{PaymentID: strings.TrimSpace(query.Get("payment_id"))}
		if raw := strings.TrimSpace(query.Get("status")); raw != "" {
			status, err := enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			filters.Status = &status
		}

		list, err := svc.ListOrders(r.Context(), pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(query.Get("cursor")),
		}, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// OrderDetail returns one order with its items and stock ledger timestamps.
func OrderDetail(svc OrderReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := validators.ParseID(chi.URLParam(r, "orderId"), "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// UpdateOrderStatus applies a manual status change such as shipping or in-store delivery.
func UpdateOrderStatus(svc Reconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation service unavailable"))
			return
		}

		orderID, err := validators.ParseID(chi.URLParam(r, "orderId"), "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload statusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		actor := reconciliation.Actor{
			Subject: middleware.AdminSubjectFromContext(r.Context()),
			Role:    middleware.RoleFromContext(r.Context()),
		}
		result, err := svc.AdminTransition(r.Context(), orderID, target, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toResponse(result))
	}
}

// ReconcileOrder searches the gateway for the order's payments and applies the best match.
func ReconcileOrder(svc Reconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation service unavailable"))
			return
		}

		orderID, err := validators.ParseID(chi.URLParam(r, "orderId"), "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ReconcileOrderPayments(r.Context(), orderID, reconciliation.SourceManual)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toResponse(result))
	}
}
