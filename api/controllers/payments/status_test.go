package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/reconciliation"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/gateway"
)

type stubReconciler struct {
	result *reconciliation.Result
	err    error
	source reconciliation.Source
}

func (s *stubReconciler) ReconcilePayment(_ context.Context, _ string, source reconciliation.Source) (*reconciliation.Result, error) {
	s.source = source
	return s.result, s.err
}

func serve(t *testing.T, svc PaymentReconciler, paymentID string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/api/v1/payments/{paymentId}/status", Status(svc, nil))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/payments/"+paymentID+"/status", nil))
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestStatusReturnsRestorableCartOnRejection(t *testing.T) {
	svc := &stubReconciler{result: &reconciliation.Result{
		Outcome:       reconciliation.OutcomeTransitioned,
		PaymentID:     "p1",
		GatewayStatus: "rejected",
		MappedStatus:  reconciliation.MappedFailed,
		OrderID:       7,
		OrderStatus:   enums.OrderStatusFailed,
		Payment:       &gateway.Payment{ID: "p1", StatusDetail: "cc_rejected_insufficient_amount"},
		RestorableItems: []reconciliation.RestorableItem{
			{Product: product.Summary{ID: 3, Name: "Mug"}, Quantity: 1},
		},
	}}

	rec := serve(t, svc, "p1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, reconciliation.SourcePoll, svc.source)

	var body struct {
		Data StatusResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rejected", body.Data.Status)
	assert.Equal(t, "cc_rejected_insufficient_amount", body.Data.StatusDetail)
	assert.Equal(t, enums.OrderStatusFailed, body.Data.OrderStatus)
	require.Len(t, body.Data.RestorableCartItems, 1)
	assert.Equal(t, int64(3), body.Data.RestorableCartItems[0].Product.ID)
}

func TestStatusUnresolvedIsNotFound(t *testing.T) {
	svc := &stubReconciler{result: &reconciliation.Result{Outcome: reconciliation.OutcomeUnresolved, PaymentID: "p1"}}

	rec := serve(t, svc, "p1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeNotFound), errorCode(t, rec))
}

func TestStatusSurfacesErrors(t *testing.T) {
	svc := &stubReconciler{err: pkgerrors.New(pkgerrors.CodeGateway, "gateway timeout")}

	rec := serve(t, svc, "p1")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestStatusNeverReportsPaidWithoutRecordedPaid(t *testing.T) {
	svc := &stubReconciler{result: &reconciliation.Result{
		Outcome:       reconciliation.OutcomeNoop,
		PaymentID:     "p1",
		GatewayStatus: "approved",
		MappedStatus:  reconciliation.MappedPaid,
		OrderID:       7,
		OrderStatus:   enums.OrderStatusCancelled,
	}}

	rec := serve(t, svc, "p1")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeStateConflict), errorCode(t, rec))
}
