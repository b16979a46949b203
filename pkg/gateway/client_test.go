package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	client, err := NewClient("TEST-token", WithBaseURL("http://gateway.test"), WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresAccessToken(t *testing.T) {
	_, err := NewClient("  ")
	require.Error(t, err)
}

func TestGetPayment(t *testing.T) {
	var captured *http.Request
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		captured = req
		return jsonResponse(http.StatusOK, `{"id":123456789,"status":"approved","status_detail":"accredited","external_reference":"42","transaction_amount":150.5,"currency_id":"ARS"}`), nil
	})

	payment, err := client.GetPayment(context.Background(), "123456789")
	require.NoError(t, err)

	assert.Equal(t, "http://gateway.test/v1/payments/123456789", captured.URL.String())
	assert.Equal(t, "Bearer TEST-token", captured.Header.Get("Authorization"))
	assert.Equal(t, "123456789", payment.ID)
	assert.Equal(t, enums.GatewayStatusApproved, payment.Status)
	assert.Equal(t, "accredited", payment.StatusDetail)
	assert.Equal(t, "42", payment.ExternalReference)
	assert.Equal(t, "150.5", payment.TransactionAmount.String())
}

func TestGetPaymentUnknownStatusKeepsRaw(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"id":"77","status":"charged_back"}`), nil
	})

	payment, err := client.GetPayment(context.Background(), "77")
	require.NoError(t, err)
	assert.Equal(t, enums.GatewayStatus(""), payment.Status)
	assert.Equal(t, "charged_back", payment.RawStatus)
}

func TestGetPaymentNotFound(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusNotFound, `{"message":"Payment not found"}`), nil
	})

	_, err := client.GetPayment(context.Background(), "999")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestGetPaymentUpstreamFailure(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusInternalServerError, `boom`), nil
	})

	_, err := client.GetPayment(context.Background(), "1")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGateway))
}

func TestSearchPayments(t *testing.T) {
	var captured *http.Request
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		captured = req
		return jsonResponse(http.StatusOK, `{"results":[{"id":2,"status":"rejected","external_reference":"42"},{"id":1,"status":"pending","external_reference":"42"}]}`), nil
	})

	payments, err := client.SearchPayments(context.Background(), "42")
	require.NoError(t, err)

	assert.Equal(t, "/v1/payments/search", captured.URL.Path)
	assert.Equal(t, "42", captured.URL.Query().Get("external_reference"))
	assert.Equal(t, "desc", captured.URL.Query().Get("criteria"))
	require.Len(t, payments, 2)
	assert.Equal(t, "2", payments[0].ID)
	assert.Equal(t, enums.GatewayStatusRejected, payments[0].Status)
}

func TestCreatePreference(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		require.Equal(t, http.MethodPost, req.Method)
		require.Equal(t, "/checkout/preferences", req.URL.Path)
		raw, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &body))
		return jsonResponse(http.StatusCreated, `{"id":"pref-1","init_point":"https://checkout.test/pref-1"}`), nil
	})

	pref, err := client.CreatePreference(context.Background(), PreferenceRequest{
		Items: []PreferenceItem{
			{ID: "7", Title: "Mate", Quantity: 2, UnitPrice: UnitPriceFromCents(1999), CurrencyID: "ARS"},
		},
		ExternalReference: "42",
		NotificationURL:   "https://shop.test/api/v1/webhooks/gateway",
		AutoReturn:        "approved",
	})
	require.NoError(t, err)

	assert.Equal(t, "pref-1", pref.ID)
	assert.Equal(t, "https://checkout.test/pref-1", pref.InitPoint)
	assert.Equal(t, "42", body["external_reference"])
	items := body["items"].([]any)
	assert.Equal(t, 19.99, items[0].(map[string]any)["unit_price"])
}

func TestCreatePreferenceValidation(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		t.Fatalf("request should not be sent")
		return nil, nil
	})

	_, err := client.CreatePreference(context.Background(), PreferenceRequest{ExternalReference: "1"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestUnitPriceFromCents(t *testing.T) {
	assert.Equal(t, "10.00", UnitPriceFromCents(1000).String())
	assert.Equal(t, "0.05", UnitPriceFromCents(5).String())
}
