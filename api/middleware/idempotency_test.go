package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type replayMemory struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newReplayMemory() *replayMemory {
	return &replayMemory{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *replayMemory) Get(_ context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *replayMemory) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	return true, m.Set(ctx, key, value, ttl)
}

func (m *replayMemory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.data[key], _ = value.(string)
	m.ttls[key] = ttl
	return nil
}

func (m *replayMemory) IdempotencyKey(scope, id string) string { return "idem:" + scope + ":" + id }

func (m *replayMemory) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func postOrder(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestReplayTTL(t *testing.T) {
	cases := []struct {
		method string
		path   string
		want   time.Duration
		ok     bool
	}{
		{http.MethodPost, "/api/v1/orders", checkoutReplayTTL, true},
		{http.MethodPost, "/api/v1/orders/42/payment-preference", defaultReplayTTL, true},
		{http.MethodPost, "/api/admin/v1/orders/42/status", defaultReplayTTL, true},
		{http.MethodPost, "/api/v1/orders/42/items/payment-preference", 0, false},
		{http.MethodGet, "/api/v1/orders", 0, false},
		{http.MethodPost, "/api/v1/webhooks/gateway", 0, false},
	}
	for _, tc := range cases {
		ttl, ok := replayTTL(tc.method, tc.path)
		assert.Equal(t, tc.ok, ok, "%s %s", tc.method, tc.path)
		assert.Equal(t, tc.want, ttl, "%s %s", tc.method, tc.path)
	}
}

func TestIdempotencyPassesThroughUnlistedRoutes(t *testing.T) {
	store := newReplayMemory()
	called := false
	h := Idempotency(store, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))

	assert.True(t, called)
	assert.Empty(t, store.data)
}

func TestIdempotencyRejectsMissingKey(t *testing.T) {
	called := false
	h := Idempotency(newReplayMemory(), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postOrder("", `{"items":[]}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)
}

func TestIdempotencyReplaysStoredReply(t *testing.T) {
	store := newReplayMemory()
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"order_id":7}`))
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, postOrder("k1", `{"items":[1]}`))
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(ReplayedHeader))

	second := httptest.NewRecorder()
	h.ServeHTTP(second, postOrder("k1", `{"items":[1]}`))

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get(ReplayedHeader))
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"order_id":7}`, second.Body.String())

	for key := range store.data {
		assert.Equal(t, checkoutReplayTTL, store.ttls[key])
	}
}

func TestIdempotencyRejectsDifferentBody(t *testing.T) {
	store := newReplayMemory()
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	h.ServeHTTP(httptest.NewRecorder(), postOrder("k2", `{"items":[1]}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postOrder("k2", `{"items":[2]}`))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec))
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	store := newReplayMemory()
	var inner *httptest.ResponseRecorder
	var h http.Handler
	h = Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if inner == nil {
			inner = httptest.NewRecorder()
			h.ServeHTTP(inner, postOrder("k3", `{"items":[1]}`))
		}
		w.WriteHeader(http.StatusCreated)
	}))

	outer := httptest.NewRecorder()
	h.ServeHTTP(outer, postOrder("k3", `{"items":[1]}`))

	assert.Equal(t, http.StatusCreated, outer.Code)
	require.NotNil(t, inner)
	assert.Equal(t, http.StatusConflict, inner.Code)
	assert.Contains(t, inner.Body.String(), "in progress")
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := newReplayMemory()
	fail := true
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if fail {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postOrder("k4", `{}`))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, store.data)

	fail = false
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, postOrder("k4", `{}`))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotencyScopesKeysPerCaller(t *testing.T) {
	store := newReplayMemory()
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	for _, subject := range []string{"ops-a", "ops-b"} {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/orders/9/status", strings.NewReader(`{"status":"delivered"}`))
		req.Header.Set(IdempotencyKeyHeader, "same")
		req = req.WithContext(WithAdmin(req.Context(), subject, "admin"))
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.Equal(t, 2, calls)
	assert.Len(t, store.data, 2)
}
