package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 30}
}

func mintToken(t *testing.T, role enums.AdminRole) string {
	t.Helper()
	token, err := pkgAuth.MintAdminToken(testJWTConfig(), time.Now().UTC(), pkgAuth.AdminTokenPayload{
		Subject: "ops@shop.test",
		Role:    role,
	})
	require.NoError(t, err)
	return token
}

func TestAdminAuthSeedsContext(t *testing.T) {
	var subject, role string
	handler := AdminAuth(testJWTConfig(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject = AdminSubjectFromContext(r.Context())
		role = RoleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, enums.AdminRoleOperator))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "ops@shop.test", subject)
	assert.Equal(t, "operator", role)
}

func TestAdminAuthRejectsMissingAndInvalidTokens(t *testing.T) {
	called := false
	handler := AdminAuth(testJWTConfig(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	missing := httptest.NewRecorder()
	handler.ServeHTTP(missing, httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, missing.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	invalid := httptest.NewRecorder()
	handler.ServeHTTP(invalid, req)
	assert.Equal(t, http.StatusUnauthorized, invalid.Code)

	assert.False(t, called)
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(nil, enums.AdminRoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/orders/1/status", nil)
	denied := httptest.NewRecorder()
	handler.ServeHTTP(denied, req.WithContext(WithAdmin(req.Context(), "ops", "operator")))
	assert.Equal(t, http.StatusForbidden, denied.Code)

	allowed := httptest.NewRecorder()
	handler.ServeHTTP(allowed, req.WithContext(WithAdmin(req.Context(), "root", "admin")))
	assert.Equal(t, http.StatusNoContent, allowed.Code)
}
