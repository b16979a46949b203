package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	admincontrollers "github.com/angelmondragon/storefront-backend/api/controllers/admin"
	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	paymentcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/payments"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/idempotency"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// SharedStore is the redis surface the HTTP layer depends on.
type SharedStore interface {
	middleware.ReplayStore
	redis.Pinger
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Reconciler is the reconciliation service as seen by the webhook, poll and admin routes.
type Reconciler interface {
	webhookcontrollers.PaymentReconciler
	admincontrollers.Reconciler
}

// Dependencies is everything the HTTP layer serves from. MetricsHandler is optional.
type Dependencies struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             db.Pinger
	Store          SharedStore
	Products       product.Service
	Orders         orders.Service
	Reconciler     Reconciler
	WebhookGuard   *idempotency.Manager
	ReconMetrics   *metrics.ReconciliationMetrics
	DeadLetters    admincontrollers.DeadLetterDesk
	MetricsHandler http.Handler
}

func NewRouter(deps Dependencies) http.Handler {
	cfg, logg, store := deps.Config, deps.Logger, deps.Store
	reconciler := deps.Reconciler

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	pollPolicy := middleware.RateLimitPolicy{
		Name:   "payment-status",
		Window: cfg.PollRateLimit.Window,
		Limit:  cfg.PollRateLimit.Limit,
	}
	signature := webhookcontrollers.SignatureConfig{
		Secret:   cfg.Gateway.WebhookSecret,
		Required: cfg.Webhook.RequireSignature,
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, store))
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/gateway", webhookcontrollers.Gateway(reconciler, deps.WebhookGuard, signature, deps.ReconMetrics, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(store, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(deps.Products, logg))
			r.Get("/{productId}", controllers.ProductDetail(deps.Products, logg))
		})
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(deps.Orders, logg))
			r.Post("/{orderId}/payment-preference", ordercontrollers.PaymentPreference(deps.Orders, logg))
		})
		r.With(middleware.IPRateLimit(pollPolicy, store, logg)).
			Get("/payments/{paymentId}/status", paymentcontrollers.Status(reconciler, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.AdminAuth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.AdminRoleAdmin, enums.AdminRoleOperator))
		r.Use(middleware.Idempotency(store, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", admincontrollers.ListOrders(deps.Orders, logg))
			r.Get("/{orderId}", admincontrollers.OrderDetail(deps.Orders, logg))
			r.Post("/{orderId}/status", admincontrollers.UpdateOrderStatus(reconciler, logg))
			r.With(middleware.RequireRole(logg, enums.AdminRoleAdmin)).
				Post("/{orderId}/reconcile", admincontrollers.ReconcileOrder(reconciler, logg))
		})
		r.With(middleware.RequireRole(logg, enums.AdminRoleAdmin)).
			Post("/payments/{paymentId}/reconcile", admincontrollers.ReconcilePayment(reconciler, logg))
		if deps.DeadLetters != nil {
			r.Route("/outbox/dead-letters", func(r chi.Router) {
				r.Get("/", admincontrollers.ListDeadLetters(deps.DeadLetters, logg))
				r.With(middleware.RequireRole(logg, enums.AdminRoleAdmin)).
					Post("/{eventId}/requeue", admincontrollers.RequeueDeadLetter(deps.DeadLetters, logg))
			})
		}
	})

	return r
}
