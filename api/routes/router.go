package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/marketplace-backend/api/controllers"
	accountcontrollers "github.com/angelmondragon/marketplace-backend/api/controllers/accounts"
	ordercontrollers "github.com/angelmondragon/marketplace-backend/api/controllers/orders"
	payoutcontrollers "github.com/angelmondragon/marketplace-backend/api/controllers/payouts"
	webhookcontrollers "github.com/angelmondragon/marketplace-backend/api/controllers/webhooks"
	"github.com/angelmondragon/marketplace-backend/api/middleware"
	"github.com/angelmondragon/marketplace-backend/internal/checkout"
	"github.com/angelmondragon/marketplace-backend/internal/notifications"
	"github.com/angelmondragon/marketplace-backend/internal/orders"
	"github.com/angelmondragon/marketplace-backend/internal/paymentaccounts"
	"github.com/angelmondragon/marketplace-backend/internal/payouts"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/marketplace-backend/pkg/redis"
	"github.com/angelmondragon/marketplace-backend/pkg/telemetry"
)

// Deps carries everything the HTTP surface needs. Nil services answer with
// an internal error rather than panicking.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	// Ready lists the dependencies probed by /health/ready, keyed by name.
	Ready map[string]controllers.Pinger
	// Metrics serves /metrics; nil uses the default Prometheus gatherer.
	Metrics http.Handler

	Idempotency pkgredis.IdempotencyStore
	RateLimiter pkgredis.RateLimiter

	Orders          orders.Service
	Checkout        checkout.Service
	Payouts         payouts.Service
	PaymentAccounts paymentaccounts.Service
	Notifications   notifications.Service
	PaymentLogs     controllers.PaymentLogLister
	DeadLetters     controllers.DeadLetterQueue
	SquareWebhook   webhookcontrollers.SquareWebhookParams
}

func NewRouter(deps Deps) http.Handler {
	cfg, logg := deps.Config, deps.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	apiPolicy := middleware.NewRateLimitPolicy("api", cfg.RateLimit.Window, cfg.RateLimit.Requests)
	webhookPolicy := middleware.NewRateLimitPolicy("webhook", cfg.RateLimit.Window, cfg.RateLimit.WebhookRequests)
	idem := middleware.NewIdempotency(deps.Idempotency, logg)

	metricsHandler := deps.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Ready))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Use(middleware.RateLimit(webhookPolicy, deps.RateLimiter, logg))
		params := deps.SquareWebhook
		if params.Logger == nil {
			params.Logger = logg
		}
		r.Post("/square", webhookcontrollers.SquareWebhook(params))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RateLimit(apiPolicy, deps.RateLimiter, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.ActorRoleClient))
			r.With(idem.Standard).Post("/", ordercontrollers.Create(deps.Orders, logg))
			r.Get("/", ordercontrollers.List(deps.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
			r.Get("/{orderId}/history", ordercontrollers.History(deps.Orders, logg))
			r.With(idem.MoneyMovement).Post("/{orderId}/checkout", ordercontrollers.Checkout(deps.Checkout, logg))
			r.With(idem.Standard).Post("/{orderId}/complete", ordercontrollers.Complete(deps.Orders, logg))
		})

		r.Route("/supplier", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.ActorRoleSupplier))

			r.Get("/orders", ordercontrollers.List(deps.Orders, logg))
			r.Route("/orders/{orderId}", func(r chi.Router) {
				r.Get("/", ordercontrollers.Detail(deps.Orders, logg))
				r.Get("/history", ordercontrollers.History(deps.Orders, logg))
				r.With(idem.Standard).Post("/confirm", ordercontrollers.SupplierConfirm(deps.Orders, logg))
				r.With(idem.Standard).Post("/process", ordercontrollers.SupplierProcess(deps.Orders, logg))
				r.With(idem.Standard).Post("/ship", ordercontrollers.SupplierShip(deps.Orders, logg))
				r.With(idem.Standard).Post("/deliver", ordercontrollers.SupplierDeliver(deps.Orders, logg))
				r.With(idem.Standard).Post("/cancel", ordercontrollers.SupplierCancel(deps.Orders, logg))
				r.With(idem.Standard).Put("/tracking", ordercontrollers.SupplierTracking(deps.Orders, logg))
			})

			r.Get("/payouts", payoutcontrollers.SupplierList(deps.Payouts, logg))
			r.Get("/payouts/{payoutId}", payoutcontrollers.Detail(deps.Payouts, logg))

			r.Get("/payment-account", accountcontrollers.Account(deps.PaymentAccounts, logg))
			r.Get("/payment-account/oauth/url", accountcontrollers.AuthorizeURL(deps.PaymentAccounts, logg))
			r.Post("/payment-account/oauth/callback", accountcontrollers.OAuthCallback(deps.PaymentAccounts, logg))
			r.Get("/wallets", accountcontrollers.ListWallets(deps.PaymentAccounts, logg))
			r.With(idem.Standard).Put("/wallets", accountcontrollers.SetPrimaryWallet(deps.PaymentAccounts, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin))
		r.Use(middleware.RateLimit(apiPolicy, deps.RateLimiter, logg))

		r.Get("/orders", ordercontrollers.List(deps.Orders, logg))
		r.Get("/orders/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
		r.Get("/orders/{orderId}/history", ordercontrollers.History(deps.Orders, logg))
		r.With(idem.Standard).Post("/orders/{orderId}/cancel", ordercontrollers.AdminCancel(deps.Orders, logg))
		r.With(idem.Standard).Post("/orders/{orderId}/complete", ordercontrollers.Complete(deps.Orders, logg))

		r.Get("/payouts", payoutcontrollers.AdminList(deps.Payouts, logg))
		r.With(idem.MoneyMovement).Post("/payouts", payoutcontrollers.AdminCreate(deps.Payouts, logg))
		r.Route("/payouts/{payoutId}", func(r chi.Router) {
			r.Get("/", payoutcontrollers.Detail(deps.Payouts, logg))
			r.With(idem.MoneyMovement).Post("/release", payoutcontrollers.AdminRelease(deps.Payouts, logg))
			r.With(idem.MoneyMovement).Post("/cancel", payoutcontrollers.AdminCancel(deps.Payouts, logg))
			r.With(idem.MoneyMovement).Post("/failures", payoutcontrollers.AdminRecordFailure(deps.Payouts, logg))
		})

		r.Get("/payment-logs", controllers.AdminPaymentLogs(deps.PaymentLogs, logg))
		r.Get("/outbox/dead-letters", controllers.AdminDeadLetters(deps.DeadLetters, logg))
		r.With(idem.Standard).Post("/outbox/dead-letters/{eventId}/requeue", controllers.AdminRequeueDeadLetter(deps.DeadLetters, logg))
	})

	return telemetry.HTTPHandler(r, "marketplace-api")
}
