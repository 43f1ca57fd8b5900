package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/marketplace-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/marketplace-backend/api/controllers/webhooks"
	"github.com/angelmondragon/marketplace-backend/api/routes"
	"github.com/angelmondragon/marketplace-backend/internal/checkout"
	"github.com/angelmondragon/marketplace-backend/internal/notifications"
	"github.com/angelmondragon/marketplace-backend/internal/orders"
	"github.com/angelmondragon/marketplace-backend/internal/paymentaccounts"
	"github.com/angelmondragon/marketplace-backend/internal/paymentlog"
	"github.com/angelmondragon/marketplace-backend/internal/payouts"
	squarewebhook "github.com/angelmondragon/marketplace-backend/internal/webhooks/square"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/idempotency"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/redis"
	"github.com/angelmondragon/marketplace-backend/pkg/security"
	"github.com/angelmondragon/marketplace-backend/pkg/square"
	"github.com/angelmondragon/marketplace-backend/pkg/stripe"
)

const webhookScope = "square-webhook"

// buildRouterDeps wires every service the HTTP surface exposes.
func buildRouterDeps(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Deps, error) {
	gdb := dbClient.DB()
	domainMetrics := metrics.NewDomainMetrics(prometheus.DefaultRegisterer)

	paymentLog, err := paymentlog.NewRecorder(paymentlog.NewRepository(gdb), logg)
	if err != nil {
		return routes.Deps{}, err
	}
	dispatcher, err := notifications.NewDispatcher(dbClient, outbox.NewService(outbox.NewRepository(gdb), logg), logg)
	if err != nil {
		return routes.Deps{}, fmt.Errorf("notification dispatcher: %w", err)
	}

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repository:      orders.NewRepository(gdb),
		Tx:              dbClient,
		Notifier:        dispatcher,
		Metrics:         domainMetrics,
		Logger:          logg,
		DefaultCurrency: cfg.Checkout.Currency,
	})
	if err != nil {
		return routes.Deps{}, fmt.Errorf("orders service: %w", err)
	}

	squareClient, err := square.NewClient(ctx, cfg.Square, logg)
	if err != nil {
		return routes.Deps{}, fmt.Errorf("square client: %w", err)
	}

	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Orders:      ordersSvc,
		Links:       squareClient,
		Log:         paymentLog,
		Logger:      logg,
		TTL:         cfg.Checkout.PreferenceTTL,
		RedirectURL: cfg.Checkout.RedirectURL,
	})
	if err != nil {
		return routes.Deps{}, fmt.Errorf("checkout service: %w", err)
	}

	sealer, err := security.NewSealer(cfg.Security.TokenSealKey)
	if err != nil {
		return routes.Deps{}, fmt.Errorf("token sealer: %w", err)
	}
	accountsSvc, err := paymentaccounts.NewService(paymentaccounts.ServiceParams{
		Repository: paymentaccounts.NewRepository(gdb),
		Tx:         dbClient,
		OAuth:      squareClient,
		States:     redisClient,
		Sealer:     sealer,
		Log:        paymentLog,
		Logger:     logg,
		Scopes:     strings.Fields(cfg.Square.OAuthScopes),
	})
	if err != nil {
		return routes.Deps{}, fmt.Errorf("payment accounts service: %w", err)
	}

	payoutParams := payouts.ServiceParams{
		Repository: payouts.NewRepository(gdb),
		Tx:         dbClient,
		Wallets:    accountsSvc,
		Locker:     redisClient,
		Log:        paymentLog,
		Notifier:   dispatcher,
		Metrics:    domainMetrics,
		Logger:     logg,
		Policy:     retryPolicy(cfg.Payout),
		LockTTL:    cfg.Payout.TransferLockTTL,
	}
	if cfg.Stripe.APIKey != "" {
		stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return routes.Deps{}, fmt.Errorf("stripe client: %w", err)
		}
		payoutParams.Transfers = stripeClient
	} else {
		logg.Warn(ctx, "stripe api key not set; only manual payouts can be released")
	}
	payoutsSvc, err := payouts.NewService(payoutParams)
	if err != nil {
		return routes.Deps{}, fmt.Errorf("payouts service: %w", err)
	}

	notificationsSvc, err := notifications.NewService(notifications.NewRepository(gdb))
	if err != nil {
		return routes.Deps{}, fmt.Errorf("notifications service: %w", err)
	}

	webhookSvc, err := squarewebhook.NewService(squarewebhook.ServiceParams{
		Payments: squareClient,
		Orders:   ordersSvc,
		Log:      paymentLog,
		Logger:   logg,
	})
	if err != nil {
		return routes.Deps{}, fmt.Errorf("square webhook service: %w", err)
	}
	guard, err := idempotency.New(redisClient, cfg.Eventing.WebhookIdempotencyTTL, webhookScope)
	if err != nil {
		return routes.Deps{}, fmt.Errorf("webhook idempotency guard: %w", err)
	}

	return routes.Deps{
		Config:          cfg,
		Logger:          logg,
		Ready:           map[string]controllers.Pinger{"database": dbClient, "redis": redisClient},
		Idempotency:     redisClient,
		RateLimiter:     redisClient,
		Orders:          ordersSvc,
		Checkout:        checkoutSvc,
		Payouts:         payoutsSvc,
		PaymentAccounts: accountsSvc,
		Notifications:   notificationsSvc,
		PaymentLogs:     paymentLog,
		DeadLetters:     outbox.NewDLQRepository(gdb),
		SquareWebhook: webhookcontrollers.SquareWebhookParams{
			Service:          webhookSvc,
			Guard:            guard,
			Verifier:         squareClient.WebhookVerifier(),
			RequireSignature: cfg.FeatureFlags.RequireWebhookSig,
			Metrics:          domainMetrics,
			Logger:           logg,
		},
	}, nil
}

func retryPolicy(cfg config.PayoutConfig) payouts.RetryPolicy {
	return payouts.RetryPolicy{
		Base:        cfg.RetryBase,
		MaxBackoff:  cfg.RetryMaxBackoff,
		MaxAttempts: cfg.MaxAttempts,
	}
}
