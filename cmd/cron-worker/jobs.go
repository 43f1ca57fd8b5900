package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/marketplace-backend/internal/checkout"
	"github.com/angelmondragon/marketplace-backend/internal/cron"
	"github.com/angelmondragon/marketplace-backend/internal/notifications"
	"github.com/angelmondragon/marketplace-backend/internal/orders"
	"github.com/angelmondragon/marketplace-backend/internal/paymentaccounts"
	"github.com/angelmondragon/marketplace-backend/internal/paymentlog"
	"github.com/angelmondragon/marketplace-backend/internal/payouts"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/redis"
	"github.com/angelmondragon/marketplace-backend/pkg/square"
	"github.com/angelmondragon/marketplace-backend/pkg/stripe"
)

// buildRegistry assembles the periodic jobs. Settlement is opt-in because it
// releases money without an operator in the loop.
func buildRegistry(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*cron.Registry, error) {
	gdb := dbClient.DB()
	domainMetrics := metrics.NewDomainMetrics(prometheus.DefaultRegisterer)
	outboxRepo := outbox.NewRepository(gdb)
	notificationsRepo := notifications.NewRepository(gdb)

	paymentLog, err := paymentlog.NewRecorder(paymentlog.NewRepository(gdb), logg)
	if err != nil {
		return nil, err
	}
	dispatcher, err := notifications.NewDispatcher(dbClient, outbox.NewService(outboxRepo, logg), logg)
	if err != nil {
		return nil, fmt.Errorf("notification dispatcher: %w", err)
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
		return nil, fmt.Errorf("orders service: %w", err)
	}

	payoutParams := payouts.ServiceParams{
		Repository: payouts.NewRepository(gdb),
		Tx:         dbClient,
		Wallets:    paymentaccounts.NewRepository(gdb),
		Locker:     redisClient,
		Log:        paymentLog,
		Notifier:   dispatcher,
		Metrics:    domainMetrics,
		Logger:     logg,
		Policy: payouts.RetryPolicy{
			Base:        cfg.Payout.RetryBase,
			MaxBackoff:  cfg.Payout.RetryMaxBackoff,
			MaxAttempts: cfg.Payout.MaxAttempts,
		},
		LockTTL: cfg.Payout.TransferLockTTL,
	}
	if cfg.Stripe.APIKey != "" {
		stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return nil, fmt.Errorf("stripe client: %w", err)
		}
		payoutParams.Transfers = stripeClient
	}
	payoutsSvc, err := payouts.NewService(payoutParams)
	if err != nil {
		return nil, fmt.Errorf("payouts service: %w", err)
	}

	squareClient, err := square.NewClient(ctx, cfg.Square, logg)
	if err != nil {
		return nil, fmt.Errorf("square client: %w", err)
	}
	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Orders: ordersSvc,
		Links:  squareClient,
		Log:    paymentLog,
		Logger: logg,
		TTL:    cfg.Checkout.PreferenceTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("checkout service: %w", err)
	}
	expiry, err := cron.NewPreferenceExpiryJob(cron.PreferenceExpiryJobParams{Logger: logg, Checkout: checkoutSvc})
	if err != nil {
		return nil, err
	}
	retry, err := cron.NewPayoutRetryJob(cron.PayoutJobParams{Logger: logg, Payouts: payoutsSvc})
	if err != nil {
		return nil, err
	}
	var settle cron.Job
	if cfg.FeatureFlags.PayoutSettlement {
		if settle, err = cron.NewPayoutSettlementJob(cron.PayoutJobParams{Logger: logg, Payouts: payoutsSvc}); err != nil {
			return nil, err
		}
	}
	outboxRetention, err := cron.NewRetentionJob(cron.RetentionJobParams{
		Name:   "outbox-retention",
		Logger: logg,
		Keep:   time.Duration(cfg.Outbox.RetentionDays) * cron.Day,
		Purge:  outboxRepo.Purge,
	})
	if err != nil {
		return nil, err
	}
	notificationCleanup, err := cron.NewRetentionJob(cron.RetentionJobParams{
		Name:   "notification-cleanup",
		Logger: logg,
		Keep:   time.Duration(cfg.Cron.NotificationRetentionDays) * cron.Day,
		Purge:  notificationsRepo.DeleteReadBefore,
	})
	if err != nil {
		return nil, err
	}

	return cron.NewRegistry(expiry, retry, settle, outboxRetention, notificationCleanup)
}
