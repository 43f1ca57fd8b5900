package cron

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/internal/payouts"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
)

type preferenceExpirer interface {
	ListExpiredPreferences(ctx context.Context, limit int) ([]uuid.UUID, error)
	ExpirePreference(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type payoutSweeper interface {
	RetryDue(ctx context.Context, limit int) (payouts.RetryReport, error)
	Settle(ctx context.Context, limit int) (payouts.SettleReport, error)
}
