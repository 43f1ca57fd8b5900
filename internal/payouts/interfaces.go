package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/internal/paymentlog"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/marketplace-backend/pkg/stripe"
)

// Repository persists payouts and answers the order queries settlement needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payout *models.Payout) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	// UpdateIfStatus applies updates only while the row is in one of statuses.
	UpdateIfStatus(ctx context.Context, id uuid.UUID, statuses []enums.PayoutStatus, updates map[string]any) (int64, error)
	List(ctx context.Context, filter ListFilter) ([]models.Payout, error)
	ListByStatus(ctx context.Context, status enums.PayoutStatus, limit int) ([]models.Payout, error)
	LoadOrders(ctx context.Context, ids []uuid.UUID) ([]models.Order, error)
	// ClaimedOrderIDs returns the subset of orderIDs already settled to the
	// supplier by a payout that is not cancelled.
	ClaimedOrderIDs(ctx context.Context, supplierID uuid.UUID, orderIDs []uuid.UUID) ([]uuid.UUID, error)
	SettlementCandidates(ctx context.Context, limit int) ([]SettlementCandidate, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type walletLookup interface {
	PrimaryWallet(ctx context.Context, supplierID uuid.UUID) (*models.SupplierWallet, error)
}

type transferer interface {
	Transfer(ctx context.Context, req stripe.TransferRequest) (*stripe.TransferResult, error)
}

type locker interface {
	LockKey(parts ...string) string
	AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, owner string) error
}

type exchangeLog interface {
	Append(ctx context.Context, entry paymentlog.Entry)
}

// Notifier receives committed payout changes; delivery is best-effort.
type Notifier interface {
	PayoutChanged(ctx context.Context, eventType enums.OutboxEventType, event payloads.PayoutEvent, actor *outbox.ActorRef)
}

type transferMetrics interface {
	PayoutTransfer(result string)
}
