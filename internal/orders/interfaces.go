package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
)

// Repository defines persistence operations for orders and their history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// UpdateIfState applies updates only while the row still has the expected
	// status (and payment status when given). It returns the affected row count.
	UpdateIfState(ctx context.Context, id uuid.UUID, status enums.OrderStatus, payment *enums.PaymentStatus, updates map[string]any) (int64, error)
	AppendStatusChange(ctx context.Context, change *models.OrderStatusChange) error
	ListStatusChanges(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusChange, error)
	List(ctx context.Context, filter ListFilter) ([]models.Order, error)
	FindExpiredPreferences(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

// Notifier receives committed lifecycle changes. Implementations must not fail
// the caller; delivery is best-effort.
type Notifier interface {
	OrderCreated(ctx context.Context, event payloads.OrderCreatedEvent, actor *outbox.ActorRef)
	OrderTransitioned(ctx context.Context, event payloads.OrderStatusChangedEvent, actor *outbox.ActorRef)
	OrderPaymentUpdated(ctx context.Context, event payloads.OrderPaymentUpdatedEvent, actor *outbox.ActorRef)
	OrderPaymentDiscrepancy(ctx context.Context, event payloads.OrderPaymentDiscrepancyEvent, actor *outbox.ActorRef)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type transitionMetrics interface {
	OrderTransition(from, to, actor string)
}
