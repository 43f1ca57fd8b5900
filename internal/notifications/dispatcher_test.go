package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
)

func TestDispatcherQueuesOutboxEvents(t *testing.T) {
	conn := dbtest.Open(t)
	dispatcher, err := NewDispatcher(db.FromConn(conn), outbox.NewService(outbox.NewRepository(conn), nil), nil)
	require.NoError(t, err)
	ctx := context.Background()

	orderID := uuid.New()
	created := payloads.OrderCreatedEvent{OrderID: orderID, ClientID: uuid.New(), TotalCents: 1000, Currency: enums.CurrencyUSD}
	dispatcher.OrderCreated(ctx, created, &outbox.ActorRef{Role: enums.ActorRoleClient})
	dispatcher.OrderCreated(ctx, created, &outbox.ActorRef{Role: enums.ActorRoleClient})
	dispatcher.OrderTransitioned(ctx, payloads.OrderStatusChangedEvent{
		OrderID: orderID,
		From:    enums.OrderStatusPending,
		To:      enums.OrderStatusConfirmed,
	}, &outbox.ActorRef{Role: enums.ActorRoleSystem})

	payoutID := uuid.New()
	dispatcher.PayoutChanged(ctx, enums.EventPayoutCreated, payloads.PayoutEvent{PayoutID: payoutID}, nil)
	dispatcher.PayoutChanged(ctx, enums.EventPayoutCreated, payloads.PayoutEvent{PayoutID: payoutID}, nil)
	dispatcher.PayoutChanged(ctx, enums.EventPayoutFailed, payloads.PayoutEvent{PayoutID: payoutID, Attempts: 1}, nil)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Order("created_at ASC").Find(&rows).Error)
	counts := map[enums.OutboxEventType]int{}
	for _, row := range rows {
		counts[row.EventType]++
	}
	assert.Equal(t, 1, counts[enums.EventOrderCreated])
	assert.Equal(t, 1, counts[enums.EventOrderStatusChanged])
	assert.Equal(t, 1, counts[enums.EventPayoutCreated])
	assert.Equal(t, 1, counts[enums.EventPayoutFailed])
}

type failingEmitter struct{ calls int }

func (f *failingEmitter) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	f.calls++
	return errors.New("outbox unavailable")
}

func (f *failingEmitter) EmitIfNotExists(context.Context, *gorm.DB, outbox.DomainEvent) error {
	f.calls++
	return errors.New("outbox unavailable")
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	emitter := &failingEmitter{}
	dispatcher, err := NewDispatcher(db.FromConn(dbtest.Open(t)), emitter, nil)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		dispatcher.OrderPaymentUpdated(context.Background(), payloads.OrderPaymentUpdatedEvent{OrderID: uuid.New()}, nil)
	})
	assert.Equal(t, 1, emitter.calls)

	dispatcher.OrderTransitioned(context.Background(), payloads.OrderStatusChangedEvent{}, nil)
	assert.Equal(t, 1, emitter.calls, "events without an aggregate id are dropped before emitting")
}
