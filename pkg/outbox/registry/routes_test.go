package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
)

func testRoutes(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders-topic", PayoutsTopic: "payouts-topic"})
	require.NoError(t, err)
	return reg
}

func envelopeRow(t *testing.T, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, version int, data string) models.OutboxEvent {
	t.Helper()
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    version,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(data),
	})
	require.NoError(t, err)
	return models.OutboxEvent{EventType: eventType, AggregateType: aggregate, AggregateID: uuid.New(), Payload: raw}
}

func TestResolveDecodesTypedPayload(t *testing.T) {
	orderID := uuid.New()
	data := fmt.Sprintf(`{"order_id":%q,"from":"pending","to":"confirmed"}`, orderID)
	row := envelopeRow(t, enums.EventOrderStatusChanged, enums.AggregateOrder, 1, data)

	resolved, err := testRoutes(t).Resolve(row)
	require.NoError(t, err)

	assert.Equal(t, "orders-topic", resolved.Route.Topic)
	assert.NotEmpty(t, resolved.Envelope.EventID)
	payload, ok := resolved.Payload.(*payloads.OrderStatusChangedEvent)
	require.True(t, ok, "got %T", resolved.Payload)
	assert.Equal(t, orderID, payload.OrderID)
	assert.Equal(t, enums.OrderStatusConfirmed, payload.To)
}

func TestPaymentDiscrepancyRoutesToOrdersTopic(t *testing.T) {
	data := fmt.Sprintf(`{"order_id":%q,"kind":"paid_after_cancel","status":"cancelled","payment_status":"approved"}`, uuid.New())
	row := envelopeRow(t, enums.EventOrderPaymentDiscrepancy, enums.AggregateOrder, 1, data)

	resolved, err := testRoutes(t).Resolve(row)
	require.NoError(t, err)

	assert.Equal(t, "orders-topic", resolved.Route.Topic)
	payload, ok := resolved.Payload.(*payloads.OrderPaymentDiscrepancyEvent)
	require.True(t, ok, "got %T", resolved.Payload)
	assert.Equal(t, enums.PaymentDiscrepancyPaidAfterCancel, payload.Kind)
	assert.True(t, payload.Kind.NeedsRefund())
}

func TestPayoutEventsRouteToPayoutsTopic(t *testing.T) {
	reg := testRoutes(t)
	for _, eventType := range []enums.OutboxEventType{
		enums.EventPayoutCreated,
		enums.EventPayoutPaid,
		enums.EventPayoutFailed,
		enums.EventPayoutCancelled,
	} {
		resolved, err := reg.Resolve(envelopeRow(t, eventType, enums.AggregatePayout, 1, `{"amount_cents":2500}`))
		require.NoError(t, err, eventType)
		assert.Equal(t, "payouts-topic", resolved.Route.Topic, eventType)
		assert.IsType(t, &payloads.PayoutEvent{}, resolved.Payload)
	}
}

func TestTopicsAreDistinctAndSorted(t *testing.T) {
	assert.Equal(t, []string{"orders-topic", "payouts-topic"}, testRoutes(t).Topics())
}

func TestResolveRejectsUnfixableRows(t *testing.T) {
	reg := testRoutes(t)
	tests := []struct {
		name string
		row  models.OutboxEvent
	}{
		{"unknown type", envelopeRow(t, "order_teleported", enums.AggregateOrder, 1, `{}`)},
		{"aggregate mismatch", envelopeRow(t, enums.EventOrderCreated, enums.AggregatePayout, 1, `{}`)},
		{"null data", envelopeRow(t, enums.EventOrderCreated, enums.AggregateOrder, 1, `null`)},
		{"unknown version", envelopeRow(t, enums.EventOrderCreated, enums.AggregateOrder, 7, `{}`)},
		{"wrong data shape", envelopeRow(t, enums.EventOrderCreated, enums.AggregateOrder, 1, `{"total_cents":"lots"}`)},
		{"missing aggregate id", func() models.OutboxEvent {
			row := envelopeRow(t, enums.EventOrderCreated, enums.AggregateOrder, 1, `{}`)
			row.AggregateID = uuid.Nil
			return row
		}()},
		{"corrupt envelope", models.OutboxEvent{
			EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder,
			AggregateID: uuid.New(), Payload: []byte(`{not json`),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Resolve(tt.row)
			require.Error(t, err)
			assert.True(t, IsNonRetryable(err), "expected non-retryable, got %T: %v", err, err)
		})
	}
}

func TestResolveTreatsMissingVersionAsCurrent(t *testing.T) {
	row := envelopeRow(t, enums.EventOrderCreated, enums.AggregateOrder, 0, `{"total_cents":100}`)
	_, err := testRoutes(t).Resolve(row)
	assert.NoError(t, err)
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders"})
	assert.Error(t, err)
	_, err = NewEventRegistry(config.PubSubConfig{PayoutsTopic: "payouts"})
	assert.Error(t, err)
}

func TestIsNonRetryableUnwraps(t *testing.T) {
	err := fmt.Errorf("publish: %w", NewNonRetryableError(errors.New("no topic")))
	assert.True(t, IsNonRetryable(err))
	assert.False(t, IsNonRetryable(errors.New("broker down")))
	assert.Equal(t, "non-retryable error", NonRetryableError{}.Error())
}
