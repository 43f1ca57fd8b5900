package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
)

type emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Dispatcher queues lifecycle events on the outbox after the domain write has
// committed. It never reports failure to the caller; a lost event costs a
// notification, not a transition.
type Dispatcher struct {
	tx     txRunner
	outbox emitter
	logg   *logger.Logger
}

func NewDispatcher(tx txRunner, outbox emitter, logg *logger.Logger) (*Dispatcher, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Dispatcher{tx: tx, outbox: outbox, logg: logg}, nil
}

func (d *Dispatcher) OrderCreated(ctx context.Context, event payloads.OrderCreatedEvent, actor *outbox.ActorRef) {
	d.dispatch(ctx, true, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   event.OrderID,
		Actor:         actor,
		Data:          event,
	})
}

func (d *Dispatcher) OrderTransitioned(ctx context.Context, event payloads.OrderStatusChangedEvent, actor *outbox.ActorRef) {
	d.dispatch(ctx, false, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   event.OrderID,
		Actor:         actor,
		Data:          event,
	})
}

func (d *Dispatcher) OrderPaymentUpdated(ctx context.Context, event payloads.OrderPaymentUpdatedEvent, actor *outbox.ActorRef) {
	d.dispatch(ctx, false, outbox.DomainEvent{
		EventType:     enums.EventOrderPaymentUpdate,
		AggregateType: enums.AggregateOrder,
		AggregateID:   event.OrderID,
		Actor:         actor,
		Data:          event,
	})
}

// OrderPaymentDiscrepancy queues a reconciliation alert for a payment the
// order could not absorb.
func (d *Dispatcher) OrderPaymentDiscrepancy(ctx context.Context, event payloads.OrderPaymentDiscrepancyEvent, actor *outbox.ActorRef) {
	d.dispatch(ctx, false, outbox.DomainEvent{
		EventType:     enums.EventOrderPaymentDiscrepancy,
		AggregateType: enums.AggregateOrder,
		AggregateID:   event.OrderID,
		Actor:         actor,
		Data:          event,
	})
}

// PayoutChanged queues one of the payout lifecycle events. payout_created is
// emitted at most once per payout.
func (d *Dispatcher) PayoutChanged(ctx context.Context, eventType enums.OutboxEventType, event payloads.PayoutEvent, actor *outbox.ActorRef) {
	d.dispatch(ctx, eventType == enums.EventPayoutCreated, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePayout,
		AggregateID:   event.PayoutID,
		Actor:         actor,
		Data:          event,
	})
}

func (d *Dispatcher) dispatch(ctx context.Context, once bool, event outbox.DomainEvent) {
	if d == nil {
		return
	}
	if event.AggregateID == uuid.Nil {
		d.logg.Warn(d.logg.WithField(ctx, "event_type", event.EventType), "notification event without aggregate id dropped")
		return
	}
	err := d.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if once {
			return d.outbox.EmitIfNotExists(ctx, tx, event)
		}
		return d.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		d.logg.Error(d.logg.WithFields(ctx, map[string]any{
			"event_type":   event.EventType,
			"aggregate_id": event.AggregateID.String(),
		}), "notification dispatch failed", err)
	}
}
