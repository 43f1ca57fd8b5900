package registry

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
)

// Route says where an event type is published and which aggregate owns it.
type Route struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is an outbox row that passed validation and decoded cleanly.
type ResolvedEvent struct {
	Route    Route
	Envelope outbox.PayloadEnvelope
	Payload  any
}

// EventRegistry validates outbox rows before they reach a broker.
type EventRegistry struct {
	routes   map[enums.OutboxEventType]Route
	decoders *DecoderRegistry
}

// NewEventRegistry routes order events to the orders topic and payout
// events to the payouts topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.OrdersTopic == "" || cfg.PayoutsTopic == "" {
		return nil, errors.New("outbox registry: orders and payouts topics are required")
	}
	r := &EventRegistry{
		routes:   make(map[enums.OutboxEventType]Route),
		decoders: NewDecoderRegistry(),
	}
	r.add(enums.EventOrderCreated, enums.AggregateOrder, cfg.OrdersTopic, Typed[payloads.OrderCreatedEvent]())
	r.add(enums.EventOrderStatusChanged, enums.AggregateOrder, cfg.OrdersTopic, Typed[payloads.OrderStatusChangedEvent]())
	r.add(enums.EventOrderPaymentUpdate, enums.AggregateOrder, cfg.OrdersTopic, Typed[payloads.OrderPaymentUpdatedEvent]())
	r.add(enums.EventOrderPaymentDiscrepancy, enums.AggregateOrder, cfg.OrdersTopic, Typed[payloads.OrderPaymentDiscrepancyEvent]())
	for _, eventType := range []enums.OutboxEventType{
		enums.EventPayoutCreated,
		enums.EventPayoutPaid,
		enums.EventPayoutFailed,
		enums.EventPayoutCancelled,
	} {
		r.add(eventType, enums.AggregatePayout, cfg.PayoutsTopic, Typed[payloads.PayoutEvent]())
	}
	return r, nil
}

func (r *EventRegistry) add(eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string, decode Decoder) {
	r.routes[eventType] = Route{EventType: eventType, AggregateType: aggregate, Topic: topic}
	r.decoders.Register(eventType, outbox.CurrentPayloadVersion, decode)
}

// Topics lists each distinct topic once, sorted.
func (r *EventRegistry) Topics() []string {
	topics := make([]string, 0, 2)
	for _, route := range r.routes {
		if !slices.Contains(topics, route.Topic) {
			topics = append(topics, route.Topic)
		}
	}
	slices.Sort(topics)
	return topics
}

// Resolve rejects rows that no retry could fix: unknown types, aggregate
// mismatches, unknown payload versions and undecodable payloads.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	route, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, NewNonRetryableError(fmt.Errorf("no route for event type %q", event.EventType))
	case route.AggregateType != event.AggregateType:
		return nil, NewNonRetryableError(fmt.Errorf("%s belongs to %s aggregates, row says %s", event.EventType, route.AggregateType, event.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, NewNonRetryableError(fmt.Errorf("%s row has no aggregate id", event.EventType))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("%s envelope carries no data", event.EventType))
	}
	version := envelope.Version
	if version == 0 {
		version = outbox.CurrentPayloadVersion
	}
	payload, err := r.decoders.Decode(event.EventType, version, envelope.Data)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	return &ResolvedEvent{Route: route, Envelope: envelope, Payload: payload}, nil
}
