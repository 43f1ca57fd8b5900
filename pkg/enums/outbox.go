package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox event describes.
type OutboxAggregateType string

const (
	AggregateOrder  OutboxAggregateType = "order"
	AggregatePayout OutboxAggregateType = "payout"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregatePayout,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names the domain event carried by an outbox row.
type OutboxEventType string

const (
	EventOrderCreated            OutboxEventType = "order_created"
	EventOrderStatusChanged      OutboxEventType = "order_status_changed"
	EventOrderPaymentUpdate      OutboxEventType = "order_payment_updated"
	EventOrderPaymentDiscrepancy OutboxEventType = "order_payment_discrepancy"
	EventPayoutCreated           OutboxEventType = "payout_created"
	EventPayoutPaid              OutboxEventType = "payout_paid"
	EventPayoutFailed            OutboxEventType = "payout_failed"
	EventPayoutCancelled         OutboxEventType = "payout_cancelled"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventOrderPaymentUpdate,
	EventOrderPaymentDiscrepancy,
	EventPayoutCreated,
	EventPayoutPaid,
	EventPayoutFailed,
	EventPayoutCancelled,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
