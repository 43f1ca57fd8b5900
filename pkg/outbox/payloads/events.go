package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

// OrderCreatedEvent is emitted once when a client places an order.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID      `json:"order_id"`
	ClientID    uuid.UUID      `json:"client_id"`
	SupplierIDs []uuid.UUID    `json:"supplier_ids"`
	TotalCents  int64          `json:"total_cents"`
	Currency    enums.Currency `json:"currency"`
}

// OrderStatusChangedEvent describes a committed lifecycle transition.
type OrderStatusChangedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	ClientID      uuid.UUID           `json:"client_id"`
	SupplierIDs   []uuid.UUID         `json:"supplier_ids"`
	From          enums.OrderStatus   `json:"from"`
	To            enums.OrderStatus   `json:"to"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	Reason        *string             `json:"reason,omitempty"`
	TotalCents    int64               `json:"total_cents"`
	Currency      enums.Currency      `json:"currency"`
}

// OrderPaymentUpdatedEvent is emitted when only the payment status moved.
type OrderPaymentUpdatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	ClientID      uuid.UUID           `json:"client_id"`
	SupplierIDs   []uuid.UUID         `json:"supplier_ids"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	PaymentID     string              `json:"payment_id"`
}

// OrderPaymentDiscrepancyEvent flags a processor payment that needs manual
// reconciliation, such as money captured for a cancelled order.
type OrderPaymentDiscrepancyEvent struct {
	OrderID           uuid.UUID                `json:"order_id"`
	ClientID          uuid.UUID                `json:"client_id"`
	SupplierIDs       []uuid.UUID              `json:"supplier_ids"`
	Kind              enums.PaymentDiscrepancy `json:"kind"`
	Status            enums.OrderStatus        `json:"status"`
	PaymentStatus     enums.PaymentStatus      `json:"payment_status"`
	PaymentID         string                   `json:"payment_id"`
	IncomingStatus    enums.PaymentStatus      `json:"incoming_status"`
	RecordedPaymentID *string                  `json:"recorded_payment_id,omitempty"`
}

// PayoutEvent is shared by every payout lifecycle event type.
type PayoutEvent struct {
	PayoutID    uuid.UUID          `json:"payout_id"`
	SupplierID  uuid.UUID          `json:"supplier_id"`
	Status      enums.PayoutStatus `json:"status"`
	AmountCents int64              `json:"amount_cents"`
	Currency    enums.Currency     `json:"currency"`
	OrderIDs    []uuid.UUID        `json:"order_ids"`
	Attempts    int                `json:"attempts"`
	LastError   *string            `json:"last_error,omitempty"`
	TransferRef *string            `json:"transfer_ref,omitempty"`
}
