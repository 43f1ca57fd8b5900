package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/pagination"
)

// CreateItemInput is one requested line. UnitPrice is in major units (12.50).
type CreateItemInput struct {
	SupplierID uuid.UUID
	ProductRef *string
	Name       string
	ImageURL   *string
	UnitPrice  decimal.Decimal
	Quantity   int
}

// CreateOrderInput carries a client's order request.
type CreateOrderInput struct {
	Currency string
	Items    []CreateItemInput
}

// PaymentUpdate is the canonical processor state for an order's payment.
type PaymentUpdate struct {
	OrderID   uuid.UUID
	PaymentID string
	Status    enums.PaymentStatus
}

// PaymentResult reports what ApplyPayment did. Discrepancy is set when the
// payment could not be absorbed by the lifecycle and needs an operator.
type PaymentResult struct {
	Order       *models.Order
	Changed     bool
	Discrepancy enums.PaymentDiscrepancy
}

// ListParams narrows order listings. Role scoping is applied on top.
type ListParams struct {
	Status     *enums.OrderStatus
	ClientID   *uuid.UUID
	SupplierID *uuid.UUID
	Pagination pagination.Params
}

// ListFilter is the repository-level query.
type ListFilter struct {
	Status     *enums.OrderStatus
	ClientID   *uuid.UUID
	SupplierID *uuid.UUID
	Cursor     *pagination.Cursor
	Limit      int
}

// OrderList is a page of orders.
type OrderList = pagination.Page[models.Order]

const (
	ReasonPaymentRejected   = "payment_rejected"
	ReasonPreferenceExpired = "preference_expired"
)
