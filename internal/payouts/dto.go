package payouts

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/pagination"
)

// OrderShare is the part of one order settled by a payout.
type OrderShare struct {
	OrderID     uuid.UUID
	AmountCents int64
}

// CreateInput requests a payout. AmountCents must equal the sum of Orders.
type CreateInput struct {
	SupplierID  uuid.UUID
	Orders      []OrderShare
	AmountCents int64
}

type ListParams struct {
	Status     *enums.PayoutStatus
	SupplierID *uuid.UUID
	Pagination pagination.Params
}

type ListFilter struct {
	Status     *enums.PayoutStatus
	SupplierID *uuid.UUID
	Cursor     *pagination.Cursor
	Limit      int
}

type PayoutList = pagination.Page[models.Payout]

// SettlementCandidate is a completed order's supplier subtotal that no live
// payout has claimed yet.
type SettlementCandidate struct {
	SupplierID  uuid.UUID
	OrderID     uuid.UUID
	Currency    string
	AmountCents int64
}

// RetryReport summarizes one retry sweep.
type RetryReport struct {
	Scanned   int
	Retried   int
	Paid      int
	Exhausted int
}

// SettleReport summarizes one settlement sweep.
type SettleReport struct {
	Suppliers int
	Created   int
	Skipped   int
}

const manualTransferPrefix = "manual-"
