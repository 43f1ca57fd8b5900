package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/types"
)

// Payout settles a set of completed orders to one supplier.
// Orders and AmountCents are fixed at creation.
type Payout struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	SupplierID  uuid.UUID               `gorm:"column:supplier_id;type:uuid;not null"`
	Status      enums.PayoutStatus      `gorm:"column:status;type:text;not null"`
	AmountCents int64                   `gorm:"column:amount_cents;not null"`
	Currency    string                  `gorm:"column:currency;type:text;not null"`
	Destination types.PayoutDestination `gorm:"column:destination;type:jsonb;not null"`
	Attempts    int                     `gorm:"column:attempts;not null;default:0"`
	LastError   *string                 `gorm:"column:last_error;type:text"`
	LastTriedAt *time.Time              `gorm:"column:last_tried_at"`
	PaidAt      *time.Time              `gorm:"column:paid_at"`
	CancelledAt *time.Time              `gorm:"column:cancelled_at"`
	TransferRef *string                 `gorm:"column:transfer_ref;type:text"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time               `gorm:"column:updated_at;autoUpdateTime"`

	Orders []PayoutOrder `gorm:"foreignKey:PayoutID;references:ID"`
}

func (Payout) TableName() string { return "payouts" }

// PayoutOrder is the per-order share of a payout.
type PayoutOrder struct {
	PayoutID    uuid.UUID `gorm:"column:payout_id;type:uuid;primaryKey"`
	OrderID     uuid.UUID `gorm:"column:order_id;type:uuid;primaryKey"`
	SupplierID  uuid.UUID `gorm:"column:supplier_id;type:uuid;not null"`
	AmountCents int64     `gorm:"column:amount_cents;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (PayoutOrder) TableName() string { return "payout_orders" }
