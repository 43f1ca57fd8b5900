package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/types"
)

// Order is a client purchase spanning items from one or more suppliers.
type Order struct {
	ID                  uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ClientID            uuid.UUID           `gorm:"column:client_id;type:uuid;not null"`
	Status              enums.OrderStatus   `gorm:"column:status;type:text;not null"`
	PaymentStatus       enums.PaymentStatus `gorm:"column:payment_status;type:text;not null"`
	PaymentID           *string             `gorm:"column:payment_id;type:text"`
	Currency            string              `gorm:"column:currency;type:text;not null"`
	TotalCents          int64               `gorm:"column:total_cents;not null"`
	Tracking            *types.Tracking     `gorm:"column:tracking;type:jsonb"`
	PreferenceID        *string             `gorm:"column:preference_id;type:text"`
	PreferenceURL       *string             `gorm:"column:preference_url;type:text"`
	PreferenceExpiresAt *time.Time          `gorm:"column:preference_expires_at"`
	CancelReason        *string             `gorm:"column:cancel_reason;type:text"`
	ConfirmedAt         *time.Time          `gorm:"column:confirmed_at"`
	ShippedAt           *time.Time          `gorm:"column:shipped_at"`
	DeliveredAt         *time.Time          `gorm:"column:delivered_at"`
	CompletedAt         *time.Time          `gorm:"column:completed_at"`
	CancelledAt         *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt           time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID;references:ID"`
}

func (Order) TableName() string { return "orders" }

// HasSupplier reports whether any item of the order belongs to supplierID.
func (o Order) HasSupplier(supplierID uuid.UUID) bool {
	for _, item := range o.Items {
		if item.SupplierID == supplierID {
			return true
		}
	}
	return false
}

// SupplierIDs returns the distinct suppliers of the order in item order.
func (o Order) SupplierIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(o.Items))
	out := make([]uuid.UUID, 0, len(o.Items))
	for _, item := range o.Items {
		if _, ok := seen[item.SupplierID]; ok {
			continue
		}
		seen[item.SupplierID] = struct{}{}
		out = append(out, item.SupplierID)
	}
	return out
}

// SupplierSubtotal sums the line totals of supplierID's items.
func (o Order) SupplierSubtotal(supplierID uuid.UUID) int64 {
	var total int64
	for _, item := range o.Items {
		if item.SupplierID == supplierID {
			total += item.LineTotalCents()
		}
	}
	return total
}
