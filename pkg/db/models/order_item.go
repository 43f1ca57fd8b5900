package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem is immutable once the order is created.
type OrderItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	SupplierID     uuid.UUID `gorm:"column:supplier_id;type:uuid;not null"`
	ProductRef     *string   `gorm:"column:product_ref;type:text"`
	Name           string    `gorm:"column:name;type:text;not null"`
	ImageURL       *string   `gorm:"column:image_url;type:text"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (OrderItem) TableName() string { return "order_items" }

func (i OrderItem) LineTotalCents() int64 {
	return i.UnitPriceCents * int64(i.Quantity)
}
