package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

// OrderStatusChange is one committed transition of an order.
type OrderStatusChange struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null"`
	FromStatus    enums.OrderStatus   `gorm:"column:from_status;type:text;not null"`
	ToStatus      enums.OrderStatus   `gorm:"column:to_status;type:text;not null"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:text;not null"`
	ActorRole     enums.ActorRole     `gorm:"column:actor_role;type:text;not null"`
	ActorID       *uuid.UUID          `gorm:"column:actor_id;type:uuid"`
	Reason        *string             `gorm:"column:reason;type:text"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (OrderStatusChange) TableName() string { return "order_status_changes" }

var ErrAppendOnly = errors.New("append-only record cannot be modified")

func (OrderStatusChange) BeforeUpdate(*gorm.DB) error { return ErrAppendOnly }
func (OrderStatusChange) BeforeDelete(*gorm.DB) error { return ErrAppendOnly }
