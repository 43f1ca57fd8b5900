package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/types"
)

// PaymentLog is the append-only audit trail of every processor exchange.
type PaymentLog struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	Kind         enums.PaymentLogKind  `gorm:"column:kind;type:text;not null"`
	Provider     enums.PaymentProvider `gorm:"column:provider;type:text;not null"`
	Reference    string                `gorm:"column:reference;type:text;not null"`
	OrderID      *uuid.UUID            `gorm:"column:order_id;type:uuid"`
	PayoutID     *uuid.UUID            `gorm:"column:payout_id;type:uuid"`
	SupplierID   *uuid.UUID            `gorm:"column:supplier_id;type:uuid"`
	Request      types.RawJSON         `gorm:"column:request;type:jsonb"`
	Response     types.RawJSON         `gorm:"column:response;type:jsonb"`
	Success      bool                  `gorm:"column:success;not null"`
	ErrorMessage *string               `gorm:"column:error_message;type:text"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (PaymentLog) TableName() string { return "payment_logs" }

func (PaymentLog) BeforeUpdate(*gorm.DB) error { return ErrAppendOnly }
func (PaymentLog) BeforeDelete(*gorm.DB) error { return ErrAppendOnly }
