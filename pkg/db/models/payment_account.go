package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

// PaymentAccount holds a supplier's linked processor credentials, sealed at rest.
type PaymentAccount struct {
	ID                 uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	SupplierID         uuid.UUID             `gorm:"column:supplier_id;type:uuid;not null;uniqueIndex"`
	Provider           enums.PaymentProvider `gorm:"column:provider;type:text;not null"`
	MerchantID         string                `gorm:"column:merchant_id;type:text;not null"`
	AccessTokenSealed  string                `gorm:"column:access_token_sealed;type:text;not null"`
	RefreshTokenSealed *string               `gorm:"column:refresh_token_sealed;type:text"`
	ExpiresAt          *time.Time            `gorm:"column:expires_at"`
	Scopes             *string               `gorm:"column:scopes;type:text"`
	CreatedAt          time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentAccount) TableName() string { return "payment_accounts" }
