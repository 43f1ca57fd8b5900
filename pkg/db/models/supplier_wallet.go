package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

type SupplierWallet struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	SupplierID uuid.UUID        `gorm:"column:supplier_id;type:uuid;not null"`
	Kind       enums.WalletKind `gorm:"column:kind;type:text;not null"`
	AccountRef string           `gorm:"column:account_ref;type:text;not null"`
	HolderName *string          `gorm:"column:holder_name;type:text"`
	IsPrimary  bool             `gorm:"column:is_primary;not null;default:false"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (SupplierWallet) TableName() string { return "supplier_wallets" }
