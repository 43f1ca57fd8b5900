package paymentaccounts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

// Repository persists linked processor accounts and payout wallets.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindAccount(ctx context.Context, supplierID uuid.UUID) (*models.PaymentAccount, error)
	UpsertAccount(ctx context.Context, account *models.PaymentAccount) error
	ListWallets(ctx context.Context, supplierID uuid.UUID) ([]models.SupplierWallet, error)
	FindWallet(ctx context.Context, supplierID uuid.UUID, kind enums.WalletKind, accountRef string) (*models.SupplierWallet, error)
	PrimaryWallet(ctx context.Context, supplierID uuid.UUID) (*models.SupplierWallet, error)
	SaveWallet(ctx context.Context, wallet *models.SupplierWallet) error
	ClearPrimary(ctx context.Context, supplierID uuid.UUID, keep uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindAccount returns nil without error when the supplier has not linked one.
func (r *repository) FindAccount(ctx context.Context, supplierID uuid.UUID) (*models.PaymentAccount, error) {
	var account models.PaymentAccount
	err := r.db.WithContext(ctx).Where("supplier_id = ?", supplierID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) UpsertAccount(ctx context.Context, account *models.PaymentAccount) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "supplier_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"provider",
			"merchant_id",
			"access_token_sealed",
			"refresh_token_sealed",
			"expires_at",
			"scopes",
			"updated_at",
		}),
	}).Create(account).Error
}

func (r *repository) ListWallets(ctx context.Context, supplierID uuid.UUID) ([]models.SupplierWallet, error) {
	var rows []models.SupplierWallet
	err := r.db.WithContext(ctx).
		Where("supplier_id = ?", supplierID).
		Order("is_primary DESC").
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindWallet(ctx context.Context, supplierID uuid.UUID, kind enums.WalletKind, accountRef string) (*models.SupplierWallet, error) {
	var wallet models.SupplierWallet
	err := r.db.WithContext(ctx).
		Where("supplier_id = ? AND kind = ? AND account_ref = ?", supplierID, kind, accountRef).
		First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) PrimaryWallet(ctx context.Context, supplierID uuid.UUID) (*models.SupplierWallet, error) {
	var wallet models.SupplierWallet
	err := r.db.WithContext(ctx).
		Where("supplier_id = ? AND is_primary = ?", supplierID, true).
		First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) SaveWallet(ctx context.Context, wallet *models.SupplierWallet) error {
	if wallet.ID == uuid.Nil {
		wallet.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Save(wallet).Error
}

func (r *repository) ClearPrimary(ctx context.Context, supplierID uuid.UUID, keep uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.SupplierWallet{}).
		Where("supplier_id = ? AND is_primary = ? AND id <> ?", supplierID, true, keep).
		Update("is_primary", false).Error
}
