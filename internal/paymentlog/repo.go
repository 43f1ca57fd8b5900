package paymentlog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/pagination"
)

// Repository persists payment log entries. There is deliberately no update or
// delete method.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, entry *models.PaymentLog) error
	List(ctx context.Context, filter ListFilter) ([]models.PaymentLog, error)
	CountForOrder(ctx context.Context, kind enums.PaymentLogKind, orderID uuid.UUID) (int64, error)
}

// ListFilter narrows the admin listing.
type ListFilter struct {
	Kind      *enums.PaymentLogKind
	Reference string
	OrderID   *uuid.UUID
	PayoutID  *uuid.UUID
	Cursor    *pagination.Cursor
	Limit     int
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the payment log repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func (r *repository) Insert(ctx context.Context, entry *models.PaymentLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.conn(ctx).Create(entry).Error
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.PaymentLog, error) {
	q := r.conn(ctx).Model(&models.PaymentLog{})
	if filter.Kind != nil {
		q = q.Where("kind = ?", *filter.Kind)
	}
	if filter.Reference != "" {
		q = q.Where("reference = ?", filter.Reference)
	}
	if filter.OrderID != nil {
		q = q.Where("order_id = ?", *filter.OrderID)
	}
	if filter.PayoutID != nil {
		q = q.Where("payout_id = ?", *filter.PayoutID)
	}
	q = pagination.Apply(q, "", filter.Cursor, filter.Limit)

	var rows []models.PaymentLog
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CountForOrder(ctx context.Context, kind enums.PaymentLogKind, orderID uuid.UUID) (int64, error) {
	var count int64
	err := r.conn(ctx).Model(&models.PaymentLog{}).
		Where("kind = ? AND order_id = ?", kind, orderID).
		Count(&count).Error
	return count, err
}
