package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.Items {
		if order.Items[i].ID == uuid.Nil {
			order.Items[i].ID = uuid.New()
		}
		order.Items[i].OrderID = order.ID
	}
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateIfState(ctx context.Context, id uuid.UUID, status enums.OrderStatus, payment *enums.PaymentStatus, updates map[string]any) (int64, error) {
	q := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, status)
	if payment != nil {
		q = q.Where("payment_status = ?", *payment)
	}
	res := q.Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) AppendStatusChange(ctx context.Context, change *models.OrderStatusChange) error {
	if change.ID == uuid.Nil {
		change.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(change).Error
}

func (r *repository) ListStatusChanges(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusChange, error) {
	var rows []models.OrderStatusChange
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Order, error) {
	conn := r.db.WithContext(ctx)
	q := conn.Model(&models.Order{}).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") })
	if filter.Status != nil {
		q = q.Where("orders.status = ?", *filter.Status)
	}
	if filter.ClientID != nil {
		q = q.Where("orders.client_id = ?", *filter.ClientID)
	}
	if filter.SupplierID != nil {
		q = q.Where("orders.id IN (?)",
			conn.Model(&models.OrderItem{}).Select("order_id").Where("supplier_id = ?", *filter.SupplierID))
	}
	q = pagination.Apply(q, "orders", filter.Cursor, filter.Limit)

	var rows []models.Order
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindExpiredPreferences(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status = ?", enums.OrderStatusPending).
		Where("payment_status = ?", enums.PaymentStatusPending).
		Where("preference_expires_at IS NOT NULL AND preference_expires_at < ?", now).
		Order("preference_expires_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}
