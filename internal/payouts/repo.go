package payouts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payouts repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payout *models.Payout) error {
	if payout.ID == uuid.Nil {
		payout.ID = uuid.New()
	}
	for i := range payout.Orders {
		payout.Orders[i].PayoutID = payout.ID
	}
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	err := r.db.WithContext(ctx).
		Preload("Orders", func(db *gorm.DB) *gorm.DB { return db.Order("order_id ASC") }).
		Where("id = ?", id).
		First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) UpdateIfStatus(ctx context.Context, id uuid.UUID, statuses []enums.PayoutStatus, updates map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("id = ? AND status IN ?", id, statuses).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Payout, error) {
	q := r.db.WithContext(ctx).Model(&models.Payout{}).
		Preload("Orders", func(db *gorm.DB) *gorm.DB { return db.Order("order_id ASC") })
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.SupplierID != nil {
		q = q.Where("supplier_id = ?", *filter.SupplierID)
	}
	q = pagination.Apply(q, "", filter.Cursor, filter.Limit)

	var rows []models.Payout
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByStatus(ctx context.Context, status enums.PayoutStatus, limit int) ([]models.Payout, error) {
	var rows []models.Payout
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("last_tried_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) LoadOrders(ctx context.Context, ids []uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	if len(ids) == 0 {
		return rows, nil
	}
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id IN ?", ids).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ClaimedOrderIDs(ctx context.Context, supplierID uuid.UUID, orderIDs []uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if len(orderIDs) == 0 {
		return ids, nil
	}
	err := r.db.WithContext(ctx).
		Table("payout_orders").
		Joins("JOIN payouts ON payouts.id = payout_orders.payout_id").
		Where("payout_orders.supplier_id = ?", supplierID).
		Where("payout_orders.order_id IN ?", orderIDs).
		Where("payouts.status <> ?", enums.PayoutStatusCancelled).
		Distinct().
		Pluck("payout_orders.order_id", &ids).Error
	return ids, err
}

func (r *repository) SettlementCandidates(ctx context.Context, limit int) ([]SettlementCandidate, error) {
	conn := r.db.WithContext(ctx)
	claimed := conn.Table("payout_orders").
		Select("1").
		Joins("JOIN payouts ON payouts.id = payout_orders.payout_id").
		Where("payout_orders.order_id = order_items.order_id").
		Where("payout_orders.supplier_id = order_items.supplier_id").
		Where("payouts.status <> ?", enums.PayoutStatusCancelled)
	// Suppliers without a primary wallet cannot be paid; leaving them in the
	// page would starve everyone sorted after them.
	payable := conn.Table("supplier_wallets").
		Select("1").
		Where("supplier_wallets.supplier_id = order_items.supplier_id").
		Where("supplier_wallets.is_primary = ?", true)

	var rows []SettlementCandidate
	err := conn.
		Table("order_items").
		Select("order_items.supplier_id AS supplier_id, order_items.order_id AS order_id, orders.currency AS currency, SUM(order_items.unit_price_cents * order_items.quantity) AS amount_cents").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.status = ?", enums.OrderStatusCompleted).
		Where("orders.payment_status = ?", enums.PaymentStatusApproved).
		Where("NOT EXISTS (?)", claimed).
		Where("EXISTS (?)", payable).
		Group("order_items.supplier_id, order_items.order_id, orders.currency").
		Order("order_items.supplier_id ASC").
		Order("order_items.order_id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
