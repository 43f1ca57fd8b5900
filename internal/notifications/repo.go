package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/pagination"
)

// Repository stores in-app notifications. Every read and update is scoped
// to a recipient so one user can never touch another's inbox.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) inbox(ctx context.Context, recipientID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Notification{}).Where("recipient_id = ?", recipientID)
}

func (r *Repository) CreateBatch(ctx context.Context, rows []models.Notification) error {
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		if rows[i].ID == uuid.Nil {
			rows[i].ID = uuid.New()
		}
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// Page returns up to limit+1 rows newest first, seeking past cursor.
func (r *Repository) Page(ctx context.Context, recipientID uuid.UUID, cursor *pagination.Cursor, limit int, unreadOnly bool) ([]models.Notification, error) {
	q := r.inbox(ctx, recipientID)
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}
	var rows []models.Notification
	err := pagination.Apply(q, "", cursor, limit).Find(&rows).Error
	return rows, err
}

func (r *Repository) CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	var n int64
	err := r.inbox(ctx, recipientID).Where("read_at IS NULL").Count(&n).Error
	return n, err
}

// MarkRead reports false when the notification does not exist for the
// recipient. Marking an already read notification is a no-op success.
func (r *Repository) MarkRead(ctx context.Context, recipientID, id uuid.UUID, at time.Time) (bool, error) {
	res := r.inbox(ctx, recipientID).Where("id = ? AND read_at IS NULL", id).UpdateColumn("read_at", at)
	if res.Error != nil || res.RowsAffected > 0 {
		return res.RowsAffected > 0, res.Error
	}
	var n int64
	err := r.inbox(ctx, recipientID).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func (r *Repository) MarkAllRead(ctx context.Context, recipientID uuid.UUID, at time.Time) (int64, error) {
	res := r.inbox(ctx, recipientID).Where("read_at IS NULL").UpdateColumn("read_at", at)
	return res.RowsAffected, res.Error
}

// DeleteReadBefore drops notifications read before cutoff. Unread rows stay
// regardless of age.
func (r *Repository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("read_at IS NOT NULL AND read_at < ?", cutoff).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
