package outbox

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

// lastErrorLimit bounds outbox_events.last_error.
const lastErrorLimit = 1024

// Repository owns outbox_events. Everything except Purge runs on the
// caller's transaction.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Append(tx *gorm.DB, row models.OutboxEvent) error {
	if tx == nil {
		return ErrTxRequired
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return tx.Create(&row).Error
}

// Has reports whether the aggregate already has a row of this type, published or not.
func (r *Repository) Has(tx *gorm.DB, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, ErrTxRequired
	}
	var n int64
	err := tx.Model(&models.OutboxEvent{}).
		Where(&models.OutboxEvent{EventType: eventType, AggregateType: aggregateType, AggregateID: aggregateID}).
		Count(&n).Error
	return n > 0, err
}

// Claim returns up to limit pending rows, oldest first. On postgres the rows
// stay locked (FOR UPDATE SKIP LOCKED) until tx ends, so publishers running
// side by side never claim the same row.
func (r *Repository) Claim(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, ErrTxRequired
	}
	q := tx.Where("published_at IS NULL AND attempt_count < ?", maxAttempts).
		Order("created_at, id").
		Limit(limit)
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	var claimed []models.OutboxEvent
	return claimed, q.Find(&claimed).Error
}

func (r *Repository) Published(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return r.update(tx, id, map[string]any{"published_at": at.UTC(), "last_error": nil})
}

// Failed counts one more attempt and keeps the row claimable.
func (r *Repository) Failed(tx *gorm.DB, id uuid.UUID, cause error) error {
	return r.update(tx, id, map[string]any{
		"last_error":    clip(cause.Error(), lastErrorLimit),
		"attempt_count": gorm.Expr("attempt_count + 1"),
	})
}

// Park pins attempt_count at ceiling so Claim never returns the row again.
// The row itself stays for the dead letter requeue.
func (r *Repository) Park(tx *gorm.DB, id uuid.UUID, cause error, ceiling int) error {
	return r.update(tx, id, map[string]any{"last_error": clip(cause.Error(), lastErrorLimit), "attempt_count": ceiling})
}

func (r *Repository) update(tx *gorm.DB, id uuid.UUID, cols map[string]any) error {
	if tx == nil {
		return ErrTxRequired
	}
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(cols).Error
}

// Purge deletes published rows created before cutoff. Pending and parked
// rows are never touched.
func (r *Repository) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("published_at IS NOT NULL AND created_at < ?", cutoff).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

// clip shortens s to at most limit bytes without splitting a rune; text
// columns reject invalid UTF-8.
func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
