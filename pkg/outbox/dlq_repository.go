package outbox

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
)

const (
	defaultDeadLetterLimit = 50
	maxDeadLetterLimit     = 200
	maxDLQErrorLen         = 2048
)

// DeadLetterFilter narrows the admin listing. A blank reason lists all.
type DeadLetterFilter struct {
	Reason enums.OutboxDLQErrorReason
	Limit  int
}

// DLQRepository stores events the publisher gave up on. One row per event;
// a second terminal failure of a requeued event replaces nothing and is
// ignored.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return ErrTxRequired
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.ErrorMessage != nil {
		short := truncateDLQError(*entry.ErrorMessage)
		entry.ErrorMessage = &short
	}
	return tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(&entry).Error
}

// List returns the newest dead letters first.
func (r *DLQRepository) List(ctx context.Context, filter DeadLetterFilter) ([]models.OutboxDLQ, error) {
	if filter.Reason != "" && !filter.Reason.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown dead letter reason %q", filter.Reason)
	}
	limit := filter.Limit
	switch {
	case limit <= 0:
		limit = defaultDeadLetterLimit
	case limit > maxDeadLetterLimit:
		limit = maxDeadLetterLimit
	}

	q := r.db.WithContext(ctx).Order("failed_at DESC").Limit(limit)
	if filter.Reason != "" {
		q = q.Where("error_reason = ?", filter.Reason)
	}
	rows := make([]models.OutboxDLQ, 0, limit)
	if err := q.Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dead letters")
	}
	return rows, nil
}

// Requeue hands a dead event back to the publisher: the outbox row gets a
// fresh attempt budget and the dead letter is removed.
func (r *DLQRepository) Requeue(ctx context.Context, eventID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dead models.OutboxDLQ
		err := tx.Where("event_id = ?", eventID).Take(&dead).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "no dead letter for event %s", eventID)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dead letter")
		}

		reset := tx.Model(&models.OutboxEvent{}).
			Where("id = ? AND published_at IS NULL", eventID).
			Updates(map[string]any{"attempt_count": 0, "last_error": nil})
		if reset.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, reset.Error, "reset outbox event")
		}
		if reset.RowsAffected == 0 {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "event %s is published or was purged", eventID)
		}
		return tx.Delete(&dead).Error
	})
}

func truncateDLQError(message string) string {
	return clip(message, maxDLQErrorLen)
}
