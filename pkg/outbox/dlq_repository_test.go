package outbox

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
)

func deadEvent(t *testing.T, conn *gorm.DB, reason enums.OutboxDLQErrorReason, failedAt time.Time) models.OutboxEvent {
	t.Helper()
	msg := "topic missing"
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventPayoutPaid,
		AggregateType: enums.AggregatePayout,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{}`),
		AttemptCount:  10,
		LastError:     &msg,
	}
	require.NoError(t, conn.Create(&event).Error)

	repo := NewDLQRepository(conn)
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return repo.InsertTx(tx, models.OutboxDLQ{
			EventID:       event.ID,
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			AggregateID:   event.AggregateID,
			Payload:       event.Payload,
			ErrorReason:   reason,
			ErrorMessage:  &msg,
			AttemptCount:  event.AttemptCount,
			FailedAt:      failedAt,
		})
	}))
	return event
}

func TestDLQInsertIsOncePerEvent(t *testing.T) {
	conn := dbtest.Open(t)
	event := deadEvent(t, conn, enums.OutboxDLQReasonMaxAttempts, time.Now())

	repo := NewDLQRepository(conn)
	require.NoError(t, repo.InsertTx(conn, models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   enums.OutboxDLQReasonNonRetryable,
	}))

	var count int64
	require.NoError(t, conn.Model(&models.OutboxDLQ{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	assert.ErrorIs(t, repo.InsertTx(nil, models.OutboxDLQ{}), ErrTxRequired)
}

func TestDLQInsertClipsLongMessagesOnRuneBoundary(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewDLQRepository(conn)

	// "é" is two bytes, so an odd byte limit lands inside a rune.
	long := "x" + strings.Repeat("é", maxDLQErrorLen)
	eventID := uuid.New()
	require.NoError(t, repo.InsertTx(conn, models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventPayoutPaid,
		AggregateType: enums.AggregatePayout,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{}`),
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &long,
	}))

	var row models.OutboxDLQ
	require.NoError(t, conn.Where("event_id = ?", eventID).First(&row).Error)
	require.NotNil(t, row.ErrorMessage)
	assert.LessOrEqual(t, len(*row.ErrorMessage), maxDLQErrorLen)
	assert.True(t, utf8.ValidString(*row.ErrorMessage))
	assert.True(t, strings.HasPrefix(long, *row.ErrorMessage))
}

func TestClipKeepsShortStrings(t *testing.T) {
	assert.Equal(t, "abc", clip("abc", 3))
	assert.Equal(t, "ab", clip("abé", 3))
	assert.Equal(t, "", clip("é", 1))
}

func TestDLQListFiltersByReason(t *testing.T) {
	conn := dbtest.Open(t)
	now := time.Now().UTC()
	older := deadEvent(t, conn, enums.OutboxDLQReasonMaxAttempts, now.Add(-time.Hour))
	newer := deadEvent(t, conn, enums.OutboxDLQReasonMaxAttempts, now)
	deadEvent(t, conn, enums.OutboxDLQReasonNonRetryable, now)

	repo := NewDLQRepository(conn)
	rows, err := repo.List(context.Background(), DeadLetterFilter{Reason: enums.OutboxDLQReasonMaxAttempts})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, newer.ID, rows[0].EventID)
	assert.Equal(t, older.ID, rows[1].EventID)

	all, err := repo.List(context.Background(), DeadLetterFilter{Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = repo.List(context.Background(), DeadLetterFilter{Reason: "bogus"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDLQRequeueResetsAttempts(t *testing.T) {
	conn := dbtest.Open(t)
	event := deadEvent(t, conn, enums.OutboxDLQReasonMaxAttempts, time.Now())
	repo := NewDLQRepository(conn)

	require.NoError(t, repo.Requeue(context.Background(), event.ID))

	var reloaded models.OutboxEvent
	require.NoError(t, conn.First(&reloaded, "id = ?", event.ID).Error)
	assert.Zero(t, reloaded.AttemptCount)
	assert.Nil(t, reloaded.LastError)

	err := repo.Requeue(context.Background(), event.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "%v", err)
}

func TestDLQRequeueRefusesPublishedEvents(t *testing.T) {
	conn := dbtest.Open(t)
	event := deadEvent(t, conn, enums.OutboxDLQReasonMaxAttempts, time.Now())
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("id = ?", event.ID).Update("published_at", time.Now()).Error)

	err := NewDLQRepository(conn).Requeue(context.Background(), event.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "%v", err)

	var dead models.OutboxDLQ
	assert.False(t, errors.Is(conn.First(&dead, "event_id = ?", event.ID).Error, gorm.ErrRecordNotFound), "dead letter must survive a refused requeue")
}
