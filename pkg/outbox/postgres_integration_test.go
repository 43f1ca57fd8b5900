//go:build integration

package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

func TestClaimSkipsRowsLockedByAnotherPublisher(t *testing.T) {
	client := dbtest.Postgres(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	base := time.Now().Add(-time.Minute)
	var ids []uuid.UUID
	for i := range 4 {
		row := models.OutboxEvent{
			ID:            uuid.New(),
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       []byte(`{"version":1}`),
			CreatedAt:     base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.Append(client.DB(), row))
		ids = append(ids, row.ID)
	}

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- client.WithTx(ctx, func(tx *gorm.DB) error {
			rows, err := repo.Claim(tx, 2, 10)
			if err != nil {
				return err
			}
			assert.Len(t, rows, 2)
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := repo.Claim(tx, 10, 10)
		if err != nil {
			return err
		}
		require.Len(t, rows, 2, "rows held by the first publisher are skipped")
		assert.Equal(t, ids[2], rows[0].ID)
		assert.Equal(t, ids[3], rows[1].ID)
		return nil
	}))
	close(release)
	require.NoError(t, <-done)
}

func TestEmitIfNotExistsHonoursOnceIndex(t *testing.T) {
	client := dbtest.Postgres(t)
	svc := NewService(NewRepository(client.DB()), logger.Nop())
	order := uuid.New()

	for range 2 {
		require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
			return svc.EmitIfNotExists(context.Background(), tx, DomainEvent{
				EventType:     enums.EventOrderCreated,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order,
				Data:          map[string]string{"order_id": order.String()},
			})
		}))
	}

	var n int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).Where("aggregate_id = ?", order).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}
