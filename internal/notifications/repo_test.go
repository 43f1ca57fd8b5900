package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketplace-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

func TestDeleteReadBeforeKeepsUnreadAndRecent(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	old := now.Add(-120 * 24 * time.Hour)
	recent := now.Add(-time.Hour)

	rows := []models.Notification{
		{ID: uuid.New(), RecipientID: uuid.New(), Type: enums.NotificationTypeOrder, Title: "old", Message: "m", ReadAt: &old},
		{ID: uuid.New(), RecipientID: uuid.New(), Type: enums.NotificationTypeOrder, Title: "recent", Message: "m", ReadAt: &recent},
		{ID: uuid.New(), RecipientID: uuid.New(), Type: enums.NotificationTypePayout, Title: "unread", Message: "m"},
	}
	require.NoError(t, repo.CreateBatch(ctx, rows))

	deleted, err := repo.DeleteReadBefore(ctx, now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	var titles []string
	require.NoError(t, conn.Model(&models.Notification{}).Order("title").Pluck("title", &titles).Error)
	require.Equal(t, []string{"recent", "unread"}, titles)
}
