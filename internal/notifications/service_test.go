package notifications

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketplace-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/pagination"
)

type inboxFixture struct {
	svc       Service
	repo      *Repository
	recipient uuid.UUID
	ids       []uuid.UUID
}

// seedInbox stores n notifications one minute apart, oldest first.
func seedInbox(t *testing.T, n int) inboxFixture {
	t.Helper()
	repo := NewRepository(dbtest.Open(t))
	recipient := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	rows := make([]models.Notification, 0, n+1)
	for i := 0; i < n; i++ {
		rows = append(rows, models.Notification{
			ID:          uuid.New(),
			RecipientID: recipient,
			Type:        enums.NotificationTypeOrder,
			Title:       fmt.Sprintf("n%d", i),
			Message:     "m",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
	}
	rows = append(rows, models.Notification{ID: uuid.New(), RecipientID: uuid.New(), Type: enums.NotificationTypePayout, Title: "other", Message: "m"})
	require.NoError(t, repo.CreateBatch(context.Background(), rows))

	svc, err := NewService(repo)
	require.NoError(t, err)
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = rows[i].ID
	}
	return inboxFixture{svc: svc, repo: repo, recipient: recipient, ids: ids}
}

func TestListPagesNewestFirst(t *testing.T) {
	f := seedInbox(t, 3)
	ctx := context.Background()

	first, err := f.svc.List(ctx, f.recipient, Query{Params: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, f.ids[2], first.Items[0].ID)
	assert.Equal(t, f.ids[1], first.Items[1].ID)
	assert.EqualValues(t, 3, first.Unread)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.svc.List(ctx, f.recipient, Query{Params: pagination.Params{Limit: 2, Cursor: first.NextCursor}})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, f.ids[0], second.Items[0].ID)
	assert.Empty(t, second.NextCursor)
}

func TestListUnreadOnly(t *testing.T) {
	f := seedInbox(t, 3)
	ctx := context.Background()
	require.NoError(t, f.svc.MarkRead(ctx, f.recipient, f.ids[1]))

	inbox, err := f.svc.List(ctx, f.recipient, Query{UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, inbox.Items, 2)
	assert.EqualValues(t, 2, inbox.Unread)
	for _, n := range inbox.Items {
		assert.NotEqual(t, f.ids[1], n.ID)
	}
}

func TestListRejectsBadInput(t *testing.T) {
	f := seedInbox(t, 1)
	_, err := f.svc.List(context.Background(), f.recipient, Query{Params: pagination.Params{Cursor: "bad"}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "%v", err)

	_, err = f.svc.List(context.Background(), uuid.Nil, Query{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "%v", err)
}

func TestMarkReadIsScopedAndIdempotent(t *testing.T) {
	f := seedInbox(t, 2)
	ctx := context.Background()

	require.NoError(t, f.svc.MarkRead(ctx, f.recipient, f.ids[0]))
	require.NoError(t, f.svc.MarkRead(ctx, f.recipient, f.ids[0]), "second read is a no-op")

	err := f.svc.MarkRead(ctx, uuid.New(), f.ids[1])
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "other recipients cannot see the row")

	err = f.svc.MarkRead(ctx, f.recipient, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestMarkAllRead(t *testing.T) {
	f := seedInbox(t, 3)
	ctx := context.Background()
	require.NoError(t, f.svc.MarkRead(ctx, f.recipient, f.ids[0]))

	n, err := f.svc.MarkAllRead(ctx, f.recipient)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	unread, err := f.repo.CountUnread(ctx, f.recipient)
	require.NoError(t, err)
	assert.Zero(t, unread)
}
