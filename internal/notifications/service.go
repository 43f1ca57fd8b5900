package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/pagination"
)

// Service is the recipient facing side of notifications.
type Service interface {
	List(ctx context.Context, recipientID uuid.UUID, query Query) (*Inbox, error)
	MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error)
}

// Query selects one page of the inbox.
type Query struct {
	pagination.Params
	UnreadOnly bool
}

// Inbox is a page of notifications plus the recipient's unread total.
type Inbox struct {
	pagination.Page[models.Notification]
	Unread int64 `json:"unread"`
}

type inboxStore interface {
	Page(ctx context.Context, recipientID uuid.UUID, cursor *pagination.Cursor, limit int, unreadOnly bool) ([]models.Notification, error)
	CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, recipientID, id uuid.UUID, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, recipientID uuid.UUID, at time.Time) (int64, error)
}

type service struct {
	store inboxStore
	now   func() time.Time
}

func NewService(store inboxStore) (Service, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{store: store, now: time.Now}, nil
}

func requireRecipient(id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "recipient required")
	}
	return nil
}

func (s *service) List(ctx context.Context, recipientID uuid.UUID, query Query) (*Inbox, error) {
	if err := requireRecipient(recipientID); err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(query.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.store.Page(ctx, recipientID, cursor, query.Limit, query.UnreadOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	unread, err := s.store.CountUnread(ctx, recipientID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}

	return &Inbox{
		Page: pagination.Build(rows, query.Limit, func(n models.Notification) pagination.Cursor {
			return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
		}),
		Unread: unread,
	}, nil
}

func (s *service) MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) error {
	if err := requireRecipient(recipientID); err != nil {
		return err
	}
	found, err := s.store.MarkRead(ctx, recipientID, notificationID, s.now().UTC())
	switch {
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	case !found:
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	if err := requireRecipient(recipientID); err != nil {
		return 0, err
	}
	n, err := s.store.MarkAllRead(ctx, recipientID, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return n, nil
}
