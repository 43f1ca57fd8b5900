package controllers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/api/middleware"
	"github.com/angelmondragon/marketplace-backend/api/responses"
	"github.com/angelmondragon/marketplace-backend/api/validators"
	"github.com/angelmondragon/marketplace-backend/internal/notifications"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// inboxHandler resolves the service and the caller before running fn. Every
// notification route is scoped to the authenticated user.
func inboxHandler(svc notifications.Service, logg *logger.Logger, fn func(r *http.Request, recipient uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}
		actor, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body, err := fn(r, actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, body)
	}
}

// ListNotifications returns the caller's inbox, newest first, with the
// unread total. ?unread=true hides read rows.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(svc, logg, func(r *http.Request, recipient uuid.UUID) (any, error) {
		page, err := validators.ParsePagination(r)
		if err != nil {
			return nil, err
		}
		query := notifications.Query{Params: page}
		if raw := r.URL.Query().Get("unread"); raw != "" {
			if query.UnreadOnly, err = strconv.ParseBool(raw); err != nil {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "unread must be a boolean").
					WithDetails(map[string]any{"field": "unread"})
			}
		}
		return svc.List(r.Context(), recipient, query)
	})
}

func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(svc, logg, func(r *http.Request, recipient uuid.UUID) (any, error) {
		id, err := validators.ParseUUIDParam(r, "notificationId")
		if err != nil {
			return nil, err
		}
		if err := svc.MarkRead(r.Context(), recipient, id); err != nil {
			return nil, err
		}
		return map[string]any{"id": id, "read": true}, nil
	})
}

func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(svc, logg, func(r *http.Request, recipient uuid.UUID) (any, error) {
		n, err := svc.MarkAllRead(r.Context(), recipient)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"updated": n}, nil
	})
}
