package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/api/responses"
	"github.com/angelmondragon/marketplace-backend/api/validators"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
)

// DeadLetterQueue is the admin view of outbox events the publisher gave up on.
type DeadLetterQueue interface {
	List(ctx context.Context, filter outbox.DeadLetterFilter) ([]models.OutboxDLQ, error)
	Requeue(ctx context.Context, eventID uuid.UUID) error
}

func AdminDeadLetters(dlq DeadLetterQueue, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dlq == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dead letter queue unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := dlq.List(r.Context(), outbox.DeadLetterFilter{
			Reason: enums.OutboxDLQErrorReason(r.URL.Query().Get("reason")),
			Limit:  limit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// AdminRequeueDeadLetter gives the event a fresh attempt budget. The
// publisher picks it up on its next poll.
func AdminRequeueDeadLetter(dlq DeadLetterQueue, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dlq == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dead letter queue unavailable"))
			return
		}
		eventID, err := validators.ParseUUIDParam(r, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithField(r.Context(), "event_id", eventID.String())
		if err := dlq.Requeue(ctx, eventID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		logg.Info(ctx, "dead letter requeued")
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{"event_id": eventID.String()})
	}
}
