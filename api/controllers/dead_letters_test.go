package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
)

type stubDLQ struct {
	filter   outbox.DeadLetterFilter
	requeued uuid.UUID
	err      error
}

func (s *stubDLQ) List(_ context.Context, filter outbox.DeadLetterFilter) ([]models.OutboxDLQ, error) {
	s.filter = filter
	return []models.OutboxDLQ{}, s.err
}

func (s *stubDLQ) Requeue(_ context.Context, eventID uuid.UUID) error {
	s.requeued = eventID
	return s.err
}

func dlqRouter(dlq DeadLetterQueue) http.Handler {
	r := chi.NewRouter()
	r.Get("/dead-letters", AdminDeadLetters(dlq, testLogger()))
	r.Post("/dead-letters/{eventId}/requeue", AdminRequeueDeadLetter(dlq, testLogger()))
	return r
}

func TestAdminDeadLettersForwardsFilter(t *testing.T) {
	dlq := &stubDLQ{}
	resp := httptest.NewRecorder()
	dlqRouter(dlq).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/dead-letters?reason=max_attempts&limit=5", nil))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, outbox.DeadLetterFilter{Reason: enums.OutboxDLQReasonMaxAttempts, Limit: 5}, dlq.filter)
}

func TestAdminRequeueDeadLetter(t *testing.T) {
	dlq := &stubDLQ{}
	id := uuid.New()
	resp := httptest.NewRecorder()
	dlqRouter(dlq).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/dead-letters/"+id.String()+"/requeue", nil))
	assert.Equal(t, http.StatusAccepted, resp.Code)
	assert.Equal(t, id, dlq.requeued)

	resp = httptest.NewRecorder()
	dlqRouter(dlq).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/dead-letters/nope/requeue", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	dlq.err = pkgerrors.New(pkgerrors.CodeNotFound, "no dead letter")
	resp = httptest.NewRecorder()
	dlqRouter(dlq).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/dead-letters/"+id.String()+"/requeue", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
