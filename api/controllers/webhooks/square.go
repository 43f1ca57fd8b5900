package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/angelmondragon/marketplace-backend/api/responses"
	squarewebhook "github.com/angelmondragon/marketplace-backend/internal/webhooks/square"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/square"
)

const maxWebhookBody = 1 << 20

type SquareWebhookService interface {
	HandleEvent(ctx context.Context, event *squarewebhook.Event, raw []byte) (squarewebhook.Outcome, error)
}

type squareWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type signatureVerifier interface {
	Enabled() bool
	Verify(body []byte, signature string) bool
}

type outcomeRecorder interface {
	WebhookOutcome(outcome string)
}

// SquareWebhookParams wires the payment notification endpoint.
type SquareWebhookParams struct {
	Service SquareWebhookService
	Guard   squareWebhookGuard
	// Verifier may be disabled in local environments unless RequireSignature is set.
	Verifier         signatureVerifier
	RequireSignature bool
	Metrics          outcomeRecorder
	Logger           *logger.Logger
}

type webhookAck struct {
	Outcome squarewebhook.Outcome `json:"outcome"`
}

// SquareWebhook handles Square payment notifications.
func SquareWebhook(params SquareWebhookParams) http.HandlerFunc {
	logg := params.Logger
	record := func(outcome squarewebhook.Outcome) {
		if params.Metrics != nil {
			params.Metrics.WebhookOutcome(string(outcome))
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if params.Service == nil || params.Guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook handling unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		switch {
		case params.Verifier != nil && params.Verifier.Enabled():
			if !params.Verifier.Verify(payload, r.Header.Get(square.SignatureHeader)) {
				record(squarewebhook.OutcomeRejected)
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid square signature"))
				return
			}
		case params.RequireSignature:
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "square signature key not configured"))
			return
		default:
			if logg != nil {
				logg.Warn(ctx, "square webhook signature verification disabled")
			}
		}

		event, err := squarewebhook.ParseEvent(payload)
		if err != nil {
			record(squarewebhook.OutcomeRejected)
			responses.WriteError(ctx, logg, w, err)
			return
		}
		eventID := event.DedupeID()
		if eventID == "" {
			record(squarewebhook.OutcomeRejected)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "square event carries no id"))
			return
		}
		if logg != nil {
			ctx = logg.WithField(ctx, "event_id", eventID)
		}

		alreadyProcessed, err := params.Guard.CheckAndMark(ctx, eventID)
		if err != nil {
			record(squarewebhook.OutcomeFailed)
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			record(squarewebhook.OutcomeDuplicate)
			responses.WriteSuccess(w, webhookAck{Outcome: squarewebhook.OutcomeDuplicate})
			return
		}

		outcome, err := params.Service.HandleEvent(ctx, event, payload)
		if err != nil {
			if delErr := params.Guard.Delete(ctx, eventID); delErr != nil && logg != nil {
				logg.Error(ctx, "release webhook idempotency marker", delErr)
			}
			record(squarewebhook.OutcomeFailed)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		record(outcome)
		if logg != nil {
			logg.Info(ctx, "square event "+string(outcome))
		}
		responses.WriteSuccess(w, webhookAck{Outcome: outcome})
	}
}
