// Package responses renders the JSON envelopes shared by every handler.
package responses

import (
	"context"
	"encoding/json"
	"net/http"

	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/types"
)

// RequestIDHeader is set on the response by the request id middleware before
// any handler runs.
const RequestIDHeader = "X-Request-Id"

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteCreated(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusCreated, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	_ = writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteError maps err onto the error taxonomy. Untyped errors become
// INTERNAL_ERROR and never leak their text. Client errors log at warn,
// everything else at error with the flattened chain.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
		if err == nil {
			err = typed
		}
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	body := types.APIError{
		Code:      string(typed.Code()),
		Message:   meta.Public(typed),
		RequestID: w.Header().Get(RequestIDHeader),
	}
	if meta.DetailsAllowed {
		body.Details = typed.Details()
	}

	logCtx := logg.WithFields(ctx, pkgerrors.Dump(err).Fields())
	if step := detailStep(typed.Details()); step != nil {
		logCtx = logg.WithField(logCtx, "step", step)
	}
	if meta.HTTPStatus < http.StatusInternalServerError {
		logg.Warn(logCtx, "request rejected")
	} else {
		logg.Error(logCtx, "request failed", err)
	}

	if encErr := writeJSON(w, meta.HTTPStatus, types.ErrorEnvelope{Error: body}); encErr != nil {
		logg.Error(ctx, "encode error response", encErr)
	}
}

// detailStep surfaces the failing step of multi-step operations such as
// payout release, which attach it to their error details.
func detailStep(details any) any {
	if m, ok := details.(map[string]any); ok {
		return m["step"]
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(payload)
}
