package square

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"

	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
)

// translate maps an SDK failure onto the error taxonomy. A reused
// idempotency key wins over whatever the HTTP status says.
func translate(err error, op string) error {
	msg := "square " + strings.ReplaceAll(op, "_", " ") + " failed"
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, msg)
	}
	for _, e := range squareErrors(apiErr) {
		if e != nil && e.Code == sq.ErrorCodeIdempotencyKeyReused {
			return pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, msg)
		}
	}
	return pkgerrors.Wrap(codeForStatus(apiErr.StatusCode), err, msg)
}

// squareErrors decodes the {"errors":[...]} body the SDK keeps as the
// wrapped error text.
func squareErrors(apiErr *sqcore.APIError) []*sq.Error {
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	var body struct {
		Errors []*sq.Error `json:"errors"`
	}
	if json.Unmarshal([]byte(strings.TrimSpace(inner.Error())), &body) != nil {
		return nil
	}
	return body.Errors
}

// codeForStatus: auth failures are our credentials, so they are upstream
// problems rather than caller mistakes.
func codeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return pkgerrors.CodeValidation
	}
	return pkgerrors.CodeUpstream
}
