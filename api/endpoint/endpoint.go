// Package endpoint is the shared shape of an authenticated JSON handler:
// resolve the actor, optionally the path id, run the operation, render.
package endpoint

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/api/middleware"
	"github.com/angelmondragon/marketplace-backend/api/responses"
	"github.com/angelmondragon/marketplace-backend/api/validators"
	"github.com/angelmondragon/marketplace-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// Call is one authenticated request. ID is set when the route names a path
// parameter.
type Call struct {
	W     http.ResponseWriter
	R     *http.Request
	Actor auth.Actor
	ID    uuid.UUID
}

func (c *Call) Ctx() context.Context { return c.R.Context() }

// Body decodes and validates a required JSON body.
func (c *Call) Body(dest any) error {
	return validators.DecodeJSONBody(c.W, c.R, dest)
}

// OptionalBody leaves dest untouched when the request carries no body.
func (c *Call) OptionalBody(dest any) error {
	if c.R.Body == nil || c.R.ContentLength == 0 {
		return nil
	}
	return c.Body(dest)
}

type Result = func(*Call) (int, any, error)

// Route describes how a handler resolves its inputs.
type Route struct {
	// Service names the backing service in the "unavailable" error. An empty
	// Service with Ready false is still rejected.
	Service string
	Ready   bool
	Logger  *logger.Logger
	// Param is the uuid path parameter loaded into Call.ID, if any.
	Param string
	// Scope attaches Call.ID to the request logger under this field.
	Scope func(l *logger.Logger, ctx context.Context, id string) context.Context
}

func (rt Route) Handle(fn Result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fail := func(err error) { responses.WriteError(r.Context(), rt.Logger, w, err) }
		if !rt.Ready {
			fail(pkgerrors.New(pkgerrors.CodeInternal, rt.Service+" service unavailable"))
			return
		}
		actor, err := middleware.RequireActor(r.Context())
		if err != nil {
			fail(err)
			return
		}
		c := &Call{W: w, R: r, Actor: actor}
		if rt.Param != "" {
			if c.ID, err = validators.ParseUUIDParam(r, rt.Param); err != nil {
				fail(err)
				return
			}
			if rt.Scope != nil {
				c.R = r.WithContext(rt.Scope(rt.Logger, r.Context(), c.ID.String()))
			}
		}

		status, body, err := fn(c)
		if err != nil {
			responses.WriteError(c.R.Context(), rt.Logger, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, body)
	}
}

// OK and Created adapt a (value, error) pair so calls read
// `return endpoint.OK(svc.Get(...))`.
func OK(body any, err error) (int, any, error) { return http.StatusOK, body, err }

func Created(body any, err error) (int, any, error) { return http.StatusCreated, body, err }

func Accepted(body any, err error) (int, any, error) { return http.StatusAccepted, body, err }
