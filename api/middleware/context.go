package middleware

import (
	"context"

	"github.com/angelmondragon/marketplace-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
)

type contextKey string

const ctxActor contextKey = "actor"

// WithActor injects the authenticated caller into the context.
func WithActor(ctx context.Context, actor auth.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}

// ActorFromContext returns the caller seeded by Auth.
func ActorFromContext(ctx context.Context) (auth.Actor, bool) {
	if ctx == nil {
		return auth.Actor{}, false
	}
	actor, ok := ctx.Value(ctxActor).(auth.Actor)
	return actor, ok
}

func UserIDFromContext(ctx context.Context) string {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.IDPtr() == nil {
		return ""
	}
	return actor.UserID.String()
}

func RoleFromContext(ctx context.Context) string {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return ""
	}
	return string(actor.Role)
}

// RequireActor returns the authenticated caller or an UNAUTHORIZED error.
func RequireActor(ctx context.Context) (auth.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return auth.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return actor, nil
}
