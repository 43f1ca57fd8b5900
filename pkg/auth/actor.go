package auth

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

// Actor is the authenticated caller of a domain operation. Webhooks and
// scheduled jobs run as the system actor, which has no user id.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

// System returns the actor used by webhooks and jobs.
func System() Actor {
	return Actor{Role: enums.ActorRoleSystem}
}

// ActorFromClaims builds the actor carried by a validated token.
func ActorFromClaims(claims *AccessTokenClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{UserID: claims.UserID, Role: claims.Role}
}

func (a Actor) IsAdmin() bool    { return a.Role == enums.ActorRoleAdmin }
func (a Actor) IsSupplier() bool { return a.Role == enums.ActorRoleSupplier }
func (a Actor) IsClient() bool   { return a.Role == enums.ActorRoleClient }
func (a Actor) IsSystem() bool   { return a.Role == enums.ActorRoleSystem }

// IDPtr returns nil for the system actor so audit rows store NULL.
func (a Actor) IDPtr() *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}
