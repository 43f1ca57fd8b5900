package enums

import "fmt"

// ActorRole identifies who is driving an operation.
type ActorRole string

const (
	ActorRoleAdmin    ActorRole = "admin"
	ActorRoleSupplier ActorRole = "supplier"
	ActorRoleClient   ActorRole = "client"
	// ActorRoleSystem is never present in tokens; it tags webhook and job writes.
	ActorRoleSystem ActorRole = "system"
)

var validActorRoles = []ActorRole{
	ActorRoleAdmin,
	ActorRoleSupplier,
	ActorRoleClient,
	ActorRoleSystem,
}

func (r ActorRole) String() string {
	return string(r)
}

func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseActorRole rejects the system role, which cannot be claimed by a token.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value && candidate != ActorRoleSystem {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
