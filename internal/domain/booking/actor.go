package booking

import (
	"fmt"
	"strings"
)

// ActorRole is the role an actor plays relative to one booking.
type ActorRole string

const (
	ActorRenter ActorRole = "RENTER"
	ActorOwner  ActorRole = "OWNER"
	ActorAdmin  ActorRole = "ADMIN"
	// ActorSystem is used for automated transitions such as payment confirmation.
	ActorSystem ActorRole = "SYSTEM"
)

// ParseActorRole accepts any casing of a known role.
func ParseActorRole(s string) (ActorRole, error) {
	switch r := ActorRole(strings.ToUpper(strings.TrimSpace(s))); r {
	case ActorRenter, ActorOwner, ActorAdmin, ActorSystem:
		return r, nil
	}
	return "", fmt.Errorf("invalid actor role: %s", s)
}

func (r ActorRole) String() string { return string(r) }
