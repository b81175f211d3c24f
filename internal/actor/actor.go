package actor

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Role describes who triggered a change.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
	RoleAdmin  Role = "admin"
)

// Actor identifies the originator of a ledger entry or audit record.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// System is the actor for automated flows (auto-pay, queue callbacks).
var System = Actor{Role: RoleSystem}

func User(id uuid.UUID) Actor  { return Actor{ID: id, Role: RoleUser} }
func Admin(id uuid.UUID) Actor { return Actor{ID: id, Role: RoleAdmin} }

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// String renders the actor as stored: "system", "user:<id>" or "admin:<id>".
func (a Actor) String() string {
	if a.Role == RoleSystem || a.Role == "" {
		return string(RoleSystem)
	}

	return string(a.Role) + ":" + a.ID.String()
}

// Parse is the inverse of String.
func Parse(s string) (Actor, error) {
	if s == string(RoleSystem) {
		return System, nil
	}

	role, rawID, ok := strings.Cut(s, ":")
	if !ok {
		return Actor{}, fmt.Errorf("invalid actor %q", s)
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return Actor{}, fmt.Errorf("invalid actor id %q: %w", rawID, err)
	}

	switch Role(role) {
	case RoleUser, RoleAdmin:
		return Actor{ID: id, Role: Role(role)}, nil
	default:
		return Actor{}, fmt.Errorf("invalid actor role %q", role)
	}
}

type ctxKey struct{}

func WithContext(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext returns the authenticated actor, if any.
func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok
}
