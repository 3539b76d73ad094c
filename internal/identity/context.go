// Package identity resolves caller credentials into a stable actor identity.
// The booking engine trusts the resolved identifier verbatim.
package identity

import (
	"context"

	"github.com/google/uuid"
)

// Role describes what kind of account the caller holds.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
	RoleAdmin   Role = "admin"
)

// Actor is the authenticated caller.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

type contextKey struct{}

// WithActor stores the actor in the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, actor)
}

// FromContext extracts the actor placed by the auth middleware.
func FromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(contextKey{}).(Actor)
	return actor, ok
}
