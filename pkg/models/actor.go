package models

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ActorType represents who performed an operation.
type ActorType string

const (
	ActorFacilitator ActorType = "FACILITATOR"
	ActorPanelist    ActorType = "PANELIST"
	ActorSystem      ActorType = "SYSTEM"
)

// String returns the string representation of an ActorType.
func (a ActorType) String() string {
	return string(a)
}

// IsValid returns true if the actor type is known.
func (a ActorType) IsValid() bool {
	switch a {
	case ActorFacilitator, ActorPanelist, ActorSystem:
		return true
	default:
		return false
	}
}

// Actor identifies who issued an operation. It is passed explicitly into every
// core operation; there is no implicit fallback identity.
type Actor struct {
	Type ActorType `json:"type"`
	ID   uuid.UUID `json:"id,omitempty"`
}

// Validate checks that the actor is fully specified. System actors carry no ID.
func (a Actor) Validate() error {
	if !a.Type.IsValid() {
		return fmt.Errorf("invalid actor type: %q", a.Type)
	}
	if a.Type != ActorSystem && a.ID == uuid.Nil {
		return fmt.Errorf("actor id is required for %s", a.Type)
	}
	return nil
}

// IDPtr returns the actor ID, or nil for system actors.
func (a Actor) IDPtr() *uuid.UUID {
	if a.ID == uuid.Nil {
		return nil
	}
	id := a.ID
	return &id
}

// SystemActor is used for work the engine performs on its own behalf.
var SystemActor = Actor{Type: ActorSystem}

// actorKey is the context key for storing the request actor.
type actorKey struct{}

// WithActor returns a new context carrying the actor resolved by middleware.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// GetActor retrieves the actor from the context.
// Returns the actor and true if present, otherwise a zero value and false.
func GetActor(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}
