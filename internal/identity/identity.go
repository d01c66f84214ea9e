// Package identity holds the caller identity passed into every community
// operation.
package identity

import (
	"context"

	"github.com/google/uuid"
)

// Identity is the subject behind a request. The zero value is the
// anonymous caller.
type Identity struct {
	ID        uuid.UUID `json:"id"`
	Ephemeral bool      `json:"ephemeral"`
}

// Anonymous returns the identity of a caller with no session.
func Anonymous() Identity {
	return Identity{}
}

// IsAnonymous reports whether no subject is attached.
func (i Identity) IsAnonymous() bool {
	return i.ID == uuid.Nil
}

// Is reports whether i refers to the given subject id. The anonymous
// identity matches nothing, including uuid.Nil.
func (i Identity) Is(id uuid.UUID) bool {
	return !i.IsAnonymous() && i.ID == id
}

func (i Identity) String() string {
	if i.IsAnonymous() {
		return "anonymous"
	}
	if i.Ephemeral {
		return i.ID.String() + " (ephemeral)"
	}
	return i.ID.String()
}

// Provider mints identities for callers that have none yet.
type Provider interface {
	// MintEphemeral creates a new throwaway identity.
	MintEphemeral(ctx context.Context) (Identity, error)
}
