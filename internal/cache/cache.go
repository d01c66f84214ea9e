// Package cache keeps per-(community, identity) membership views so
// ownership and membership state are computed once and invalidated on
// every change rather than recomputed on each read.
package cache

import (
	"context"

	"github.com/google/uuid"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/models"
)

// View is what one identity knows about its standing in one community.
// A nil Membership means no visible row.
type View struct {
	Membership *models.Membership `json:"membership,omitempty"`
	IsOwner    bool               `json:"is_owner"`
}

// Ticket is the community's cache generation as seen by a Get. Every
// invalidation moves the generation on, so a Set carrying an older ticket
// is dropped instead of writing back a view loaded before the change.
type Ticket uint64

// MembershipCache stores Views keyed by (communityID, subjectID).
//
// The read-through pattern is: Get, and on a miss load from the store and
// Set with the ticket Get returned.
type MembershipCache interface {
	// Get reports a miss with ok == false. The ticket is valid either way.
	Get(ctx context.Context, communityID, subjectID uuid.UUID) (view View, ticket Ticket, ok bool, err error)
	// Set stores view unless the community was invalidated after ticket
	// was issued. A dropped write is not an error.
	Set(ctx context.Context, communityID, subjectID uuid.UUID, ticket Ticket, view View) error
	Invalidate(ctx context.Context, communityID, subjectID uuid.UUID) error
	// InvalidateCommunity drops every view of the community.
	InvalidateCommunity(ctx context.Context, communityID uuid.UUID) error
}
