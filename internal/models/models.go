package models

import (
	"time"

	"github.com/google/uuid"
)

// MembershipStatus is where a membership row sits in the join state machine.
// The absence of a row is the fourth state (NONE).
type MembershipStatus string

const (
	StatusPending  MembershipStatus = "pending"
	StatusApproved MembershipStatus = "approved"
	StatusRejected MembershipStatus = "rejected"
)

// Valid reports whether s is one of the three stored statuses.
func (s MembershipStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// MembershipRole distinguishes the owner's own row from everyone else's.
type MembershipRole string

const (
	RoleOwner  MembershipRole = "owner"
	RoleMember MembershipRole = "member"
)

// DefaultMapName is the sentinel name of the map every community is
// expected to have.
const DefaultMapName = "default"

// User backs an identity. Ephemeral users are minted for anonymous callers
// joining public communities and have neither email nor password.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        *string   `json:"email,omitempty"`
	DisplayName  string    `json:"display_name"`
	PasswordHash *string   `json:"-"`
	IsEphemeral  bool      `json:"is_ephemeral"`
	CreatedAt    time.Time `json:"created_at"`
}

// Community is the top-level shared namespace. OwnerID is set at creation
// and never changes. Deleting a community cascades to its memberships and
// maps at the store.
type Community struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description,omitempty"`
	IsPublic    bool      `json:"is_public"`
	OwnerID     uuid.UUID `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Membership links one user to one community. At most one row exists per
// (CommunityID, UserID); the store enforces it.
type Membership struct {
	ID          uuid.UUID        `json:"id"`
	CommunityID uuid.UUID        `json:"community_id"`
	UserID      uuid.UUID        `json:"user_id"`
	Status      MembershipStatus `json:"status"`
	Role        MembershipRole   `json:"role"`
	Nickname    *string          `json:"nickname,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Map is a per-community content resource. The one named DefaultMapName is
// provisioned on creation and repaired on read when missing.
type Map struct {
	ID          uuid.UUID `json:"id"`
	CommunityID uuid.UUID `json:"community_id"`
	Name        string    `json:"name"`
	CreatedBy   uuid.UUID `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}
