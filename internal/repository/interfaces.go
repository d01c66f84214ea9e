package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/models"
)

// Every implementation reports store-level constraint failures with these
// sentinels so callers never depend on driver error codes.
var (
	// ErrDuplicate is returned when an insert hits a uniqueness constraint:
	// community slug, (community_id, user_id) membership, (community_id, name)
	// map, or user email.
	ErrDuplicate = errors.New("duplicate row")

	// ErrNoParent is returned when an insert references a community that no
	// longer exists.
	ErrNoParent = errors.New("referenced row does not exist")
)

// Lookups return nil, nil when the row does not exist.
//
// Methods that take a viewer apply the row-visibility policy for membership
// rows: a row is visible when it is the viewer's own row, when the viewer
// owns the community, or when the community is public. uuid.Nil is the
// anonymous viewer and sees public rows only.

// CommunityRepository stores communities.
type CommunityRepository interface {
	// Create inserts c and returns it with ID and CreatedAt populated.
	Create(ctx context.Context, c *models.Community) (*models.Community, error)

	GetByID(ctx context.Context, id uuid.UUID) (*models.Community, error)
	GetBySlug(ctx context.Context, slug string) (*models.Community, error)
	SlugExists(ctx context.Context, slug string) (bool, error)

	// List returns public communities first, then newest first, at most
	// limit rows.
	List(ctx context.Context, limit int) ([]models.Community, error)

	// ListAll returns every community, oldest first.
	ListAll(ctx context.Context) ([]models.Community, error)

	// Delete removes the community; memberships and maps go with it.
	// Reports whether a row was deleted.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// MembershipRepository stores join records.
type MembershipRepository interface {
	// Create inserts m. ErrDuplicate if the (community, user) pair already
	// has a row, ErrNoParent if the community is gone.
	Create(ctx context.Context, m *models.Membership) (*models.Membership, error)

	// Get returns the (communityID, userID) row if viewer may see it.
	Get(ctx context.Context, viewer, communityID, userID uuid.UUID) (*models.Membership, error)

	// GetWithOwner returns a membership together with the owner_id of its
	// community, resolved by a join at the store. Not visibility scoped:
	// callers use it to verify ownership server-side.
	GetWithOwner(ctx context.Context, membershipID uuid.UUID) (*models.Membership, uuid.UUID, error)

	// UpdateStatus sets the status and bumps updated_at. Returns nil, nil
	// when the row is gone.
	UpdateStatus(ctx context.Context, membershipID uuid.UUID, status models.MembershipStatus) (*models.Membership, error)

	// Delete removes the (communityID, userID) row. Reports whether a row
	// was deleted.
	Delete(ctx context.Context, communityID, userID uuid.UUID) (bool, error)

	// ListByCommunity returns the rows viewer may see, newest first.
	ListByCommunity(ctx context.Context, viewer, communityID uuid.UUID) ([]models.Membership, error)

	// CountApproved counts approved rows viewer may see.
	CountApproved(ctx context.Context, viewer, communityID uuid.UUID) (int, error)
}

// MapRepository stores per-community maps.
type MapRepository interface {
	// Create inserts m. ErrDuplicate if the community already has a map
	// with that name.
	Create(ctx context.Context, m *models.Map) (*models.Map, error)

	GetByName(ctx context.Context, communityID uuid.UUID, name string) (*models.Map, error)

	// ListByCommunity returns maps oldest first.
	ListByCommunity(ctx context.Context, communityID uuid.UUID) ([]models.Map, error)
}

// UserRepository stores the rows that back identities.
type UserRepository interface {
	// Create inserts a registered user. ErrDuplicate if the email is taken.
	Create(ctx context.Context, email, displayName, passwordHash string) (*models.User, error)

	// CreateEphemeral inserts a user with no credentials.
	CreateEphemeral(ctx context.Context) (*models.User, error)

	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Store bundles the repositories of one backend.
type Store struct {
	Communities CommunityRepository
	Memberships MembershipRepository
	Maps        MapRepository
	Users       UserRepository
}
