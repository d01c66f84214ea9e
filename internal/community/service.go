// Package community implements the membership and lifecycle rules of
// shared communities: who may see, join, approve and dissolve one, and how
// its default resources are provisioned and repaired.
//
// Every operation is a single-shot call against the row store. Concurrency
// is left to store constraints: the (community_id, user_id) uniqueness
// constraint decides double-join races, status updates are last-write-wins,
// and dissolve races freely with joins.
package community

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/cache"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/identity"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/models"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/repository"
	"go.uber.org/zap"
)

// OwnerLeavePolicy decides what Leave does when the caller owns the
// community.
type OwnerLeavePolicy string

const (
	// OwnerLeaveAllow deletes the owner's membership row and leaves
	// Community.OwnerID untouched, so the community keeps an owner with no
	// row.
	OwnerLeaveAllow OwnerLeavePolicy = "allow"
	// OwnerLeaveDeny refuses with ErrOwnerCannotLeave.
	OwnerLeaveDeny OwnerLeavePolicy = "deny"
)

const (
	DefaultListPageSize = 50
	DefaultListTimeout  = 5 * time.Second
)

type Options struct {
	// ListPageSize caps ListCommunities.
	ListPageSize int
	// ListTimeout bounds ListCommunities; on expiry it returns an empty list.
	ListTimeout time.Duration
	OwnerLeave  OwnerLeavePolicy
}

func (o Options) withDefaults() Options {
	if o.ListPageSize <= 0 {
		o.ListPageSize = DefaultListPageSize
	}
	if o.ListTimeout <= 0 {
		o.ListTimeout = DefaultListTimeout
	}
	if o.OwnerLeave == "" {
		o.OwnerLeave = OwnerLeaveAllow
	}
	return o
}

// Service is the community core. It is safe for concurrent use.
type Service struct {
	communities repository.CommunityRepository
	memberships repository.MembershipRepository
	maps        repository.MapRepository
	identities  identity.Provider
	views       cache.MembershipCache
	clock       clock.Clock
	logger      *zap.Logger
	opts        Options
}

func NewService(
	store *repository.Store,
	identities identity.Provider,
	views cache.MembershipCache,
	clk clock.Clock,
	logger *zap.Logger,
	opts Options,
) *Service {
	return &Service{
		communities: store.Communities,
		memberships: store.Memberships,
		maps:        store.Maps,
		identities:  identities,
		views:       views,
		clock:       clk,
		logger:      logger,
		opts:        opts.withDefaults(),
	}
}

// community loads a community or fails with ErrCommunityNotFound.
func (s *Service) community(ctx context.Context, id uuid.UUID) (*models.Community, error) {
	c, err := s.communities.GetByID(ctx, id)
	if err != nil {
		return nil, backend("load community", err)
	}
	if c == nil {
		return nil, ErrCommunityNotFound
	}
	return c, nil
}

// viewOf returns the caller's standing in a community, through the cache.
// Anonymous callers are never cached.
func (s *Service) viewOf(ctx context.Context, actor identity.Identity, communityID uuid.UUID) (cache.View, error) {
	// The ticket is taken before the store read, so a view loaded before a
	// concurrent change is never written back over its invalidation.
	var (
		ticket    cache.Ticket
		cacheable bool
	)
	if !actor.IsAnonymous() {
		view, t, ok, err := s.views.Get(ctx, communityID, actor.ID)
		ticket, cacheable = t, err == nil
		if err != nil {
			s.logger.Warn("membership cache read failed",
				zap.Stringer("community_id", communityID),
				zap.Error(err),
			)
		} else if ok {
			return view, nil
		}
	}

	c, err := s.community(ctx, communityID)
	if err != nil {
		return cache.View{}, err
	}
	view := cache.View{IsOwner: actor.Is(c.OwnerID)}
	if actor.IsAnonymous() {
		return view, nil
	}

	m, err := s.memberships.Get(ctx, actor.ID, communityID, actor.ID)
	if err != nil {
		return cache.View{}, backend("load membership", err)
	}
	view.Membership = m

	if !cacheable {
		return view, nil
	}
	if err := s.views.Set(ctx, communityID, actor.ID, ticket, view); err != nil {
		s.logger.Warn("membership cache write failed",
			zap.Stringer("community_id", communityID),
			zap.Error(err),
		)
	}
	return view, nil
}

// forget drops the cached view of one subject.
func (s *Service) forget(ctx context.Context, communityID, subjectID uuid.UUID) {
	if err := s.views.Invalidate(ctx, communityID, subjectID); err != nil {
		s.logger.Warn("membership cache invalidation failed",
			zap.Stringer("community_id", communityID),
			zap.Stringer("user_id", subjectID),
			zap.Error(err),
		)
	}
}

func (s *Service) forgetCommunity(ctx context.Context, communityID uuid.UUID) {
	if err := s.views.InvalidateCommunity(ctx, communityID); err != nil {
		s.logger.Warn("community cache invalidation failed",
			zap.Stringer("community_id", communityID),
			zap.Error(err),
		)
	}
}

// isDuplicate and isOrphan classify repository constraint failures.
func isDuplicate(err error) bool { return errors.Is(err, repository.ErrDuplicate) }
func isOrphan(err error) bool    { return errors.Is(err, repository.ErrNoParent) }
