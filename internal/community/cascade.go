package community

import (
	"context"

	"github.com/google/uuid"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/identity"
	"go.uber.org/zap"
)

// Dissolve deletes a community. Only the stored owner may do it. The
// store removes memberships and maps by cascade; nothing here compensates
// if that is interrupted.
func (s *Service) Dissolve(ctx context.Context, actor identity.Identity, communityID uuid.UUID) error {
	if actor.IsAnonymous() {
		return ErrAuthRequired
	}
	c, err := s.community(ctx, communityID)
	if err != nil {
		return err
	}
	if !actor.Is(c.OwnerID) {
		return ErrNotOwner
	}

	deleted, err := s.communities.Delete(ctx, c.ID)
	if err != nil {
		return backend("delete community", err)
	}
	s.forgetCommunity(ctx, c.ID)
	if !deleted {
		return ErrCommunityNotFound
	}

	s.logger.Info("community dissolved",
		zap.Stringer("community_id", c.ID),
		zap.String("slug", c.Slug),
		zap.Stringer("owner_id", c.OwnerID),
	)
	return nil
}

// IsOwner reports whether actor owns the community.
func (s *Service) IsOwner(ctx context.Context, actor identity.Identity, communityID uuid.UUID) (bool, error) {
	if actor.IsAnonymous() {
		return false, nil
	}
	view, err := s.viewOf(ctx, actor, communityID)
	if err != nil {
		return false, err
	}
	return view.IsOwner, nil
}
