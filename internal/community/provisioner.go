package community

import (
	"context"

	"github.com/google/uuid"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/identity"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/models"
	"go.uber.org/zap"
)

// EnsureDefaultMap makes sure c has its sentinel map and reports whether it
// had to create it. Two provisioners racing on the same community converge
// on one row through the (community_id, name) constraint.
func (s *Service) EnsureDefaultMap(ctx context.Context, c *models.Community) (*models.Map, bool, error) {
	existing, err := s.maps.GetByName(ctx, c.ID, models.DefaultMapName)
	if err != nil {
		return nil, false, backend("load default map", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	m, err := s.maps.Create(ctx, &models.Map{
		CommunityID: c.ID,
		Name:        models.DefaultMapName,
		CreatedBy:   c.OwnerID,
	})
	switch {
	case err == nil:
		return m, true, nil
	case isDuplicate(err):
		m, err = s.maps.GetByName(ctx, c.ID, models.DefaultMapName)
		if err != nil {
			return nil, false, backend("load default map", err)
		}
		return m, false, nil
	case isOrphan(err):
		return nil, false, ErrCommunityNotFound
	}
	return nil, false, backend("create default map", err)
}

// ListMaps returns the community's maps, repairing a missing default map
// first. Private community maps are for the owner and approved members.
func (s *Service) ListMaps(ctx context.Context, actor identity.Identity, communityID uuid.UUID) ([]models.Map, error) {
	c, err := s.community(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if !c.IsPublic {
		view, err := s.viewOf(ctx, actor, c.ID)
		if err != nil {
			return nil, err
		}
		approved := view.Membership != nil && view.Membership.Status == models.StatusApproved
		if !view.IsOwner && !approved {
			return nil, ErrMembersOnly
		}
	}

	if _, created, err := s.EnsureDefaultMap(ctx, c); err != nil {
		s.logger.Warn("default map repair failed",
			zap.Stringer("community_id", c.ID),
			zap.Error(err),
		)
	} else if created {
		s.logger.Info("default map repaired on read", zap.Stringer("community_id", c.ID))
	}

	maps, err := s.maps.ListByCommunity(ctx, c.ID)
	if err != nil {
		return nil, backend("list maps", err)
	}
	return maps, nil
}
