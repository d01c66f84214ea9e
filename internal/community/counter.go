package community

import (
	"context"

	"github.com/google/uuid"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/identity"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/models"
)

// ApproximateCount is the display policy for member counts: a community
// with an owner never shows zero members, because the owner always counts
// even when their row is absent or hidden from the caller.
//
// The result is exact only when visibleApproved is already exact and
// non-zero, or when there is genuinely no owner. Callers other than the
// owner of a private community get an approximation.
func ApproximateCount(visibleApproved int, ownerID uuid.UUID) int {
	if visibleApproved == 0 && ownerID != uuid.Nil {
		return 1
	}
	return visibleApproved
}

// GetMemberCount counts approved members as far as actor can see them.
//
// The owner of any community, and anyone looking at a public one, sees
// every row and gets the authoritative count. Anyone else looking at a
// private community sees at most their own row, so the visible count is 0
// or 1. Either way the result goes through ApproximateCount.
func (s *Service) GetMemberCount(ctx context.Context, actor identity.Identity, communityID uuid.UUID) (int, error) {
	c, err := s.community(ctx, communityID)
	if err != nil {
		return 0, err
	}

	var visible int
	if actor.Is(c.OwnerID) || c.IsPublic {
		visible, err = s.memberships.CountApproved(ctx, actor.ID, c.ID)
		if err != nil {
			return 0, backend("count members", err)
		}
	} else if !actor.IsAnonymous() {
		own, err := s.memberships.Get(ctx, actor.ID, c.ID, actor.ID)
		if err != nil {
			return 0, backend("load membership", err)
		}
		if own != nil && own.Status == models.StatusApproved {
			visible = 1
		}
	}

	return ApproximateCount(visible, c.OwnerID), nil
}
