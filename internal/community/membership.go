package community

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/identity"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/models"
	"go.uber.org/zap"
)

// Membership state machine, per (community, identity):
//
//	NONE --RequestMembership--> PENDING        (private communities)
//	NONE --JoinPublic---------> APPROVED       (public communities)
//	PENDING --SetMembershipStatus--> APPROVED | REJECTED   (owner only)
//	any --Leave--> NONE

// conflictFor explains why a second join attempt for the same pair failed.
func conflictFor(m *models.Membership) error {
	if m == nil {
		return ErrAlreadyRequested
	}
	switch m.Status {
	case models.StatusApproved:
		return ErrAlreadyMember
	case models.StatusRejected:
		return ErrMembershipRejected
	}
	return ErrAlreadyRequested
}

// insertMembership creates the caller's row. A duplicate means another
// request for the same pair won, possibly a concurrent one; the row that
// won decides the message.
func (s *Service) insertMembership(ctx context.Context, row *models.Membership) (*models.Membership, error) {
	m, err := s.memberships.Create(ctx, row)
	switch {
	case err == nil:
		s.forget(ctx, row.CommunityID, row.UserID)
		return m, nil
	case isDuplicate(err):
		existing, getErr := s.memberships.Get(ctx, row.UserID, row.CommunityID, row.UserID)
		if getErr != nil {
			s.logger.Warn("could not load conflicting membership",
				zap.Stringer("community_id", row.CommunityID),
				zap.Error(getErr),
			)
		}
		return nil, conflictFor(existing)
	case isOrphan(err):
		return nil, ErrCommunityNotFound
	}
	return nil, backend("create membership", err)
}

// existingConflict reports the conflict for a pair that already has a row.
// The owner counts as a member whether or not a row exists.
func (s *Service) existingConflict(ctx context.Context, c *models.Community, who identity.Identity) error {
	if who.Is(c.OwnerID) {
		return ErrAlreadyMember
	}
	existing, err := s.memberships.Get(ctx, who.ID, c.ID, who.ID)
	if err != nil {
		return backend("load membership", err)
	}
	if existing != nil {
		return conflictFor(existing)
	}
	return nil
}

// RequestMembership asks to join a private community. The new row is
// pending until the owner decides.
func (s *Service) RequestMembership(ctx context.Context, actor identity.Identity, communityID uuid.UUID) (*models.Membership, error) {
	if actor.IsAnonymous() {
		return nil, ErrAuthRequired
	}
	c, err := s.community(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if c.IsPublic {
		return nil, ErrCommunityIsPublic
	}
	if err := s.existingConflict(ctx, c, actor); err != nil {
		return nil, err
	}

	m, err := s.insertMembership(ctx, &models.Membership{
		CommunityID: c.ID,
		UserID:      actor.ID,
		Status:      models.StatusPending,
		Role:        models.RoleMember,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("membership requested",
		zap.Stringer("community_id", c.ID),
		zap.Stringer("user_id", actor.ID),
	)
	return m, nil
}

// JoinResult is the outcome of JoinPublic. Identity is the identity the
// membership belongs to; Minted is set when it was created for an
// anonymous caller and must be handed back to them.
type JoinResult struct {
	Membership *models.Membership
	Identity   identity.Identity
	Minted     bool
}

// JoinPublic joins a public community immediately. Anonymous callers are
// given an ephemeral identity first.
func (s *Service) JoinPublic(ctx context.Context, actor identity.Identity, communityID uuid.UUID, nickname string) (*JoinResult, error) {
	c, err := s.community(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if !c.IsPublic {
		return nil, ErrCommunityIsPrivate
	}

	res := &JoinResult{Identity: actor}
	if actor.IsAnonymous() {
		minted, err := s.identities.MintEphemeral(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAuthRequired, err)
		}
		res.Identity = minted
		res.Minted = true
		s.logger.Info("ephemeral identity minted",
			zap.Stringer("user_id", minted.ID),
			zap.Stringer("community_id", c.ID),
		)
	} else if err := s.existingConflict(ctx, c, actor); err != nil {
		return nil, err
	}

	row := &models.Membership{
		CommunityID: c.ID,
		UserID:      res.Identity.ID,
		Status:      models.StatusApproved,
		Role:        models.RoleMember,
	}
	if nick := strings.TrimSpace(nickname); nick != "" {
		row.Nickname = &nick
	}

	m, err := s.insertMembership(ctx, row)
	if err != nil {
		return nil, err
	}
	res.Membership = m

	s.logger.Info("joined public community",
		zap.Stringer("community_id", c.ID),
		zap.Stringer("user_id", res.Identity.ID),
		zap.Bool("ephemeral", res.Identity.Ephemeral),
	)
	return res, nil
}

// SetMembershipStatus approves or rejects a pending request. Ownership is
// resolved from the store, never from the caller. Setting the status a row
// already has is a no-op success. Concurrent decisions are last-write-wins.
func (s *Service) SetMembershipStatus(ctx context.Context, actor identity.Identity, membershipID uuid.UUID, status models.MembershipStatus) (*models.Membership, error) {
	if actor.IsAnonymous() {
		return nil, ErrAuthRequired
	}
	// Owners decide a request; they never put one back to pending.
	if !status.Valid() || status == models.StatusPending {
		return nil, invalid("status must be %q or %q, got %q", models.StatusApproved, models.StatusRejected, status)
	}

	m, ownerID, err := s.memberships.GetWithOwner(ctx, membershipID)
	if err != nil {
		return nil, backend("load membership", err)
	}
	if m == nil {
		return nil, ErrMembershipNotFound
	}
	if !actor.Is(ownerID) {
		return nil, ErrNotOwner
	}
	if m.Status == status {
		return m, nil
	}
	if m.Role == models.RoleOwner {
		return nil, ErrOwnerMembership
	}
	if m.Status != models.StatusPending {
		return nil, ErrAlreadyDecided
	}

	updated, err := s.memberships.UpdateStatus(ctx, membershipID, status)
	if err != nil {
		return nil, backend("update membership status", err)
	}
	if updated == nil {
		return nil, ErrMembershipNotFound
	}
	s.forget(ctx, updated.CommunityID, updated.UserID)

	s.logger.Info("membership status changed",
		zap.Stringer("membership_id", updated.ID),
		zap.Stringer("community_id", updated.CommunityID),
		zap.String("status", string(updated.Status)),
	)
	return updated, nil
}

// Leave deletes the caller's own membership row whatever its status.
//
// With OwnerLeaveAllow the owner may leave too: only their row goes and
// Community.OwnerID keeps pointing at them. OwnerLeaveDeny refuses instead.
func (s *Service) Leave(ctx context.Context, actor identity.Identity, communityID uuid.UUID) error {
	if actor.IsAnonymous() {
		return ErrAuthRequired
	}
	c, err := s.community(ctx, communityID)
	if err != nil {
		return err
	}

	if actor.Is(c.OwnerID) {
		if s.opts.OwnerLeave == OwnerLeaveDeny {
			return ErrOwnerCannotLeave
		}
		s.logger.Warn("owner leaving own community; owner_id left unchanged",
			zap.Stringer("community_id", c.ID),
			zap.Stringer("owner_id", c.OwnerID),
		)
	}

	deleted, err := s.memberships.Delete(ctx, c.ID, actor.ID)
	if err != nil {
		return backend("delete membership", err)
	}
	s.forget(ctx, c.ID, actor.ID)
	if !deleted {
		return ErrMembershipNotFound
	}

	s.logger.Info("left community",
		zap.Stringer("community_id", c.ID),
		zap.Stringer("user_id", actor.ID),
	)
	return nil
}

// ListPendingRequests returns every membership row of the community,
// newest first, for the owner to triage.
func (s *Service) ListPendingRequests(ctx context.Context, actor identity.Identity, communityID uuid.UUID) ([]models.Membership, error) {
	if actor.IsAnonymous() {
		return nil, ErrAuthRequired
	}
	c, err := s.community(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if !actor.Is(c.OwnerID) {
		return nil, ErrNotOwner
	}

	list, err := s.memberships.ListByCommunity(ctx, actor.ID, c.ID)
	if err != nil {
		return nil, backend("list memberships", err)
	}
	return list, nil
}

// GetMembership returns userID's membership as actor may see it, or the
// caller's own when userID is nil. A nil membership with a nil error means
// there is no visible row.
func (s *Service) GetMembership(ctx context.Context, actor identity.Identity, communityID uuid.UUID, userID *uuid.UUID) (*models.Membership, error) {
	if userID == nil || actor.Is(*userID) {
		view, err := s.viewOf(ctx, actor, communityID)
		if err != nil {
			return nil, err
		}
		return view.Membership, nil
	}

	c, err := s.community(ctx, communityID)
	if err != nil {
		return nil, err
	}
	m, err := s.memberships.Get(ctx, actor.ID, c.ID, *userID)
	if err != nil {
		return nil, backend("load membership", err)
	}
	return m, nil
}
