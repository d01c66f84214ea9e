package community

import (
	"context"
	"strings"

	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/identity"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/models"
	"go.uber.org/zap"
)

// CreateInput is what a caller supplies to create a community.
type CreateInput struct {
	Name        string
	Description string
	IsPublic    bool
}

// CreateCommunity creates a community owned by actor. The owner membership
// row and the default map are best-effort: if either fails the community
// still exists and the failure is only logged. Missing default maps are
// repaired on read and by the reconciler.
func (s *Service) CreateCommunity(ctx context.Context, actor identity.Identity, in CreateInput) (*models.Community, error) {
	if actor.IsAnonymous() {
		return nil, ErrAuthRequired
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("community name required")
	}

	slug, err := s.chooseSlug(ctx, name)
	if err != nil {
		return nil, err
	}

	row := &models.Community{
		Name:     name,
		Slug:     slug,
		IsPublic: in.IsPublic,
		OwnerID:  actor.ID,
	}
	if desc := strings.TrimSpace(in.Description); desc != "" {
		row.Description = &desc
	}

	c, err := s.communities.Create(ctx, row)
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrSlugTaken
		}
		return nil, backend("create community", err)
	}

	s.logger.Info("community created",
		zap.Stringer("community_id", c.ID),
		zap.String("slug", c.Slug),
		zap.Bool("is_public", c.IsPublic),
		zap.Stringer("owner_id", c.OwnerID),
	)

	s.bootstrap(ctx, c)
	return c, nil
}

// chooseSlug derives the slug from name and falls back to a timestamp-salted
// one when the derived slug is empty or taken. It does not retry: a taken
// salted slug surfaces as ErrSlugTaken at insert.
func (s *Service) chooseSlug(ctx context.Context, name string) (string, error) {
	base := Slugify(name)
	if base != "" {
		taken, err := s.communities.SlugExists(ctx, base)
		if err != nil {
			return "", backend("check slug", err)
		}
		if !taken {
			return base, nil
		}
	}
	return SaltedSlug(base, s.clock.Now()), nil
}

// bootstrap runs the two follow-up steps of creation. Neither rolls the
// community back.
func (s *Service) bootstrap(ctx context.Context, c *models.Community) {
	_, err := s.memberships.Create(ctx, &models.Membership{
		CommunityID: c.ID,
		UserID:      c.OwnerID,
		Status:      models.StatusApproved,
		Role:        models.RoleOwner,
	})
	if err != nil {
		s.logger.Warn("owner membership not created",
			zap.Stringer("community_id", c.ID),
			zap.Error(err),
		)
	}

	if _, _, err := s.EnsureDefaultMap(ctx, c); err != nil {
		s.logger.Warn("default map not provisioned",
			zap.Stringer("community_id", c.ID),
			zap.Error(err),
		)
	}
}

type listResult struct {
	communities []models.Community
	err         error
}

// ListCommunities returns every community, public first then newest first,
// capped at the configured page size. It never filters by membership.
// Failures and timeouts are logged and yield an empty list.
func (s *Service) ListCommunities(ctx context.Context) []models.Community {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan listResult, 1)
	go func() {
		list, err := s.communities.List(ctx, s.opts.ListPageSize)
		done <- listResult{communities: list, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			s.logger.Error("list communities failed", zap.Error(r.err))
			return []models.Community{}
		}
		if r.communities == nil {
			return []models.Community{}
		}
		return r.communities
	case <-s.clock.After(s.opts.ListTimeout):
		s.logger.Warn("list communities timed out",
			zap.Duration("timeout", s.opts.ListTimeout),
		)
		return []models.Community{}
	case <-ctx.Done():
		return []models.Community{}
	}
}

// GetBySlug resolves a deep link.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*models.Community, error) {
	c, err := s.communities.GetBySlug(ctx, slug)
	if err != nil {
		return nil, backend("load community by slug", err)
	}
	if c == nil {
		return nil, ErrCommunityNotFound
	}
	return c, nil
}
