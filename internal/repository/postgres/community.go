package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/models"
)

type CommunityStore struct {
	pool *pgxpool.Pool
}

func NewCommunityStore(pool *pgxpool.Pool) *CommunityStore {
	return &CommunityStore{pool: pool}
}

const communityColumns = `id, name, slug, description, is_public, owner_id, created_at`

func scanCommunity(row pgx.Row) (*models.Community, error) {
	var c models.Community
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Slug,
		&c.Description,
		&c.IsPublic,
		&c.OwnerID,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CommunityStore) Create(ctx context.Context, c *models.Community) (*models.Community, error) {
	query := `
		INSERT INTO communities (name, slug, description, is_public, owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING ` + communityColumns

	created, err := scanCommunity(s.pool.QueryRow(ctx, query,
		c.Name, c.Slug, c.Description, c.IsPublic, c.OwnerID))
	if err != nil {
		return nil, fmt.Errorf("insert community: %w", translate(err))
	}
	return created, nil
}

func (s *CommunityStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Community, error) {
	query := `SELECT ` + communityColumns + ` FROM communities WHERE id = $1`

	c, err := scanCommunity(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get community: %w", err)
	}
	return c, nil
}

func (s *CommunityStore) GetBySlug(ctx context.Context, slug string) (*models.Community, error) {
	query := `SELECT ` + communityColumns + ` FROM communities WHERE slug = $1`

	c, err := scanCommunity(s.pool.QueryRow(ctx, query, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get community by slug: %w", err)
	}
	return c, nil
}

func (s *CommunityStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM communities WHERE slug = $1)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, slug).Scan(&exists); err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return exists, nil
}

func (s *CommunityStore) List(ctx context.Context, limit int) ([]models.Community, error) {
	query := `
		SELECT ` + communityColumns + `
		FROM communities
		ORDER BY is_public DESC, created_at DESC
		LIMIT $1`

	return s.query(ctx, "list communities", query, limit)
}

func (s *CommunityStore) ListAll(ctx context.Context) ([]models.Community, error) {
	query := `SELECT ` + communityColumns + ` FROM communities ORDER BY created_at ASC`

	return s.query(ctx, "list all communities", query)
}

func (s *CommunityStore) query(ctx context.Context, op, query string, args ...any) ([]models.Community, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	communities := make([]models.Community, 0)
	for rows.Next() {
		c, err := scanCommunity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan community: %w", err)
		}
		communities = append(communities, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate communities: %w", err)
	}
	return communities, nil
}

// Delete removes only the community row. Memberships and maps are removed
// by ON DELETE CASCADE in the same statement.
func (s *CommunityStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM communities WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete community: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
