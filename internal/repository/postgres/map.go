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

type MapStore struct {
	pool *pgxpool.Pool
}

func NewMapStore(pool *pgxpool.Pool) *MapStore {
	return &MapStore{pool: pool}
}

func (s *MapStore) Create(ctx context.Context, m *models.Map) (*models.Map, error) {
	query := `
		INSERT INTO maps (community_id, name, created_by, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, community_id, name, created_by, created_at`

	var out models.Map
	err := s.pool.QueryRow(ctx, query, m.CommunityID, m.Name, m.CreatedBy).Scan(
		&out.ID,
		&out.CommunityID,
		&out.Name,
		&out.CreatedBy,
		&out.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert map: %w", translate(err))
	}
	return &out, nil
}

func (s *MapStore) GetByName(ctx context.Context, communityID uuid.UUID, name string) (*models.Map, error) {
	query := `
		SELECT id, community_id, name, created_by, created_at
		FROM maps
		WHERE community_id = $1 AND name = $2`

	var m models.Map
	err := s.pool.QueryRow(ctx, query, communityID, name).Scan(
		&m.ID,
		&m.CommunityID,
		&m.Name,
		&m.CreatedBy,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get map: %w", err)
	}
	return &m, nil
}

func (s *MapStore) ListByCommunity(ctx context.Context, communityID uuid.UUID) ([]models.Map, error) {
	query := `
		SELECT id, community_id, name, created_by, created_at
		FROM maps
		WHERE community_id = $1
		ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, communityID)
	if err != nil {
		return nil, fmt.Errorf("list maps: %w", err)
	}
	defer rows.Close()

	maps := make([]models.Map, 0)
	for rows.Next() {
		var m models.Map
		if err := rows.Scan(&m.ID, &m.CommunityID, &m.Name, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan map: %w", err)
		}
		maps = append(maps, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate maps: %w", err)
	}
	return maps, nil
}
