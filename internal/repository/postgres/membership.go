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

type MembershipStore struct {
	pool *pgxpool.Pool
}

func NewMembershipStore(pool *pgxpool.Pool) *MembershipStore {
	return &MembershipStore{pool: pool}
}

const membershipColumns = `m.id, m.community_id, m.user_id, m.status, m.role, m.nickname, m.created_at, m.updated_at`

// visibleTo is the row-visibility policy for memberships, with the viewer
// bound to $1. It expects the membership aliased as m and its community
// as c.
const visibleTo = `(m.user_id = $1 OR c.owner_id = $1 OR c.is_public)`

func scanMembership(row pgx.Row, extra ...any) (*models.Membership, error) {
	var m models.Membership
	dest := []any{
		&m.ID,
		&m.CommunityID,
		&m.UserID,
		&m.Status,
		&m.Role,
		&m.Nickname,
		&m.CreatedAt,
		&m.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &m, nil
}

// Create does not use ON CONFLICT: the (community_id, user_id) constraint
// is how concurrent joins are told apart, so the losing insert must fail.
func (s *MembershipStore) Create(ctx context.Context, m *models.Membership) (*models.Membership, error) {
	query := `
		INSERT INTO memberships AS m (community_id, user_id, status, role, nickname, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING ` + membershipColumns

	created, err := scanMembership(s.pool.QueryRow(ctx, query,
		m.CommunityID, m.UserID, m.Status, m.Role, m.Nickname))
	if err != nil {
		return nil, fmt.Errorf("insert membership: %w", translate(err))
	}
	return created, nil
}

func (s *MembershipStore) Get(ctx context.Context, viewer, communityID, userID uuid.UUID) (*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships m
		JOIN communities c ON c.id = m.community_id
		WHERE m.community_id = $2 AND m.user_id = $3 AND ` + visibleTo

	m, err := scanMembership(s.pool.QueryRow(ctx, query, viewer, communityID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

func (s *MembershipStore) GetWithOwner(ctx context.Context, membershipID uuid.UUID) (*models.Membership, uuid.UUID, error) {
	query := `
		SELECT ` + membershipColumns + `, c.owner_id
		FROM memberships m
		JOIN communities c ON c.id = m.community_id
		WHERE m.id = $1`

	var ownerID uuid.UUID
	m, err := scanMembership(s.pool.QueryRow(ctx, query, membershipID), &ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, uuid.Nil, nil
		}
		return nil, uuid.Nil, fmt.Errorf("get membership with owner: %w", err)
	}
	return m, ownerID, nil
}

// UpdateStatus is last-write-wins; there is no version column.
func (s *MembershipStore) UpdateStatus(ctx context.Context, membershipID uuid.UUID, status models.MembershipStatus) (*models.Membership, error) {
	query := `
		UPDATE memberships AS m
		SET status = $2, updated_at = now()
		WHERE m.id = $1
		RETURNING ` + membershipColumns

	m, err := scanMembership(s.pool.QueryRow(ctx, query, membershipID, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update membership status: %w", err)
	}
	return m, nil
}

func (s *MembershipStore) Delete(ctx context.Context, communityID, userID uuid.UUID) (bool, error) {
	query := `
		DELETE FROM memberships
		WHERE community_id = $1 AND user_id = $2`

	tag, err := s.pool.Exec(ctx, query, communityID, userID)
	if err != nil {
		return false, fmt.Errorf("delete membership: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *MembershipStore) ListByCommunity(ctx context.Context, viewer, communityID uuid.UUID) ([]models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships m
		JOIN communities c ON c.id = m.community_id
		WHERE m.community_id = $2 AND ` + visibleTo + `
		ORDER BY m.created_at DESC`

	rows, err := s.pool.Query(ctx, query, viewer, communityID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	memberships := make([]models.Membership, 0)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		memberships = append(memberships, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}
	return memberships, nil
}

func (s *MembershipStore) CountApproved(ctx context.Context, viewer, communityID uuid.UUID) (int, error) {
	query := `
		SELECT count(*)
		FROM memberships m
		JOIN communities c ON c.id = m.community_id
		WHERE m.community_id = $2 AND m.status = 'approved' AND ` + visibleTo

	var n int
	if err := s.pool.QueryRow(ctx, query, viewer, communityID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count approved members: %w", err)
	}
	return n, nil
}
