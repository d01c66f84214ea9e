package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/repository"
)

// NewStore wires every postgres repository onto one pool. The pool is
// goroutine-safe and shared.
func NewStore(pool *pgxpool.Pool) *repository.Store {
	return &repository.Store{
		Communities: NewCommunityStore(pool),
		Memberships: NewMembershipStore(pool),
		Maps:        NewMapStore(pool),
		Users:       NewUserStore(pool),
	}
}
