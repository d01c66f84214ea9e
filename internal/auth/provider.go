package auth

import (
	"context"
	"fmt"

	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/identity"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// EphemeralProvider mints throwaway identities backed by a user row with
// no credentials.
type EphemeralProvider struct {
	users repository.UserRepository
}

func NewEphemeralProvider(users repository.UserRepository) *EphemeralProvider {
	return &EphemeralProvider{users: users}
}

func (p *EphemeralProvider) MintEphemeral(ctx context.Context) (identity.Identity, error) {
	u, err := p.users.CreateEphemeral(ctx)
	if err != nil {
		return identity.Anonymous(), fmt.Errorf("mint ephemeral identity: %w", err)
	}
	return identity.Identity{ID: u.ID, Ephemeral: true}, nil
}

// HashPassword returns the bcrypt hash of password at the default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash. The comparison is
// constant-time.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
