package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/repository"
)

// SQLSTATE codes we translate into repository sentinels.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// translate maps constraint violations onto repository sentinels and leaves
// every other error untouched.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case uniqueViolation:
		return repository.ErrDuplicate
	case foreignKeyViolation:
		return repository.ErrNoParent
	}
	return err
}
