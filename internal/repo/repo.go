// Package repo contains the PostgreSQL data access layer. All queries run
// through pgx and return plain structs; callers translate ErrNotFound and
// ErrDuplicate into their own error vocabulary.
package repo

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
