package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// isForeignKeyViolation reports whether err is a Postgres foreign-key
// constraint violation (SQLSTATE 23503), used to translate restrict-on-delete
// invariant violations into docboxerr.Conflict.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
