package shortener

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sundayezeilo/shortlinker/internal/errx"
)

// Postgres error class 22 is "data exception": the row exists but cannot be
// represented, which we treat like a malformed table file.
func isDataException(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return strings.HasPrefix(pgErr.Code, "22")
}

// scanError marks a row the server returned that does not fit the record
// type, such as a NULL in a text column. pgx reports these as plain errors.
type scanError struct {
	err error
}

func (e *scanError) Error() string { return fmt.Sprintf("scan row: %v", e.err) }
func (e *scanError) Unwrap() error { return e.err }

func wrapScan(err error) error {
	if err == nil {
		return nil
	}
	return &scanError{err: err}
}

func mapPostgresError(op string, err error) error {
	var scanErr *scanError
	if errors.As(err, &scanErr) || isDataException(err) {
		return errx.E(op, errx.Corrupt, err)
	}
	return errx.E(op, errx.Unavailable, err)
}
