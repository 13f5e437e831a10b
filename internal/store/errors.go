package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors callers branch on with errors.Is.
var (
	ErrDuplicateKey = errors.New("duplicate key")
	ErrNotFound     = errors.New("not found")
)

// Error is a storage fault carrying the failing operation and its cause.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Wrap classifies a driver error into the domain taxonomy. Unique
// violations become ErrDuplicateKey, foreign key violations become
// ErrNotFound (the referenced parent is gone), sql.ErrNoRows becomes
// ErrNotFound, and anything else stays a generic store fault.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &Error{Op: op, Err: ErrNotFound}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Op: op, Err: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return &Error{Op: op, Err: fmt.Errorf("%w: %s", ErrDuplicateKey, pgErr.ConstraintName)}
		case pgForeignKeyViolation:
			return &Error{Op: op, Err: fmt.Errorf("%w: %s", ErrNotFound, pgErr.ConstraintName)}
		}
	}
	return &Error{Op: op, Err: err}
}
