package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"txchain/internal/core/apperror"
)

// PostgreSQL error codes translated into domain errors.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// MapError translates constraint violations into apperror values. Other
// server errors become CodeDatabase. Client-side errors (detached handle,
// closed connection, cancelled ctx) are wrapped with the operation and table.
func MapError(err error, table, op string) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return apperror.NewDuplicate(table, pgErr.ConstraintName, pgErr.Detail).WithCause(err)
		case pgForeignKeyViolation:
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, fmt.Sprintf("%s references a missing row", table)).
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case pgCheckViolation:
			return apperror.NewValidation(fmt.Sprintf("%s violates %s", table, pgErr.ConstraintName)).
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case pgSerializationFailure, pgDeadlockDetected:
			return apperror.NewConcurrentModification(table, nil).WithCause(err)
		}
		return apperror.NewDatabase(op+" "+table, err).
			WithDetail("sqlstate", pgErr.Code)
	}

	return fmt.Errorf("%s %s: %w", op, table, err)
}

// IsRetryable reports whether err is a conflict that a fresh transaction may
// not hit again: an optimistic lock miss, a serialization failure or a deadlock.
func IsRetryable(err error) bool {
	if apperror.IsConcurrentModification(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}
