package txchain

import (
	"errors"
	"fmt"
)

var (
	ErrBegin    = errors.New("txchain: begin transaction")
	ErrCommit   = errors.New("txchain: commit transaction")
	ErrRollback = errors.New("txchain: rollback transaction")

	// ErrDetached is returned when a bound repository is used while its
	// transaction is lent to a chained repository, or after Begin returned.
	ErrDetached = errors.New("txchain: repository holds no transaction")

	// ErrHandleLost is returned when a unit of work does not hand back the
	// repository holding the transaction.
	ErrHandleLost = errors.New("txchain: unit of work did not return the transaction")

	ErrNoPool = errors.New("txchain: repository has no pool")
)

// RollbackError reports a failed rollback. Cause is the error that triggered
// the rollback and is never replaced by it.
type RollbackError struct {
	Cause    error
	Rollback error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("%v (rollback failed: %v)", e.Cause, e.Rollback)
}

// Unwrap lets errors.Is match the cause, ErrRollback and the rollback error.
func (e *RollbackError) Unwrap() []error {
	return []error{e.Cause, ErrRollback, e.Rollback}
}
