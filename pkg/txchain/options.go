package txchain

import (
	"time"

	"github.com/jackc/pgx/v5"
)

// TxOptions configures the transaction opened by Begin.
type TxOptions struct {
	// IsolationLevel: pgx.Serializable, pgx.RepeatableRead, pgx.ReadCommitted
	IsolationLevel pgx.TxIsoLevel

	// AccessMode: pgx.ReadWrite, pgx.ReadOnly
	AccessMode pgx.TxAccessMode

	// StatementTimeout protects against long-running queries (0 disables)
	StatementTimeout time.Duration
}

// DefaultTxOptions returns production-safe defaults.
func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel:   pgx.ReadCommitted,
		AccessMode:       pgx.ReadWrite,
		StatementTimeout: 30 * time.Second,
	}
}

// SerializableTxOptions for critical operations requiring serializable isolation.
func SerializableTxOptions() TxOptions {
	opts := DefaultTxOptions()
	opts.IsolationLevel = pgx.Serializable
	return opts
}

// ReadOnlyTxOptions for units of work that only query.
func ReadOnlyTxOptions() TxOptions {
	opts := DefaultTxOptions()
	opts.AccessMode = pgx.ReadOnly
	return opts
}

func (o TxOptions) pgxOptions() pgx.TxOptions {
	return pgx.TxOptions{
		IsoLevel:   o.IsolationLevel,
		AccessMode: o.AccessMode,
	}
}

// ChainOptions configures a single Chain call.
type ChainOptions struct {
	// Savepoint runs the chained unit of work inside a savepoint. A failure
	// then rolls back only the savepoint and the caller keeps the transaction.
	Savepoint bool
}
