// Package service holds the ledger orchestrations. Every operation opens one
// transaction with txchain.Begin and lends it to the other repositories with
// txchain.Chain, so users, accounts and events commit or roll back together.
package service

import (
	"time"

	"txchain/internal/infrastructure/storage/postgres/account_repo"
	"txchain/internal/infrastructure/storage/postgres/event_repo"
	"txchain/internal/infrastructure/storage/postgres/user_repo"
	"txchain/pkg/txchain"
)

// Config configures the ledger service.
type Config struct {
	Pool txchain.Pool

	// StatementTimeout overrides the per-transaction statement timeout (0 keeps the default).
	StatementTimeout time.Duration

	// ConflictRetries bounds how often Transfer and Deposit are rerun after a
	// concurrent modification (0 uses the default of 3; negative disables).
	ConflictRetries int
}

// Ledger onboards users and moves money between their accounts.
type Ledger struct {
	users    *user_repo.Repository
	accounts *account_repo.Repository
	events   *event_repo.Repository
	txOpts   txchain.TxOptions

	conflictRetries uint64
}

// NewLedger creates the ledger service and its repositories on cfg.Pool.
func NewLedger(cfg Config) *Ledger {
	opts := txchain.DefaultTxOptions()
	if cfg.StatementTimeout > 0 {
		opts.StatementTimeout = cfg.StatementTimeout
	}

	retries := uint64(defaultConflictRetries)
	switch {
	case cfg.ConflictRetries > 0:
		retries = uint64(cfg.ConflictRetries)
	case cfg.ConflictRetries < 0:
		retries = 0
	}

	return &Ledger{
		users:           user_repo.New(cfg.Pool),
		accounts:        account_repo.New(cfg.Pool),
		events:          event_repo.New(cfg.Pool),
		txOpts:          opts,
		conflictRetries: retries,
	}
}

func (l *Ledger) readOnly() txchain.TxOptions {
	opts := l.txOpts
	opts.AccessMode = txchain.ReadOnlyTxOptions().AccessMode
	return opts
}
