package service

import (
	"context"

	appctx "txchain/internal/core/context"
	"txchain/internal/core/id"
	"txchain/internal/domain/accounts"
	"txchain/internal/domain/events"
	"txchain/internal/domain/users"
	"txchain/internal/infrastructure/storage/postgres/account_repo"
	"txchain/internal/infrastructure/storage/postgres/user_repo"
	"txchain/pkg/txchain"
)

// Statement is a consistent snapshot of a user and their accounts.
type Statement struct {
	User     *users.User
	Accounts []accounts.Account
}

// OpenAccount opens an additional account for an existing user.
func (l *Ledger) OpenAccount(ctx context.Context, userID id.ID, currency string) (*accounts.Account, error) {
	ctx = appctx.WithOperation(ctx, "open_account")

	return txchain.BeginWithOptions(ctx, l.users, l.txOpts, func(ctx context.Context, tx *user_repo.TxRepository) (*user_repo.TxRepository, *accounts.Account, error) {
		u, err := tx.GetByID(ctx, userID)
		if err != nil {
			return tx, nil, err
		}
		return txchain.Chain(ctx, tx, l.accounts, func(ctx context.Context, atx *account_repo.TxRepository) (*account_repo.TxRepository, *accounts.Account, error) {
			a, err := atx.Create(ctx, accounts.NewAccount(u.ID, currency))
			return atx, a, err
		})
	})
}

// Statement reads a user and their accounts in one read-only transaction.
func (l *Ledger) Statement(ctx context.Context, userID id.ID) (*Statement, error) {
	ctx = appctx.WithOperation(ctx, "statement")

	return txchain.BeginWithOptions(ctx, l.users, l.readOnly(), func(ctx context.Context, tx *user_repo.TxRepository) (*user_repo.TxRepository, *Statement, error) {
		u, err := tx.GetByID(ctx, userID)
		if err != nil {
			return tx, nil, err
		}
		tx, list, err := txchain.Chain(ctx, tx, l.accounts, func(ctx context.Context, atx *account_repo.TxRepository) (*account_repo.TxRepository, []accounts.Account, error) {
			list, err := atx.ListByUser(ctx, u.ID)
			return atx, list, err
		})
		if err != nil {
			return tx, nil, err
		}
		return tx, &Statement{User: u, Accounts: list}, nil
	})
}

// Events lists recorded events, optionally filtered by name.
func (l *Ledger) Events(ctx context.Context, name string, limit uint64) ([]events.Event, error) {
	if name == "" {
		return l.events.List(ctx, limit)
	}
	return l.events.ListByName(ctx, name, limit)
}
