// Package txchain lets independent repositories share one database transaction
// without exposing pgx.Tx to their callers.
//
// A repository takes part by providing two types: an unbound form built on a
// Pool, which implements Tx, and a bound form that embeds Handle. Begin opens a
// transaction and hands the bound form to a unit of work. Chain lends the same
// transaction to another repository's bound form and takes it back afterwards.
// The transaction commits or rolls back once, when the outermost Begin returns.
//
//	err := txchain.BeginFunc(ctx, events, func(ctx context.Context, ev *event_repo.TxRepository) (*event_repo.TxRepository, error) {
//	    ev, err := txchain.ChainFunc(ctx, ev, users, func(ctx context.Context, u *user_repo.TxRepository) (*user_repo.TxRepository, error) {
//	        _, err := u.Create(ctx, user)
//	        return u, err
//	    })
//	    if err != nil {
//	        return nil, err
//	    }
//	    _, err = ev.Create(ctx, event)
//	    return ev, err
//	})
package txchain

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Executor runs data operations. Both *pgxpool.Pool and pgx.Tx satisfy it.
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Pool is the shared resource transactions are opened on.
// pgx.Tx has no BeginTx, so a transaction never passes for a Pool.
type Pool interface {
	Executor
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Bound is implemented by repositories that embed Handle.
type Bound interface {
	handle() *Handle
}

// Binder describes what binding means for a repository type: it produces a
// fresh bound value with no transaction attached.
type Binder[B Bound] interface {
	TxRepository() B
}

// Tx is the transactional capability of an unbound repository.
type Tx[B Bound] interface {
	Binder[B]

	// Pool returns the resource Begin opens transactions on.
	Pool() Pool
}

// UnitOfWork is caller-supplied work run against a bound repository. It must
// return the repository it was given (or the one a nested Chain handed back).
type UnitOfWork[B Bound, T any] func(ctx context.Context, repo B) (B, T, error)
