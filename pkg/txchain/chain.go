package txchain

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"txchain/pkg/logger"
)

// Chain lends the transaction held by held to a bound form of other, runs fn
// with it and hands the transaction back to held.
//
// held holds no transaction while fn runs. On failure the transaction is not
// handed back: the error must be returned to the enclosing Begin, which rolls
// back. Chain never opens or commits a transaction itself.
func Chain[A Bound, B Bound, T any](ctx context.Context, held A, other Binder[B], fn UnitOfWork[B, T]) (A, T, error) {
	return ChainWithOptions(ctx, held, other, ChainOptions{}, fn)
}

// ChainFunc is Chain for units of work that produce no value.
func ChainFunc[A Bound, B Bound](ctx context.Context, held A, other Binder[B], fn func(ctx context.Context, repo B) (B, error)) (A, error) {
	a, _, err := Chain(ctx, held, other, func(ctx context.Context, b B) (B, struct{}, error) {
		b, err := fn(ctx, b)
		return b, struct{}{}, err
	})
	return a, err
}

// ChainWithOptions is Chain with custom options. With opts.Savepoint set, a
// failure of fn rolls back to the savepoint and held gets the transaction
// back, so the caller may continue after handling the error.
func ChainWithOptions[A Bound, B Bound, T any](ctx context.Context, held A, other Binder[B], opts ChainOptions, fn UnitOfWork[B, T]) (_ A, _ T, err error) {
	var (
		zeroA A
		zeroT T
	)

	ctx, span := tracer.Start(ctx, "txchain.chain",
		trace.WithAttributes(
			attribute.String("tx.from", fmt.Sprintf("%T", held)),
			attribute.String("tx.to", fmt.Sprintf("%T", other)),
			attribute.Bool("tx.savepoint", opts.Savepoint),
		))
	defer func() { endSpan(span, err) }()

	hh := handleOf(held)
	if hh == nil || hh.tx == nil {
		return zeroA, zeroT, ErrDetached
	}

	bound := other.TxRepository()
	bh := handleOf(bound)
	if bh == nil {
		return zeroA, zeroT, fmt.Errorf("%w: %T.TxRepository returned nil", ErrHandleLost, other)
	}

	tx := hh.detach()
	lent := tx
	if opts.Savepoint {
		sp, err := tx.Begin(ctx)
		if err != nil {
			hh.attach(tx)
			return held, zeroT, fmt.Errorf("create savepoint: %w", err)
		}
		lent = sp
	}
	bh.attach(lent)

	returned, value, err := fn(ctx, bound)

	var back pgx.Tx
	if rh := handleOf(returned); rh != nil {
		back = rh.detach()
	}
	bh.detach()

	if err == nil && back != lent {
		err = ErrHandleLost
	}

	if !opts.Savepoint {
		if err != nil {
			return zeroA, zeroT, err
		}
		hh.attach(tx)
		return held, value, nil
	}

	if err != nil {
		if rbErr := lent.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			logger.Error(ctx, "rollback to savepoint failed", "error", rbErr, "original_error", err)
			return zeroA, zeroT, &RollbackError{Cause: err, Rollback: rbErr}
		}
		logger.Debug(ctx, "rolled back to savepoint", "reason", err)
		hh.attach(tx)
		return held, zeroT, err
	}

	if err := lent.Commit(ctx); err != nil {
		return zeroA, zeroT, fmt.Errorf("release savepoint: %w", err)
	}
	hh.attach(tx)
	return held, value, nil
}
