package txchain

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"txchain/pkg/logger"
)

var tracer = otel.Tracer("txchain")

// Begin opens a transaction on repo's pool, runs fn with the bound repository
// and commits if fn succeeds. Any failure rolls the transaction back.
func Begin[B Bound, T any](ctx context.Context, repo Tx[B], fn UnitOfWork[B, T]) (T, error) {
	return BeginWithOptions(ctx, repo, DefaultTxOptions(), fn)
}

// BeginFunc is Begin for units of work that produce no value.
func BeginFunc[B Bound](ctx context.Context, repo Tx[B], fn func(ctx context.Context, repo B) (B, error)) error {
	_, err := Begin(ctx, repo, func(ctx context.Context, b B) (B, struct{}, error) {
		b, err := fn(ctx, b)
		return b, struct{}{}, err
	})
	return err
}

// BeginWithOptions is Begin with custom transaction options.
//
// Exactly one of commit or rollback is issued per call. A commit failure is
// returned even though fn succeeded. A rollback failure is returned as
// *RollbackError and keeps fn's error as its cause. The bound repository
// handed to fn is detached before BeginWithOptions returns.
func BeginWithOptions[B Bound, T any](ctx context.Context, repo Tx[B], opts TxOptions, fn UnitOfWork[B, T]) (_ T, err error) {
	var zero T

	ctx, span := tracer.Start(ctx, "txchain.begin",
		trace.WithAttributes(
			attribute.String("tx.isolation", string(opts.IsolationLevel)),
			attribute.String("tx.access_mode", string(opts.AccessMode)),
			attribute.String("tx.repository", fmt.Sprintf("%T", repo)),
		))
	defer func() { endSpan(span, err) }()

	pool := repo.Pool()
	if pool == nil {
		return zero, ErrNoPool
	}

	bound := repo.TxRepository()
	h := handleOf(bound)
	if h == nil {
		return zero, fmt.Errorf("%w: %T.TxRepository returned nil", ErrHandleLost, repo)
	}

	tx, err := pool.BeginTx(ctx, opts.pgxOptions())
	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrBegin, err)
	}
	logger.Debug(ctx, "transaction started", "isolation", opts.IsolationLevel, "access_mode", opts.AccessMode)

	// Set statement timeout for protection against runaway queries
	if opts.StatementTimeout > 0 {
		_, err = tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", opts.StatementTimeout.Milliseconds()))
		if err != nil {
			return zero, rollback(ctx, tx, fmt.Errorf("set statement_timeout: %w", err))
		}
	}

	h.attach(tx)
	defer func() {
		if p := recover(); p != nil {
			h.detach()
			_ = rollback(ctx, tx, fmt.Errorf("panic in unit of work: %v", p))
			panic(p)
		}
	}()

	returned, result, err := fn(ctx, bound)

	var back pgx.Tx
	if rh := handleOf(returned); rh != nil {
		back = rh.detach()
	}
	h.detach()

	if err != nil {
		return zero, rollback(ctx, tx, err)
	}
	if back != tx {
		return zero, rollback(ctx, tx, ErrHandleLost)
	}

	if err := tx.Commit(ctx); err != nil {
		return zero, fmt.Errorf("%w: %w", ErrCommit, err)
	}
	logger.Debug(ctx, "transaction committed")

	return result, nil
}

// rollback rolls tx back and returns the error the caller should report.
// It runs even if ctx was already cancelled.
func rollback(ctx context.Context, tx pgx.Tx, cause error) error {
	if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
		logger.Error(ctx, "rollback failed", "error", rbErr, "original_error", cause)
		return &RollbackError{Cause: cause, Rollback: rbErr}
	}
	logger.Debug(ctx, "transaction rolled back", "reason", cause)
	return cause
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
