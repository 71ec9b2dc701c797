package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"txchain/pkg/txchain"
)

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Get runs q against src and scans exactly one row into T.
// A missing row is reported as pgx.ErrNoRows (see pgxscan.NotFound).
func Get[T any](ctx context.Context, src txchain.Source, q squirrel.Sqlizer) (T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		var zero T
		return zero, fmt.Errorf("build query: %w", err)
	}
	return txchain.Execute(ctx, src, func(ctx context.Context, exec txchain.Executor) (T, error) {
		var dst T
		err := pgxscan.Get(ctx, exec, &dst, sql, args...)
		return dst, err
	})
}

// Select runs q against src and scans all rows.
func Select[T any](ctx context.Context, src txchain.Source, q squirrel.Sqlizer) ([]T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return txchain.Execute(ctx, src, func(ctx context.Context, exec txchain.Executor) ([]T, error) {
		dst := make([]T, 0)
		err := pgxscan.Select(ctx, exec, &dst, sql, args...)
		return dst, err
	})
}

// Exec runs a statement that returns no rows.
func Exec(ctx context.Context, src txchain.Source, q squirrel.Sqlizer) (pgconn.CommandTag, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return pgconn.CommandTag{}, fmt.Errorf("build statement: %w", err)
	}
	return txchain.Execute(ctx, src, func(ctx context.Context, exec txchain.Executor) (pgconn.CommandTag, error) {
		return exec.Exec(ctx, sql, args...)
	})
}
