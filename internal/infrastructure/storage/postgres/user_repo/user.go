// Package user_repo provides the PostgreSQL users repository.
package user_repo

import (
	"context"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"txchain/internal/core/apperror"
	"txchain/internal/core/id"
	"txchain/internal/domain/users"
	"txchain/internal/infrastructure/storage/postgres"
	"txchain/pkg/txchain"
)

const tableName = "users"

var selectCols = postgres.Columns[users.User]()

var _ txchain.Tx[*TxRepository] = (*Repository)(nil)

// Repository runs user queries on the shared pool.
type Repository struct {
	pool txchain.Pool
	queries
}

// New creates a users repository on pool.
func New(pool txchain.Pool) *Repository {
	return &Repository{pool: pool, queries: queries{src: txchain.Shared(pool)}}
}

// Pool implements txchain.Tx.
func (r *Repository) Pool() txchain.Pool { return r.pool }

// TxRepository implements txchain.Binder.
func (r *Repository) TxRepository() *TxRepository {
	b := &TxRepository{}
	b.queries = queries{src: &b.Handle}
	return b
}

// TxRepository runs the same queries inside a transaction.
type TxRepository struct {
	txchain.Handle
	queries
}

type queries struct {
	src txchain.Source
}

// Create inserts u and returns the stored row.
func (q queries) Create(ctx context.Context, u *users.User) (*users.User, error) {
	if err := u.Validate(ctx); err != nil {
		return nil, err
	}

	stmt := postgres.Builder().
		Insert(tableName).
		Columns(selectCols...).
		Values(postgres.RowValues(u)...).
		Suffix("RETURNING " + strings.Join(selectCols, ", "))

	created, err := postgres.Get[users.User](ctx, q.src, stmt)
	if err != nil {
		return nil, postgres.MapError(err, tableName, "insert")
	}
	return &created, nil
}

// GetByID retrieves a user by id.
func (q queries) GetByID(ctx context.Context, userID id.ID) (*users.User, error) {
	stmt := postgres.Builder().
		Select(selectCols...).
		From(tableName).
		Where(squirrel.Eq{"id": userID}).
		Limit(1)

	u, err := postgres.Get[users.User](ctx, q.src, stmt)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("user", userID.String())
		}
		return nil, postgres.MapError(err, tableName, "get")
	}
	return &u, nil
}

// List returns up to limit users ordered by name, then id.
func (q queries) List(ctx context.Context, limit uint64) ([]users.User, error) {
	stmt := postgres.Builder().
		Select(selectCols...).
		From(tableName).
		OrderBy("name", "id").
		Limit(limit)

	list, err := postgres.Select[users.User](ctx, q.src, stmt)
	if err != nil {
		return nil, postgres.MapError(err, tableName, "list")
	}
	return list, nil
}
