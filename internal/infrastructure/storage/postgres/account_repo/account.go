// Package account_repo provides the PostgreSQL accounts repository.
package account_repo

import (
	"context"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"txchain/internal/core/apperror"
	"txchain/internal/core/id"
	"txchain/internal/domain/accounts"
	"txchain/internal/infrastructure/storage/postgres"
	"txchain/pkg/txchain"
)

const tableName = "accounts"

var selectCols = postgres.Columns[accounts.Account]()

var _ txchain.Tx[*TxRepository] = (*Repository)(nil)

// Repository runs account queries on the shared pool.
type Repository struct {
	pool txchain.Pool
	queries
}

// New creates an accounts repository on pool.
func New(pool txchain.Pool) *Repository {
	return &Repository{pool: pool, queries: queries{src: txchain.Shared(pool)}}
}

func (r *Repository) Pool() txchain.Pool { return r.pool }

func (r *Repository) TxRepository() *TxRepository {
	b := &TxRepository{}
	b.queries = queries{src: &b.Handle}
	return b
}

// TxRepository runs account queries inside a transaction. Row locks taken
// with GetForUpdate are held until the enclosing Begin finishes.
type TxRepository struct {
	txchain.Handle
	queries
}

// GetForUpdate retrieves an account and locks its row.
func (r *TxRepository) GetForUpdate(ctx context.Context, accountID id.ID) (*accounts.Account, error) {
	return r.get(ctx, accountID, true)
}

type queries struct {
	src txchain.Source
}

// Create inserts a new account.
func (q queries) Create(ctx context.Context, a *accounts.Account) (*accounts.Account, error) {
	if err := a.Validate(ctx); err != nil {
		return nil, err
	}

	stmt := postgres.Builder().
		Insert(tableName).
		Columns(selectCols...).
		Values(postgres.RowValues(a)...).
		Suffix("RETURNING " + strings.Join(selectCols, ", "))

	created, err := postgres.Get[accounts.Account](ctx, q.src, stmt)
	if err != nil {
		return nil, postgres.MapError(err, tableName, "insert")
	}
	return &created, nil
}

// GetByID retrieves an account without locking it.
func (q queries) GetByID(ctx context.Context, accountID id.ID) (*accounts.Account, error) {
	return q.get(ctx, accountID, false)
}

func (q queries) get(ctx context.Context, accountID id.ID, lock bool) (*accounts.Account, error) {
	stmt := postgres.Builder().
		Select(selectCols...).
		From(tableName).
		Where(squirrel.Eq{"id": accountID})
	if lock {
		stmt = stmt.Suffix("FOR UPDATE")
	}

	a, err := postgres.Get[accounts.Account](ctx, q.src, stmt)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("account", accountID.String())
		}
		return nil, postgres.MapError(err, tableName, "get")
	}
	return &a, nil
}

// ListByUser returns the accounts of a user ordered by currency.
func (q queries) ListByUser(ctx context.Context, userID id.ID) ([]accounts.Account, error) {
	stmt := postgres.Builder().
		Select(selectCols...).
		From(tableName).
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("currency")

	list, err := postgres.Select[accounts.Account](ctx, q.src, stmt)
	if err != nil {
		return nil, postgres.MapError(err, tableName, "list")
	}
	return list, nil
}

// UpdateBalance stores a.Balance with optimistic locking on a.Version.
// On success a.Version is advanced to the stored value.
func (q queries) UpdateBalance(ctx context.Context, a *accounts.Account) error {
	if err := a.Validate(ctx); err != nil {
		return err
	}

	stmt := postgres.Builder().
		Update(tableName).
		Set("balance", a.Balance).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": a.ID}).
		Where(squirrel.Eq{"version": a.Version}) // optimistic lock: expect current version

	tag, err := postgres.Exec(ctx, q.src, stmt)
	if err != nil {
		return postgres.MapError(err, tableName, "update")
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(tableName, a.ID)
	}

	a.Version++
	return nil
}
