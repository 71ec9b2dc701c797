// Package event_repo provides the PostgreSQL events repository.
// Events are written in the transaction of the change they describe.
package event_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"txchain/internal/domain/events"
	"txchain/internal/infrastructure/storage/postgres"
	"txchain/pkg/txchain"
)

const tableName = "events"

var selectCols = postgres.Columns[events.Event]()

var _ txchain.Tx[*TxRepository] = (*Repository)(nil)

// Repository runs event queries on the shared pool.
type Repository struct {
	pool txchain.Pool
	queries
}

// New creates an events repository on pool.
func New(pool txchain.Pool) *Repository {
	return &Repository{pool: pool, queries: queries{src: txchain.Shared(pool)}}
}

func (r *Repository) Pool() txchain.Pool { return r.pool }

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

func insert(e *events.Event) squirrel.InsertBuilder {
	return postgres.Builder().
		Insert(tableName).
		Columns(selectCols...).
		Values(postgres.RowValues(e)...)
}

// Create records a single event.
func (q queries) Create(ctx context.Context, e *events.Event) error {
	if err := e.Validate(ctx); err != nil {
		return err
	}
	if _, err := postgres.Exec(ctx, q.src, insert(e)); err != nil {
		return postgres.MapError(err, tableName, "insert")
	}
	return nil
}

// CopyThreshold is the batch size from which CreateBatch switches to COPY.
const CopyThreshold = 1000

// CreateBatch records several events in one round trip. Large batches are
// loaded with COPY.
func (q queries) CreateBatch(ctx context.Context, list []*events.Event) error {
	if len(list) == 0 {
		return nil
	}
	for _, e := range list {
		if err := e.Validate(ctx); err != nil {
			return err
		}
	}

	if len(list) >= CopyThreshold {
		rows := make([][]any, len(list))
		for i, e := range list {
			rows[i] = postgres.RowValues(e)
		}
		if _, err := postgres.CopyRows(ctx, q.src, tableName, selectCols, rows); err != nil {
			return postgres.MapError(err, tableName, "copy")
		}
		return nil
	}

	stmts := make([]squirrel.Sqlizer, len(list))
	for i, e := range list {
		stmts[i] = insert(e)
	}
	if err := postgres.SendBatch(ctx, q.src, stmts); err != nil {
		return postgres.MapError(err, tableName, "batch insert")
	}
	return nil
}

// List returns up to limit events ordered by name, then id.
func (q queries) List(ctx context.Context, limit uint64) ([]events.Event, error) {
	return q.list(ctx, nil, limit)
}

// ListByName returns up to limit events with the given name.
func (q queries) ListByName(ctx context.Context, name string, limit uint64) ([]events.Event, error) {
	return q.list(ctx, squirrel.Eq{"name": name}, limit)
}

func (q queries) list(ctx context.Context, where squirrel.Sqlizer, limit uint64) ([]events.Event, error) {
	stmt := postgres.Builder().
		Select(selectCols...).
		From(tableName).
		OrderBy("name", "id").
		Limit(limit)
	if where != nil {
		stmt = stmt.Where(where)
	}

	list, err := postgres.Select[events.Event](ctx, q.src, stmt)
	if err != nil {
		return nil, postgres.MapError(err, tableName, "list")
	}
	return list, nil
}
