package txchain

import (
	"context"
	"reflect"

	"github.com/jackc/pgx/v5"
)

// Handle holds the transaction of a bound repository. Embed it in the bound
// form of a repository; only Begin and Chain attach or detach the transaction.
//
// A Handle must not be copied after first use: the copy would hold the same
// transaction. go vet reports copies.
type Handle struct {
	noCopy noCopy
	tx     pgx.Tx
}

// noCopy trips the go vet copylocks check.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

func (h *Handle) handle() *Handle { return h }

// Attached reports whether the handle currently holds a transaction.
func (h *Handle) Attached() bool {
	return h.tx != nil
}

func (h *Handle) executor() (Executor, error) {
	if h.tx == nil {
		return nil, ErrDetached
	}
	return h.tx, nil
}

func (h *Handle) attach(tx pgx.Tx) {
	h.tx = tx
}

func (h *Handle) detach() pgx.Tx {
	tx := h.tx
	h.tx = nil
	return tx
}

// Source is whatever resource a repository currently runs against: the shared
// pool (see Shared) or a transaction held by a Handle.
type Source interface {
	executor() (Executor, error)
}

type sharedSource struct {
	pool Pool
}

// Shared returns a Source that runs operations directly on pool.
func Shared(pool Pool) Source {
	return sharedSource{pool: pool}
}

func (s sharedSource) executor() (Executor, error) {
	if s.pool == nil {
		return nil, ErrNoPool
	}
	return s.pool, nil
}

// Execute runs op once against the resource src currently holds.
// Errors from op are returned unchanged.
func Execute[T any](ctx context.Context, src Source, op func(ctx context.Context, exec Executor) (T, error)) (T, error) {
	exec, err := src.executor()
	if err != nil {
		var zero T
		return zero, err
	}
	return op(ctx, exec)
}

// handleOf returns the Handle of b, or nil when b is a nil pointer.
func handleOf(b Bound) *Handle {
	if b == nil {
		return nil
	}
	if v := reflect.ValueOf(b); v.Kind() == reflect.Pointer && v.IsNil() {
		return nil
	}
	return b.handle()
}
