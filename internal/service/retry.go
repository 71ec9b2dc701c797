package service

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"txchain/internal/infrastructure/storage/postgres"
	"txchain/pkg/logger"
)

const (
	defaultConflictRetries = 3
	conflictBackoffBase    = 10 * time.Millisecond
)

// retryConflicts reruns op, each time in a new transaction, while it fails
// with a retryable conflict. The last error is returned unchanged.
func (l *Ledger) retryConflicts(ctx context.Context, op func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(l.conflictRetries, retry.NewFibonacci(conflictBackoffBase))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := op(ctx)
		if postgres.IsRetryable(err) {
			logger.Debug(ctx, "transaction conflict, retrying", "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}
