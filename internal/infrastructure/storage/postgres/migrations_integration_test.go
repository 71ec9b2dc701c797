//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func createTestDatabase(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("test-db"),
		tcpostgres.WithUsername("user"),
		tcpostgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pgContainer.Terminate(terminateCtx); err != nil {
			t.Logf("Warning: failed to terminate container: %s", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestApplyMigrations(t *testing.T) {
	ctx := context.Background()
	pool := createTestDatabase(ctx, t)

	t.Run("Should create every table", func(t *testing.T) {
		require.NoError(t, ApplyMigrations(ctx, pool))

		for _, table := range []string{"goose_db_version", "users", "events", "accounts"} {
			var exists bool
			err := pool.QueryRow(ctx,
				"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)",
				table).Scan(&exists)
			require.NoError(t, err)
			assert.True(t, exists, "table %s should exist after migrations", table)
		}
	})

	t.Run("Should be idempotent", func(t *testing.T) {
		require.NoError(t, ApplyMigrations(ctx, pool))
	})

	t.Run("Should defer the account owner check", func(t *testing.T) {
		var deferred bool
		err := pool.QueryRow(ctx,
			`SELECT condeferred FROM pg_constraint WHERE conrelid = 'accounts'::regclass AND contype = 'f'`).
			Scan(&deferred)
		require.NoError(t, err)
		assert.True(t, deferred)
	})
}
