// Package main runs the ledger against PostgreSQL: it applies migrations,
// onboards two users, moves money between them and prints the event log.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	appctx "txchain/internal/core/context"
	"txchain/internal/core/types"
	"txchain/internal/infrastructure/storage/postgres"
	"txchain/internal/service"
	"txchain/pkg/logger"
)

func main() {
	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
		Fields:      map[string]any{"service": "ledger", "env": getEnv("APP_ENV", "development")},
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext())
	logger.SetDefault(log)
	ctx = logger.WithLogger(ctx, log.WithComponent("ledger"))

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	poolCfg.MaxConns = int32(getEnvInt("DB_MAX_CONNS", int(poolCfg.MaxConns)))

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		logger.Fatal(ctx, "failed to connect to database", "error", err)
	}
	defer pool.Close()

	if err := postgres.ApplyMigrations(ctx, pool.Pool); err != nil {
		logger.Fatal(ctx, "failed to apply migrations", "error", err)
	}

	ledger := service.NewLedger(service.Config{
		Pool:             pool,
		StatementTimeout: getEnvDuration("DB_STATEMENT_TIMEOUT", 30*time.Second),
	})

	if err := run(ctx, ledger); err != nil {
		logger.Error(ctx, "ledger run failed", "error", err)
		pool.LogStats(ctx)
		os.Exit(1)
	}

	pool.LogStats(ctx)
	logger.Info(ctx, "ledger run complete")
}

func run(ctx context.Context, ledger *service.Ledger) error {
	ada, err := ledger.Onboard(ctx, service.OnboardInput{
		Name:     "Ada Lovelace",
		Currency: "EUR",
		Deposit:  types.MustMoney("100"),
	})
	if err != nil {
		return fmt.Errorf("onboard ada: %w", err)
	}

	grace, err := ledger.Onboard(ctx, service.OnboardInput{Name: "Grace Hopper", Currency: "EUR"})
	if err != nil {
		return fmt.Errorf("onboard grace: %w", err)
	}

	if _, err := ledger.Transfer(ctx, service.TransferInput{
		From:   ada.Account.ID,
		To:     grace.Account.ID,
		Amount: types.MustMoney("25.50"),
	}); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}

	// The second transfer exceeds the balance and must leave no trace.
	if _, err := ledger.Transfer(ctx, service.TransferInput{
		From:   grace.Account.ID,
		To:     ada.Account.ID,
		Amount: types.MustMoney("1000"),
	}); err != nil {
		logger.Info(ctx, "transfer refused", "error", err)
	}

	outcomes, err := ledger.OnboardAll(ctx, []service.OnboardInput{
		{Name: "Alan Turing", Currency: "GBP", Deposit: types.MustMoney("10")},
		{Name: "Edsger Dijkstra", Currency: "eur"},
	})
	if err != nil {
		return fmt.Errorf("onboard batch: %w", err)
	}
	for _, o := range outcomes {
		if o.Err != nil {
			logger.Warn(ctx, "batch onboarding failed", "name", o.Input.Name, "error", o.Err)
		}
	}

	for _, u := range []*service.Onboarded{ada, grace} {
		st, err := ledger.Statement(ctx, u.User.ID)
		if err != nil {
			return fmt.Errorf("statement %s: %w", u.User.Name, err)
		}
		for _, a := range st.Accounts {
			fmt.Printf("%-14s %s %s (v%d)\n", st.User.Name, a.Currency, a.Balance.StringFixed(2), a.Version)
		}
	}

	list, err := ledger.Events(ctx, "", 50)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	for _, e := range list {
		fmt.Printf("%-18s %s\n", e.Name, e.Payload)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
