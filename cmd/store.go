// cmd/store.go
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xkilldash9x/marketcheck/internal/config"
	"github.com/xkilldash9x/marketcheck/internal/observability"
	"github.com/xkilldash9x/marketcheck/internal/store"
)

// errNoDatabase is returned by providers when database.url is empty.
var errNoDatabase = errors.New("database URL is not configured (MARKETCHECK_DATABASE_URL)")

// runStore is the part of store.Store the commands use.
type runStore interface {
	EnsureSchema(ctx context.Context) error
	SaveRun(ctx context.Context, run store.RunRecord) error
	RecentRuns(ctx context.Context, limit int) ([]store.RunSummary, error)
}

// storeProvider creates the run store. Tests inject one backed by a mock pool.
type storeProvider interface {
	// Create returns the store and a cleanup function releasing its resources.
	Create(ctx context.Context, cfg *config.Config) (runStore, func(), error)
}

type defaultStoreProvider struct{}

// NewStoreProvider returns the provider that connects to PostgreSQL.
func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

// Create connects to the database named by cfg.Database.URL.
func (p *defaultStoreProvider) Create(ctx context.Context, cfg *config.Config) (runStore, func(), error) {
	logger := observability.GetLogger()
	if cfg.Database.URL == "" {
		return nil, nil, errNoDatabase
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storeService, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize store service: %w", err)
	}

	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed.")
	}
	return storeService, cleanup, nil
}
