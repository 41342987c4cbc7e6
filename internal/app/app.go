// Package app wires the engine's services from configuration. It is shared
// by the HTTP server and the operator CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/hkmcoding/landie-next-sub000/internal/archive"
	"github.com/hkmcoding/landie-next-sub000/internal/config"
	"github.com/hkmcoding/landie-next-sub000/internal/errs"
	"github.com/hkmcoding/landie-next-sub000/internal/impact"
	"github.com/hkmcoding/landie-next-sub000/internal/llm"
	"github.com/hkmcoding/landie-next-sub000/internal/snapshot"
	"github.com/hkmcoding/landie-next-sub000/internal/storage"
	"github.com/hkmcoding/landie-next-sub000/internal/suggestions"
	"github.com/sirupsen/logrus"
)

// App holds the constructed services and the connections behind them
type App struct {
	Config      *config.Config
	Store       *storage.PostgresStore
	Snapshots   *snapshot.Service
	Suggestions *suggestions.Service
	Impact      *impact.Service

	analytics *snapshot.ClickHouseSource
}

// New connects to Postgres and ClickHouse and builds the services. A missing
// model key only disables analysis; a missing archive account disables
// session archiving.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg.ClickHouseHost == "" {
		return nil, &errs.ConfigurationError{Setting: "CLICKHOUSE_HOST", Reason: "is required"}
	}

	store, err := storage.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to migrate storage: %w", err)
	}

	analytics, err := snapshot.NewClickHouseSource(cfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize analytics source: %w", err)
	}

	snapshots := snapshot.NewService(analytics, store, snapshot.DefaultWindow)

	var model llm.Client
	client, err := llm.NewClient(ctx, cfg)
	var cfgErr *errs.ConfigurationError
	switch {
	case err == nil:
		model = client
	case errors.As(err, &cfgErr):
		logrus.Warnf("Suggestion model unavailable, analysis disabled: %v", err)
	default:
		store.Close()
		analytics.Close()
		return nil, fmt.Errorf("failed to initialize model client: %w", err)
	}

	var sessions archive.Archive
	if cfg.StorageAccount != "" {
		azure, err := archive.NewAzureArchive(ctx, cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			store.Close()
			analytics.Close()
			return nil, fmt.Errorf("failed to initialize session archive: %w", err)
		}
		sessions = azure
	} else {
		logrus.Info("AZURE_STORAGE_ACCOUNT not set, session archiving disabled")
	}

	return &App{
		Config:      cfg,
		Store:       store,
		Snapshots:   snapshots,
		Suggestions: suggestions.NewService(cfg, store, snapshots, model, sessions),
		Impact:      impact.NewService(cfg, store, snapshots, snapshots),
		analytics:   analytics,
	}, nil
}

// Close releases database connections
func (a *App) Close() {
	if err := a.analytics.Close(); err != nil {
		logrus.Warnf("Failed to close ClickHouse connection: %v", err)
	}
	if err := a.Store.Close(); err != nil {
		logrus.Warnf("Failed to close Postgres connection: %v", err)
	}
}
