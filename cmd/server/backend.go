package main

import (
	"context"
	"fmt"
	"log/slog"

	"contactgraph/internal/contact/service"
	"contactgraph/internal/contact/store"
	"contactgraph/internal/platform/config"
	"contactgraph/internal/platform/postgres"
	"contactgraph/internal/platform/sqlite"
)

// backend is an opened contact store plus its lifecycle hooks.
type backend struct {
	store   service.TxStore
	ping    func(ctx context.Context) error
	migrate func(ctx context.Context) error
	close   func() error
}

// openBackend opens the store selected by STORAGE_DRIVER.
func openBackend(ctx context.Context, cfg config.Storage, log *slog.Logger) (*backend, error) {
	storeOpts := []store.Option{store.WithTxTimeout(cfg.TxTimeout)}

	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, postgres.DefaultConfig(cfg.DatabaseURL))
		if err != nil {
			return nil, err
		}
		pg := store.NewPostgres(db, storeOpts...)
		return &backend{
			store:   pg,
			ping:    pg.Ping,
			migrate: func(ctx context.Context) error { return postgres.Migrate(ctx, db) },
			close:   db.Close,
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("sqlite handle: %w", err)
		}
		lite := store.NewSQLite(db, storeOpts...)
		return &backend{
			store:   lite,
			ping:    lite.Ping,
			migrate: lite.AutoMigrate,
			close:   sqlDB.Close,
		}, nil

	case config.DriverMemory:
		mem := store.NewInMemory(storeOpts...)
		return &backend{
			store:   mem,
			ping:    mem.Ping,
			migrate: func(context.Context) error { return nil },
			close:   func() error { return nil },
		}, nil
	}
	return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
}
