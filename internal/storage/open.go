// Package storage selects and opens the configured core.Store backend.
package storage

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/studyquest/internal/config"
	"github.com/JonMunkholm/studyquest/internal/core"
	"github.com/JonMunkholm/studyquest/internal/storage/postgres"
	"github.com/JonMunkholm/studyquest/internal/storage/sqlite"
)

// Backend is a store the commands can migrate, health check and close.
type Backend interface {
	core.Store
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Backend = (*postgres.Store)(nil)
	_ Backend = (*sqlite.Store)(nil)
)

// Open connects to the backend named by cfg.Driver. When cfg.Migrate is
// set the embedded schema is applied before returning.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Backend, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Driver {
	case config.DriverPostgres:
		backend, err = postgres.Open(ctx, cfg)
	case config.DriverSQLite:
		backend, err = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Migrate {
		if err := backend.Migrate(ctx); err != nil {
			_ = backend.Close()
			return nil, fmt.Errorf("migrate %s: %w", cfg.Driver, err)
		}
	}
	return backend, nil
}
