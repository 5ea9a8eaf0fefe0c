package storage

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Options selects and configures a KeyValueStore backend.
type Options struct {
	Backend     string
	SQLitePath  string
	PostgresURL string
}

// Open builds the configured backend.
func Open(ctx context.Context, opts Options) (KeyValueStore, error) {
	switch opts.Backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendSQLite:
		return NewSQLiteStore(opts.SQLitePath)
	case BackendPostgres:
		return NewPostgresStore(ctx, opts.PostgresURL)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", opts.Backend)
	}
}
