// Package prefs stores per-catalog user preferences (last query, selected
// class, imported dataset) under "<prefix>:<field>" names.
package prefs

import (
	"context"
	"fmt"

	"catalogexplorer/internal/infra/persistence/memory"
	"catalogexplorer/internal/infra/persistence/postgres"
	"catalogexplorer/internal/infra/persistence/sqlite"
)

// Store is a flat string key/value store.
type Store interface {
	Get(ctx context.Context, name string) (string, bool, error)
	Put(ctx context.Context, name, value string) error
	Delete(ctx context.Context, name string) error
	Names(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Fields persisted for each catalog.
const (
	FieldData   = "data"
	FieldQuery  = "q"
	FieldClass  = "class"
	FieldGroup  = "group"
	FieldMode   = "mode"
	FieldPicked = "picked"
)

// Key joins a catalog prefix and a field.
func Key(prefix, field string) string { return prefix + ":" + field }

// Driver names a backend.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Config selects and configures a backend.
type Config struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
}

// Open returns the backend named by cfg.Driver (default memory).
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch Driver(cfg.Driver) {
	case "", DriverMemory:
		return memory.NewStore(), nil
	case DriverSQLite:
		return sqlite.NewStore(ctx, cfg.SQLitePath)
	case DriverPostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown prefs driver %q", cfg.Driver)
	}
}

// NewMemory returns an in-memory store.
func NewMemory() Store { return memory.NewStore() }
