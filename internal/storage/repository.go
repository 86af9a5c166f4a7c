// Package storage contains the storage-agnostic contracts of the cleanse
// pipeline: the Repository interface, a kind-keyed factory that concrete
// backends register into at init time, and the bootstrap of the
// data_quality_metrics destination table.
//
// The core engine never touches this package; persistence is a collaborator
// wired in by the CLI.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cleanse/internal/quality"
)

// MetricsTable is the fixed destination for per-run quality reports. Its
// layout is an external contract shared with downstream dashboards.
const MetricsTable = "data_quality_metrics"

// Repository is a destination database for cleaned rows and run reports.
type Repository interface {
	// CopyFrom bulk-inserts rows (aligned to the columns order) into the
	// configured destination table and returns the inserted row count.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)
	// SaveReport appends one run report to the data_quality_metrics table.
	SaveReport(ctx context.Context, rep quality.RunReport) error
	// Exec runs an arbitrary SQL statement, typically DDL.
	Exec(ctx context.Context, sql string) error
	// Close releases the underlying connections.
	Close()
}

// Config carries the backend-independent connection settings.
type Config struct {
	Kind  string // "postgres", "mysql", "mssql", "sqlite"
	DSN   string
	Table string // destination table for cleaned rows
}

// Factory constructs a Repository for one storage kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
	ddls      = map[string]string{}
)

// Register adds (or replaces) the factory for a storage kind. It is called
// from backend packages' init functions; importing storage/all wires in every
// built-in backend.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// RegisterMetricsDDL records the backend-specific CREATE TABLE statement for
// the data_quality_metrics table.
func RegisterMetricsDDL(kind, ddl string) {
	mu.Lock()
	defer mu.Unlock()
	ddls[kind] = ddl
}

// New opens a Repository of the configured kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns a sorted snapshot of the registered storage kinds.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// EnsureMetricsTable creates the data_quality_metrics table for the given
// kind if it does not exist yet.
func EnsureMetricsTable(ctx context.Context, kind string, repo Repository) error {
	mu.RLock()
	ddl, ok := ddls[kind]
	mu.RUnlock()
	if !ok {
		return fmt.Errorf("no metrics DDL registered for storage.kind=%s", kind)
	}
	return repo.Exec(ctx, ddl)
}
