// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql. It performs batched INSERTs inside a transaction; SQLite has
// no dedicated bulk-load API, but transactions keep performance acceptable
// for the volumes a single cleanse run produces. The pure-Go driver keeps
// cross-compilation cgo-free.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"cleanse/internal/quality"
	"cleanse/internal/storage"
)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, cfg)
	})
	storage.RegisterMetricsDDL("sqlite", metricsDDL)
}

const metricsDDL = `CREATE TABLE IF NOT EXISTS data_quality_metrics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	table_name TEXT NOT NULL,
	transformation_type TEXT NOT NULL,
	total_records INTEGER NOT NULL,
	valid_records INTEGER NOT NULL,
	invalid_records INTEGER NOT NULL,
	duplicate_records INTEGER NOT NULL,
	null_percentage REAL NOT NULL,
	quality_score REAL NOT NULL,
	execution_date TEXT NOT NULL
)`

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg storage.Config
}

// NewRepository opens a SQLite database. The DSN is passed straight to
// database/sql, e.g. "file:cleanse.db?cache=shared" or "cleanse.db".
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return &Repository{db: db, cfg: cfg}, nil
}

// CopyFrom inserts rows into the configured table using a single transaction
// and a prepared statement.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	ph := strings.TrimRight(strings.Repeat("?, ", len(columns)), ", ")
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		r.cfg.Table, strings.Join(columns, ", "), ph)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		if len(row) != len(columns) {
			_ = tx.Rollback()
			return inserted, fmt.Errorf("sqlite: CopyFrom: row length %d != columns length %d", len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = tx.Rollback()
			return inserted, fmt.Errorf("sqlite: insert: %w", err)
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("sqlite: commit: %w", err)
	}
	return inserted, nil
}

// SaveReport appends one run report to data_quality_metrics. Timestamps are
// stored in RFC 3339 so lexical order matches time order.
func (r *Repository) SaveReport(ctx context.Context, rep quality.RunReport) error {
	const q = `INSERT INTO data_quality_metrics
		(table_name, transformation_type, total_records, valid_records,
		 invalid_records, duplicate_records, null_percentage, quality_score, execution_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		rep.TableName, rep.TransformationType, rep.TotalRecords, rep.ValidRecords,
		rep.InvalidRecords, rep.DuplicateRecords, rep.NullPercentage, rep.QualityScore,
		rep.ExecutionTimestamp.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlite: save report: %w", err)
	}
	return nil
}

// Exec executes an arbitrary SQL statement (typically DDL).
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if strings.TrimSpace(sqlText) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

// Close closes the database.
func (r *Repository) Close() { r.db.Close() }
