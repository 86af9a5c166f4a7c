// Package mysql implements a MySQL-backed storage.Repository via
// database/sql and the go-sql-driver. Bulk loads use a transactional
// prepared INSERT; MySQL has no COPY-style wire protocol worth the
// LOAD DATA INFILE ceremony at these volumes.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"cleanse/internal/quality"
	"cleanse/internal/storage"
)

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, cfg)
	})
	storage.RegisterMetricsDDL("mysql", metricsDDL)
}

const metricsDDL = `CREATE TABLE IF NOT EXISTS data_quality_metrics (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	table_name VARCHAR(255) NOT NULL,
	transformation_type VARCHAR(32) NOT NULL,
	total_records BIGINT NOT NULL,
	valid_records BIGINT NOT NULL,
	invalid_records BIGINT NOT NULL,
	duplicate_records BIGINT NOT NULL,
	null_percentage DOUBLE NOT NULL,
	quality_score DOUBLE NOT NULL,
	execution_date DATETIME NOT NULL
)`

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg storage.Config
}

// NewRepository opens a connection pool against cfg.DSN, e.g.
// "user:pass@tcp(host:3306)/dbname?parseTime=true".
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return &Repository{db: db, cfg: cfg}, nil
}

// CopyFrom inserts rows into the configured table inside one transaction
// with a prepared statement.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mysql: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	ph := strings.TrimRight(strings.Repeat("?, ", len(columns)), ", ")
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		r.cfg.Table, strings.Join(columns, ", "), ph)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mysql: begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("mysql: prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		if len(row) != len(columns) {
			_ = tx.Rollback()
			return inserted, fmt.Errorf("mysql: CopyFrom: row length %d != columns length %d", len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = tx.Rollback()
			return inserted, fmt.Errorf("mysql: insert: %w", err)
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("mysql: commit: %w", err)
	}
	return inserted, nil
}

// SaveReport appends one run report to data_quality_metrics.
func (r *Repository) SaveReport(ctx context.Context, rep quality.RunReport) error {
	const q = `INSERT INTO data_quality_metrics
		(table_name, transformation_type, total_records, valid_records,
		 invalid_records, duplicate_records, null_percentage, quality_score, execution_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		rep.TableName, rep.TransformationType, rep.TotalRecords, rep.ValidRecords,
		rep.InvalidRecords, rep.DuplicateRecords, rep.NullPercentage, rep.QualityScore,
		rep.ExecutionTimestamp)
	if err != nil {
		return fmt.Errorf("mysql: save report: %w", err)
	}
	return nil
}

// Exec implements storage.Repository.Exec.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if strings.TrimSpace(sqlText) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("mysql: exec: %w", err)
	}
	return nil
}

// Close closes the pool.
func (r *Repository) Close() { r.db.Close() }
