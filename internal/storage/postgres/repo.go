// Package postgres implements a Postgres-backed storage.Repository using pgx
// v5. Cleaned rows go in through the COPY protocol; run reports are plain
// parameterized inserts.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cleanse/internal/quality"
	"cleanse/internal/storage"
)

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, cfg)
	})
	storage.RegisterMetricsDDL("postgres", metricsDDL)
}

const metricsDDL = `CREATE TABLE IF NOT EXISTS data_quality_metrics (
	id BIGSERIAL PRIMARY KEY,
	table_name TEXT NOT NULL,
	transformation_type TEXT NOT NULL,
	total_records BIGINT NOT NULL,
	valid_records BIGINT NOT NULL,
	invalid_records BIGINT NOT NULL,
	duplicate_records BIGINT NOT NULL,
	null_percentage DOUBLE PRECISION NOT NULL,
	quality_score DOUBLE PRECISION NOT NULL,
	execution_date TIMESTAMPTZ NOT NULL
)`

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  storage.Config
}

// NewRepository opens a pgx pool against cfg.DSN.
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: pgxpool: %w", err)
	}
	return &Repository{pool: pool, cfg: cfg}, nil
}

// CopyFrom streams rows into the configured table via the COPY protocol.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	return r.pool.CopyFrom(ctx, splitFQN(r.cfg.Table), columns, pgx.CopyFromRows(rows))
}

// SaveReport appends one run report to data_quality_metrics.
func (r *Repository) SaveReport(ctx context.Context, rep quality.RunReport) error {
	const q = `INSERT INTO data_quality_metrics
		(table_name, transformation_type, total_records, valid_records,
		 invalid_records, duplicate_records, null_percentage, quality_score, execution_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, q,
		rep.TableName, rep.TransformationType, rep.TotalRecords, rep.ValidRecords,
		rep.InvalidRecords, rep.DuplicateRecords, rep.NullPercentage, rep.QualityScore,
		rep.ExecutionTimestamp)
	if err != nil {
		return fmt.Errorf("postgres: save report: %w", err)
	}
	return nil
}

// Exec implements storage.Repository.Exec.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	_, err := r.pool.Exec(ctx, sql)
	return err
}

// Close releases the pool.
func (r *Repository) Close() { r.pool.Close() }

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
// If no dot is present, returns {"table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}
