// Package engine orchestrates one cleanse run: resolve the rule set for the
// table, transform the rows, enrich, screen (validate + dedup) and score.
//
// A run moves through three states, RESOLVING -> PROCESSING -> DONE, with a
// terminal FAILED entered on configuration errors or strict-policy coercion
// failures. On FAILED neither a table nor a report is produced.
package engine

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cleanse/internal/enrich"
	"cleanse/internal/metrics"
	"cleanse/internal/quality"
	"cleanse/internal/rules"
	"cleanse/internal/transformer/builtin"
	"cleanse/pkg/records"
)

// State is the run lifecycle phase, for logging and instrumentation.
type State string

const (
	StateResolving  State = "RESOLVING"
	StateProcessing State = "PROCESSING"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

// Engine runs the cleanse pipeline against in-memory tables. The zero value
// is not usable; construct with New.
type Engine struct {
	reg     *rules.Registry
	workers int
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the number of parallel transform shards. Values below 2
// keep the transform single-threaded.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithClock injects the timestamp source, so tests can pin ExecutionTimestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an Engine around a compiled rule registry.
func New(reg *rules.Registry, opts ...Option) *Engine {
	e := &Engine{
		reg:     reg,
		workers: runtime.GOMAXPROCS(0),
		now:     time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run cleans one table. The input is never mutated; repeated runs on the
// same input produce identical output and report except ExecutionTimestamp.
func (e *Engine) Run(ctx context.Context, in records.Table) (records.Table, quality.RunReport, error) {
	started := e.now()
	log.Printf("run table=%q state=%s rows=%d", in.Name, StateResolving, len(in.Rows))

	spec, path := e.reg.Resolve(in.Name)
	metrics.RecordStep(in.Name, "resolve", nil, e.now().Sub(started))

	work := in.Clone()
	var dateCols []string
	if path == rules.Default {
		// Unmodeled extracts arrive with arbitrary column spellings; fold
		// them onto the destination convention before transforming.
		canonicalizeColumns(&work)
		dateCols = autoDateColumns(work.Columns)
		for _, col := range sensitiveColumns(work.Columns, spec.SensitivePatterns) {
			log.Printf("run table=%q sensitive column=%q, check anonymization rules", in.Name, col)
		}
	}

	log.Printf("run table=%q state=%s path=%s rules=%d", in.Name, StateProcessing, path, len(spec.Rules))

	var (
		mu      sync.Mutex
		dropped int
	)
	reject := func(r builtin.RejectedRow) {
		mu.Lock()
		dropped++
		mu.Unlock()
	}

	tStart := e.now()
	rows, err := e.transform(ctx, spec, work.Rows, dateCols, reject)
	metrics.RecordStep(in.Name, "transform", err, e.now().Sub(tStart))
	if err != nil {
		log.Printf("run table=%q state=%s err=%v", in.Name, StateFailed, err)
		return records.Table{}, quality.RunReport{}, fmt.Errorf("engine: transform %s: %w", in.Name, err)
	}

	for _, col := range spec.OutputColumns() {
		work.AddColumn(col)
	}

	if path == rules.Specific && spec.Enrichment != "" {
		calc, _ := enrich.Lookup(spec.Enrichment)
		for _, col := range enrich.Columns(spec.Enrichment) {
			work.AddColumn(col)
		}
		for _, r := range rows {
			for k, v := range calc(r) {
				r[k] = v
			}
		}
	}

	// A lone "*" keys deduplication over the whole row, for tables whose
	// column set is only known at run time.
	dedupKey := spec.DedupKey
	if len(dedupKey) == 1 && dedupKey[0] == "*" {
		dedupKey = work.Columns
	}

	sStart := e.now()
	screen := quality.Screen{DedupKey: dedupKey, Required: spec.Required, Checks: spec.Checks}
	res := screen.Run(rows)
	metrics.RecordStep(in.Name, "screen", nil, e.now().Sub(sStart))

	out := records.Table{Name: work.Name, Columns: work.Columns, Rows: res.Kept}

	counts := quality.Counts{
		Total:     len(in.Rows),
		Invalid:   dropped + res.Invalid,
		Duplicate: res.Duplicate,
	}
	counts.Valid = counts.Total - counts.Invalid

	nulls, cells := out.NullCells()
	nullPct := quality.NullPercentage(nulls, cells)
	score := quality.Score(counts, nullPct, e.reg.Weights())

	report := quality.RunReport{
		TableName:          in.Name,
		TransformationType: string(path),
		TotalRecords:       counts.Total,
		ValidRecords:       counts.Valid,
		InvalidRecords:     counts.Invalid,
		DuplicateRecords:   counts.Duplicate,
		NullPercentage:     nullPct,
		QualityScore:       score,
		ExecutionTimestamp: e.now(),
	}

	metrics.RecordRows(in.Name, "total", int64(counts.Total))
	metrics.RecordRows(in.Name, "valid", int64(counts.Valid))
	metrics.RecordRows(in.Name, "invalid", int64(counts.Invalid))
	metrics.RecordRows(in.Name, "duplicate", int64(counts.Duplicate))
	metrics.RecordQuality(in.Name, score)

	log.Printf("run table=%q state=%s total=%d valid=%d invalid=%d duplicate=%d null_pct=%.2f score=%.2f",
		in.Name, StateDone, counts.Total, counts.Valid, counts.Invalid, counts.Duplicate, nullPct, score)
	return out, report, nil
}

// transform applies the compiled chain, sharding rows across workers while
// preserving order: shard i writes only slot i of the output slice.
func (e *Engine) transform(ctx context.Context, spec rules.TransformSpec, rows []records.Record, dateCols []string, reject func(builtin.RejectedRow)) ([]records.Record, error) {
	chain, err := spec.Compile(reject, dateCols...)
	if err != nil {
		return nil, err
	}
	if e.workers < 2 || len(rows) < 2*e.workers {
		return chain.Apply(rows)
	}

	n := e.workers
	shardSize := (len(rows) + n - 1) / n
	outs := make([][]records.Record, n)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		lo := i * shardSize
		if lo >= len(rows) {
			break
		}
		hi := lo + shardSize
		if hi > len(rows) {
			hi = len(rows)
		}
		i, shard := i, rows[lo:hi:hi]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := chain.Apply(shard)
			if err != nil {
				return err
			}
			outs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]records.Record, 0, len(rows))
	for _, o := range outs {
		merged = append(merged, o...)
	}
	return merged, nil
}

// canonicalizeColumns rewrites the table's column names and record keys to
// the destination convention (lowercase, accents stripped, underscores).
// When two source columns fold onto the same name, the later one gets a
// numeric suffix so no column's values are silently overwritten.
func canonicalizeColumns(t *records.Table) {
	used := make(map[string]bool, len(t.Columns))
	renames := make(map[string]string, len(t.Columns))
	for i, c := range t.Columns {
		canon := builtin.CanonicalName(c)
		if canon == "" {
			used[c] = true
			continue
		}
		name := canon
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s_%d", canon, n)
		}
		used[name] = true
		if name == c {
			continue
		}
		if name != canon {
			log.Printf("column collision: %q renamed to %q", c, name)
		}
		renames[c] = name
		t.Columns[i] = name
	}
	if len(renames) == 0 {
		return
	}
	for _, r := range t.Rows {
		// Lift all moving values first; old and new names may overlap
		// across different renames.
		moved := make(map[string]any, len(renames))
		for old := range renames {
			if v, ok := r[old]; ok {
				moved[old] = v
				delete(r, old)
			}
		}
		for old, name := range renames {
			if v, ok := moved[old]; ok {
				r[name] = v
			}
		}
	}
}

// autoDateColumns picks out the columns whose name suggests a timestamp, the
// way unmodeled feeds usually spell them.
func autoDateColumns(cols []string) []string {
	var out []string
	for _, c := range cols {
		lc := strings.ToLower(c)
		if strings.Contains(lc, "date") || strings.Contains(lc, "time") {
			out = append(out, c)
		}
	}
	return out
}

// sensitiveColumns returns the columns whose name contains one of the
// configured patterns, case-insensitive.
func sensitiveColumns(cols, patterns []string) []string {
	var out []string
	for _, c := range cols {
		lc := strings.ToLower(c)
		for _, p := range patterns {
			if p != "" && strings.Contains(lc, strings.ToLower(p)) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}
