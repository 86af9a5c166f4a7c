// Command cleanse reads a raw tabular extract (CSV), runs it through the
// rule-driven cleaning engine and optionally persists the cleaned rows plus
// the run's quality report to a destination database.
//
// Usage:
//
//	cleanse -rules configs/rules.yaml -input clients.csv -table clients \
//	    -storage postgres -dsn postgres://... \
//	    -metrics-backend pushgateway -pushgateway-url http://localhost:9091
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"cleanse/internal/config"
	"cleanse/internal/engine"
	"cleanse/internal/metrics"
	"cleanse/internal/metrics/datadog"
	"cleanse/internal/metrics/prompush"
	"cleanse/internal/quality"
	"cleanse/internal/rules"
	"cleanse/internal/storage"
	"cleanse/pkg/records"

	// register all backends with the storage factory. The -storage flag
	// selects which one to use, but all must be built in.
	_ "cleanse/internal/storage/all"
)

func main() {
	var (
		rulesPath      string
		inputPath      string
		tableName      string
		storageKind    string
		dsn            string
		destTable      string
		metricsBackend string
		pushgatewayURL string
		statsdAddr     string
		workers        int
		validate       bool
	)

	flag.StringVar(&rulesPath, "rules", "configs/rules.yaml", "rule document YAML path")
	flag.StringVar(&inputPath, "input", "", "input CSV path (default stdin)")
	flag.StringVar(&tableName, "table", "", "logical table name of the extract (required)")
	flag.StringVar(&storageKind, "storage", "none", "destination backend: none, postgres, mysql, mssql, sqlite")
	flag.StringVar(&dsn, "dsn", "", "destination DSN (required unless -storage none)")
	flag.StringVar(&destTable, "dest-table", "", "destination table for cleaned rows (default: -table value)")
	flag.StringVar(&metricsBackend, "metrics-backend", "none", "metrics backend: none, pushgateway, datadog")
	flag.StringVar(&pushgatewayURL, "pushgateway-url", "", "Pushgateway base URL (or env PUSHGATEWAY_URL)")
	flag.StringVar(&statsdAddr, "statsd-addr", "", "DogStatsD address (or env STATSD_ADDR)")
	flag.IntVar(&workers, "workers", 0, "parallel transform shards (0 = one per CPU)")
	flag.BoolVar(&validate, "validate", false, "validate the rule document and exit")
	flag.Parse()

	doc, err := config.Load(rulesPath)
	if err != nil {
		fatalf("%v", err)
	}

	issues := config.ValidateDocument(doc)
	hasError := false
	for _, is := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", is.Severity, is.Path, is.Message)
		if is.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		fatalf("rule document is invalid: %s", rulesPath)
	}
	if validate {
		log.Printf("rule document is valid: %s", rulesPath)
		return
	}

	if tableName == "" {
		fatalf("-table is required")
	}

	setupMetrics(metricsBackend, pushgatewayURL, statsdAddr, tableName)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}()

	reg, err := rules.New(doc)
	if err != nil {
		fatalf("%v", err)
	}

	in := os.Stdin
	if inputPath != "" {
		f, err := os.Open(inputPath)
		if err != nil {
			fatalf("open input: %v", err)
		}
		defer f.Close()
		in = f
	}
	table, err := readCSV(in, tableName)
	if err != nil {
		fatalf("read input: %v", err)
	}

	ctx := context.Background()
	start := time.Now()

	opts := []engine.Option{}
	if workers > 0 {
		opts = append(opts, engine.WithWorkers(workers))
	}
	out, rep, err := engine.New(reg, opts...).Run(ctx, table)
	if err != nil {
		fatalf("%v", err)
	}

	if storageKind != "" && storageKind != "none" {
		if destTable == "" {
			destTable = tableName
		}
		if err := persist(ctx, storage.Config{Kind: storageKind, DSN: dsn, Table: destTable}, out, rep); err != nil {
			fatalf("%v", err)
		}
	}

	log.Printf("done table=%s rows_out=%d score=%.2f elapsed=%s",
		tableName, len(out.Rows), rep.QualityScore, time.Since(start).Truncate(time.Millisecond))
}

// setupMetrics installs the selected metrics backend. Flag values win over
// environment variables; an unusable backend degrades to nop with a warning.
func setupMetrics(backend, gwURL, statsdAddr, job string) {
	switch backend {
	case "pushgateway":
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(job, gwURL)
		if err != nil {
			log.Printf("metrics: pushgateway init failed: %v; using nop", err)
			return
		}
		metrics.SetBackend(b)
	case "datadog":
		if statsdAddr == "" {
			statsdAddr = os.Getenv("STATSD_ADDR")
		}
		if statsdAddr == "" {
			statsdAddr = "127.0.0.1:8125"
		}
		b, err := datadog.NewBackend(datadog.Config{Addr: statsdAddr, Namespace: "cleanse."})
		if err != nil {
			log.Printf("metrics: datadog init failed: %v; using nop", err)
			return
		}
		metrics.SetBackend(b)
	case "", "none":
		// metrics disabled; nop backend remains
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backend)
	}
}

// readCSV parses a headered CSV stream into a table. The reader is lenient:
// unescaped quotes and ragged rows are tolerated, short rows leave trailing
// columns nil.
func readCSV(r io.Reader, tableName string) (records.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // allow variable fields per row
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return records.Table{}, fmt.Errorf("csv header: %w", err)
	}

	t := records.Table{Name: tableName, Columns: append([]string(nil), header...)}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return records.Table{}, fmt.Errorf("csv row %d: %w", len(t.Rows)+2, err)
		}
		rec := make(records.Record, len(header))
		for i, col := range header {
			if i < len(row) && row[i] != "" {
				rec[col] = row[i]
			} else {
				rec[col] = nil
			}
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// persist writes the cleaned rows and the run report to the destination.
func persist(ctx context.Context, cfg storage.Config, out records.Table, rep quality.RunReport) error {
	repo, err := storage.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := storage.EnsureMetricsTable(ctx, cfg.Kind, repo); err != nil {
		return fmt.Errorf("ensure metrics table: %w", err)
	}

	pStart := time.Now()
	n, err := repo.CopyFrom(ctx, out.Columns, rowsForCopy(out))
	metrics.RecordStep(rep.TableName, "persist", err, time.Since(pStart))
	if err != nil {
		return fmt.Errorf("copy rows: %w", err)
	}
	metrics.RecordRows(rep.TableName, "inserted", n)
	log.Printf("persist table=%s kind=%s inserted=%d", cfg.Table, cfg.Kind, n)

	if err := repo.SaveReport(ctx, rep); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// rowsForCopy flattens records into positional rows aligned to the table's
// column layout.
func rowsForCopy(t records.Table) [][]any {
	rows := make([][]any, len(t.Rows))
	for i, rec := range t.Rows {
		row := make([]any, len(t.Columns))
		for j, c := range t.Columns {
			row[j] = rec[c]
		}
		rows[i] = row
	}
	return rows
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
