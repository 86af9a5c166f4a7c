// Package enrich holds the derived-column calculators. Each calculator is a
// pure function from one record to a small map of new columns; the engine
// invokes it per row on tables whose rule entry names it. Calculators never
// fail a row: where a derivation is undefined (zero denominator, missing
// input) the derived column is nil.
package enrich

import (
	"sort"

	"cleanse/pkg/records"
)

// Calculator derives new columns from one record.
type Calculator func(records.Record) map[string]any

type entry struct {
	calc    Calculator
	columns []string
}

var registry = map[string]entry{}

// Register adds a calculator under id, declaring the columns it produces.
// Panics on duplicate registration; calculators are wired at init time.
func Register(id string, columns []string, c Calculator) {
	if _, dup := registry[id]; dup {
		panic("enrich: duplicate calculator " + id)
	}
	registry[id] = entry{calc: c, columns: columns}
}

// Lookup returns the calculator registered under id.
func Lookup(id string) (Calculator, bool) {
	e, ok := registry[id]
	return e.calc, ok
}

// Columns returns the column names the calculator id appends, in declaration
// order.
func Columns(id string) []string {
	return registry[id].columns
}

// IDs lists the registered calculator identifiers, sorted.
func IDs() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// number widens the numeric types a coerced record can hold to float64.
func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	}
	return 0, false
}
