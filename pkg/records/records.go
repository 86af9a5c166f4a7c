// Package records defines the in-memory row and table model shared by all
// cleanse pipeline stages. A Record is a flat mapping from column name to a
// scalar value; a Table is an ordered batch of records plus the column layout
// the destination schema expects.
//
// Supported scalar types are nil, string, int64, float64, bool and time.Time.
// Parsers produce strings (or nil); coercion narrows them to typed values.
package records

// Record is a single row keyed by column name.
type Record map[string]any

// Clone returns an independent shallow copy of the record. Scalar values are
// immutable, so a shallow copy is sufficient for run isolation.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Empty reports whether v counts as a missing value: nil or the empty string.
func Empty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// Table is an ordered batch of records with a stable column layout.
type Table struct {
	// Name is the logical table name used to select a transformation rule set.
	Name string
	// Columns is the destination column order. Every record is expected to
	// carry a value (possibly nil) for each listed column.
	Columns []string
	// Rows are the records in extract order. Row order is significant: the
	// dedup pass keeps the first occurrence of each key.
	Rows []Record
}

// Clone returns an independent copy of the table, including all records.
func (t Table) Clone() Table {
	out := Table{Name: t.Name, Columns: append([]string(nil), t.Columns...)}
	out.Rows = make([]Record, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}

// AddColumn appends a column to the layout if it is not already present.
func (t *Table) AddColumn(name string) {
	for _, c := range t.Columns {
		if c == name {
			return
		}
	}
	t.Columns = append(t.Columns, name)
}

// NullCells returns the number of nil cells and the total number of cells,
// counted over the declared column layout. A value that is present but empty
// ("") is not a null; only nil counts.
func (t Table) NullCells() (nulls, cells int) {
	for _, r := range t.Rows {
		for _, c := range t.Columns {
			cells++
			if v, ok := r[c]; !ok || v == nil {
				nulls++
			}
		}
	}
	return nulls, cells
}
