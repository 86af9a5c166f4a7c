package builtin

import "cleanse/pkg/records"

// MapValues rewrites a string field through a fixed lookup table, in place or
// into a separate column ("pays" -> "pays_code"). A value without an entry
// falls back to Default when one is configured; otherwise it stays unchanged
// in place, or the Into column is set to nil.
type MapValues struct {
	Field   string
	Into    string // target column; empty writes back to Field
	Default string
	Values  map[string]string
}

func (m MapValues) Apply(in []records.Record) ([]records.Record, error) {
	target := m.Into
	if target == "" {
		target = m.Field
	}
	for _, r := range in {
		s, ok := r[m.Field].(string)
		if !ok || s == "" {
			continue
		}
		if mapped, hit := m.Values[s]; hit {
			r[target] = mapped
			continue
		}
		switch {
		case m.Default != "":
			r[target] = m.Default
		case m.Into != "":
			r[target] = nil
		}
	}
	return in, nil
}
