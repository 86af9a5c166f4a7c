package builtin

import "cleanse/pkg/records"

// Fill replaces missing values (nil or "") with a configured default. Field
// "*" (or empty) fills every column of the record; typed columns should be
// excluded by listing them in Skip so "UNKNOWN" never lands in a numeric cell.
type Fill struct {
	Field string
	Value string
	Skip  []string
}

func (f Fill) Apply(in []records.Record) ([]records.Record, error) {
	if f.Value == "" {
		return in, nil
	}
	all := f.Field == "" || f.Field == "*"
	skip := make(map[string]struct{}, len(f.Skip))
	for _, s := range f.Skip {
		skip[s] = struct{}{}
	}
	for _, r := range in {
		if all {
			for k, v := range r {
				if _, skipped := skip[k]; skipped {
					continue
				}
				if records.Empty(v) {
					r[k] = f.Value
				}
			}
			continue
		}
		if records.Empty(r[f.Field]) {
			r[f.Field] = f.Value
		}
	}
	return in, nil
}
