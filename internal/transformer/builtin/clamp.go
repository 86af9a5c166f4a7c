package builtin

import "cleanse/pkg/records"

// Clamp bounds numeric values of one field. Run after Coerce so the field
// holds int64/float64; string values pass through untouched.
type Clamp struct {
	Field  string
	Min    float64
	Max    float64
	HasMin bool
	HasMax bool
}

func (c Clamp) Apply(in []records.Record) ([]records.Record, error) {
	for _, r := range in {
		switch t := r[c.Field].(type) {
		case float64:
			r[c.Field] = c.clamp(t)
		case int64:
			r[c.Field] = int64(c.clamp(float64(t)))
		}
	}
	return in, nil
}

func (c Clamp) clamp(v float64) float64 {
	if c.HasMin && v < c.Min {
		return c.Min
	}
	if c.HasMax && v > c.Max {
		return c.Max
	}
	return v
}
