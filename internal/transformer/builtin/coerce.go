package builtin

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cleanse/pkg/records"
)

// ErrStrictCoercion is wrapped by Coerce when Policy is "strict" and a value
// cannot be converted. It fails the whole run.
var ErrStrictCoercion = errors.New("strict coercion failure")

// Coercion failure policies.
const (
	PolicyDrop   = "drop"   // drop the offending row
	PolicyNull   = "null"   // replace the offending value with nil
	PolicyStrict = "strict" // abort the batch
)

// RejectedRow reports a row dropped by a transform, for counting and logging.
type RejectedRow struct {
	Field  string
	Raw    records.Record
	Reason string
}

// defaultDateLayouts are tried in order when a coerce rule declares no
// layouts. ISO first.
var defaultDateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", "02/01/2006"}

// defaultTruthy/defaultFalsy are the recognized boolean spellings, lowercase.
// Includes the French pair carried by the source extracts.
var (
	defaultTruthy = map[string]struct{}{
		"1": {}, "t": {}, "true": {}, "yes": {}, "y": {}, "oui": {},
	}
	defaultFalsy = map[string]struct{}{
		"0": {}, "f": {}, "false": {}, "no": {}, "n": {}, "non": {},
	}
)

// Coerce converts string values of one field to a typed value: int64,
// float64, bool or time.Time. Non-string values of the right type pass
// through. What happens on an unconvertible value is the Policy's call.
type Coerce struct {
	Field   string
	Type    string   // "int", "float", "bool", "date"
	Policy  string   // PolicyDrop (default), PolicyNull or PolicyStrict
	Layouts []string // date layouts, tried in order; empty uses defaults

	// Reject is an optional sink for rows dropped under PolicyDrop.
	Reject func(RejectedRow)
}

func (c Coerce) Apply(in []records.Record) ([]records.Record, error) {
	policy := c.Policy
	if policy == "" {
		policy = PolicyDrop
	}
	out := in[:0]
	for _, r := range in {
		v, ok := r[c.Field]
		if !ok || records.Empty(v) {
			out = append(out, r)
			continue
		}
		cv, err := c.convert(v)
		if err == nil {
			r[c.Field] = cv
			out = append(out, r)
			continue
		}
		switch policy {
		case PolicyNull:
			r[c.Field] = nil
			out = append(out, r)
		case PolicyStrict:
			return nil, fmt.Errorf("coerce %s: %v: %w", c.Field, err, ErrStrictCoercion)
		default: // PolicyDrop
			if c.Reject != nil {
				c.Reject(RejectedRow{Field: c.Field, Raw: r, Reason: err.Error()})
			}
		}
	}
	return out, nil
}

func (c Coerce) convert(v any) (any, error) {
	switch c.Type {
	case "int":
		switch t := v.(type) {
		case int64:
			return t, nil
		case int:
			return int64(t), nil
		case float64:
			if t == float64(int64(t)) {
				return int64(t), nil
			}
			return nil, fmt.Errorf("%v not an integer", t)
		case string:
			s := strings.TrimSpace(t)
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return i, nil
			}
			// "1250.0" style spellings from spreadsheet exports.
			if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
				return int64(f), nil
			}
			return nil, fmt.Errorf("%q not an int", t)
		}
	case "float":
		switch t := v.(type) {
		case float64:
			return t, nil
		case int64:
			return float64(t), nil
		case int:
			return float64(t), nil
		case string:
			s := strings.TrimSpace(t)
			// Decimal commas survive extraction from French sources.
			s = strings.ReplaceAll(s, ",", ".")
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, nil
			}
			return nil, fmt.Errorf("%q not a float", t)
		}
	case "bool":
		switch t := v.(type) {
		case bool:
			return t, nil
		case string:
			s := strings.ToLower(strings.TrimSpace(t))
			if _, ok := defaultTruthy[s]; ok {
				return true, nil
			}
			if _, ok := defaultFalsy[s]; ok {
				return false, nil
			}
			return nil, fmt.Errorf("%q not a recognized boolean", t)
		}
	case "date":
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			s := strings.TrimSpace(t)
			layouts := c.Layouts
			if len(layouts) == 0 {
				layouts = defaultDateLayouts
			}
			for _, layout := range layouts {
				if d, err := time.Parse(layout, s); err == nil {
					return d, nil
				}
			}
			return nil, fmt.Errorf("%q matches no date layout", t)
		}
	}
	return nil, fmt.Errorf("type %T not %s-convertible", v, c.Type)
}
