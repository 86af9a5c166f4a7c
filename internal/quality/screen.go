// Package quality implements the post-transform screening pass (validation
// and first-seen-wins deduplication), the composite quality score and the
// per-run report persisted to the data_quality_metrics table.
package quality

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/zeebo/xxh3"

	"cleanse/pkg/records"
)

// Check is one compiled row-level constraint. Built by the rule registry at
// load time; Pattern is pre-compiled so screening never fails.
type Check struct {
	Field   string
	Kind    string // "range", "pattern" or "email"
	Min     *float64
	Max     *float64
	Pattern *regexp.Regexp
}

// emailRe is deliberately loose: one @, non-empty local part, a dot in the
// domain. Mail-grade validation is the destination system's problem.
var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// OK reports whether r satisfies the constraint. A missing or nil value
// passes; presence is the required-field list's concern, not the check's.
func (c Check) OK(r records.Record) bool {
	v, exists := r[c.Field]
	if !exists || records.Empty(v) {
		return true
	}
	switch c.Kind {
	case "range":
		f, ok := asFloat(v)
		if !ok {
			return false
		}
		if c.Min != nil && f < *c.Min {
			return false
		}
		if c.Max != nil && f > *c.Max {
			return false
		}
		return true
	case "pattern":
		s, ok := v.(string)
		return ok && c.Pattern.MatchString(s)
	case "email":
		s, ok := v.(string)
		return ok && emailRe.MatchString(s)
	}
	return true
}

// Screen is the validation + deduplication pass over the transformed rows.
type Screen struct {
	// DedupKey lists the columns forming the uniqueness key. Empty disables
	// duplicate detection.
	DedupKey []string
	// Required lists columns that must be present and non-empty.
	Required []string
	// Checks are the compiled row constraints.
	Checks []Check
}

// Result carries the screening outcome. Kept rows are those valid and
// first-seen, in original order. Invalid and Duplicate count over the same
// input set independently: a row can contribute to both.
type Result struct {
	Kept      []records.Record
	Invalid   int
	Duplicate int
}

// Run screens rows in order. An invalid row still claims its dedup key, so
// a later identical row is a duplicate regardless of the earlier row's
// validity.
func (s Screen) Run(rows []records.Record) Result {
	res := Result{Kept: make([]records.Record, 0, len(rows))}
	seen := make(map[uint64]struct{}, len(rows))
	for _, r := range rows {
		dup := false
		if len(s.DedupKey) > 0 {
			k := dedupKey(r, s.DedupKey)
			if _, dup = seen[k]; !dup {
				seen[k] = struct{}{}
			} else {
				res.Duplicate++
			}
		}
		if !s.valid(r) {
			res.Invalid++
			continue
		}
		if !dup {
			res.Kept = append(res.Kept, r)
		}
	}
	return res
}

func (s Screen) valid(r records.Record) bool {
	for _, f := range s.Required {
		if v, ok := r[f]; !ok || records.Empty(v) {
			return false
		}
	}
	for _, c := range s.Checks {
		if !c.OK(r) {
			return false
		}
	}
	return true
}

// dedupKey hashes the \x1f-joined string forms of the key columns. Missing
// columns contribute \x00 so partial rows still key deterministically.
func dedupKey(r records.Record, keys []string) uint64 {
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		switch t := r[k].(type) {
		case nil:
			b.WriteByte('\x00')
		case string:
			b.WriteString(t)
		default:
			b.WriteString(fmt.Sprint(t))
		}
	}
	return xxh3.HashString(b.String())
}

func asFloat(v any) (float64, bool) {
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
