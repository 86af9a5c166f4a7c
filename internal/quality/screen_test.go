package quality

import (
	"reflect"
	"regexp"
	"testing"

	"cleanse/pkg/records"
)

func f(v float64) *float64 { return &v }

func TestCheckOK(t *testing.T) {
	tests := []struct {
		name  string
		check Check
		rec   records.Record
		want  bool
	}{
		{"range_inside", Check{Field: "age", Kind: "range", Min: f(18), Max: f(120)}, records.Record{"age": int64(42)}, true},
		{"range_below", Check{Field: "age", Kind: "range", Min: f(18)}, records.Record{"age": int64(5)}, false},
		{"range_above", Check{Field: "age", Kind: "range", Max: f(120)}, records.Record{"age": 121.0}, false},
		{"range_non_numeric", Check{Field: "age", Kind: "range", Min: f(0)}, records.Record{"age": "old"}, false},
		{"range_missing_passes", Check{Field: "age", Kind: "range", Min: f(0)}, records.Record{}, true},
		{"range_nil_passes", Check{Field: "age", Kind: "range", Min: f(0)}, records.Record{"age": nil}, true},
		{"pattern_match", Check{Field: "vin", Kind: "pattern", Pattern: regexp.MustCompile(`^[A-Z0-9]{17}$`)}, records.Record{"vin": "5XYKT3A17CG244283"}, true},
		{"pattern_miss", Check{Field: "vin", Kind: "pattern", Pattern: regexp.MustCompile(`^[A-Z0-9]{17}$`)}, records.Record{"vin": "short"}, false},
		{"email_ok", Check{Field: "email", Kind: "email"}, records.Record{"email": "jean@example.fr"}, true},
		{"email_bad", Check{Field: "email", Kind: "email"}, records.Record{"email": "not-an-email"}, false},
		{"email_empty_passes", Check{Field: "email", Kind: "email"}, records.Record{"email": ""}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.check.OK(tc.rec); got != tc.want {
				t.Errorf("OK(%#v) = %v, want %v", tc.rec, got, tc.want)
			}
		})
	}
}

/*
TestScreenRun covers the interplay of validation and deduplication:

  - first-seen-wins in original order
  - invalid rows are dropped but still claim their dedup key
  - a row can count as both invalid and duplicate
  - Valid + Invalid == Total over the input set
*/
func TestScreenRun(t *testing.T) {
	s := Screen{
		DedupKey: []string{"email"},
		Required: []string{"email"},
	}

	rows := []records.Record{
		{"email": "a@x.fr", "n": int64(1)},
		{"email": nil, "n": int64(2)},      // invalid (missing required)
		{"email": "a@x.fr", "n": int64(3)}, // duplicate of row 0
		{"email": "b@x.fr", "n": int64(4)},
		{"email": nil, "n": int64(5)}, // invalid AND duplicate of row 1's nil key
	}

	res := s.Run(rows)

	wantKept := []records.Record{
		{"email": "a@x.fr", "n": int64(1)},
		{"email": "b@x.fr", "n": int64(4)},
	}
	if !reflect.DeepEqual(res.Kept, wantKept) {
		t.Errorf("Kept = %#v, want %#v", res.Kept, wantKept)
	}
	if res.Invalid != 2 {
		t.Errorf("Invalid = %d, want 2", res.Invalid)
	}
	if res.Duplicate != 2 {
		t.Errorf("Duplicate = %d, want 2", res.Duplicate)
	}
	if valid := len(rows) - res.Invalid; valid != 3 {
		t.Errorf("valid = %d, want 3", valid)
	}
}

func TestScreenRunNoDedupKey(t *testing.T) {
	s := Screen{Required: []string{"id"}}
	rows := []records.Record{
		{"id": "x"},
		{"id": "x"}, // identical, but no key configured
	}
	res := s.Run(rows)
	if res.Duplicate != 0 {
		t.Errorf("Duplicate = %d, want 0 without a dedup key", res.Duplicate)
	}
	if len(res.Kept) != 2 {
		t.Errorf("Kept = %d rows, want 2", len(res.Kept))
	}
}

func TestScreenRunCompositeKey(t *testing.T) {
	s := Screen{DedupKey: []string{"vin", "saledate"}}
	rows := []records.Record{
		{"vin": "A", "saledate": "2024-01-01"},
		{"vin": "A", "saledate": "2024-01-02"}, // same vin, different date
		{"vin": "A", "saledate": "2024-01-01"}, // exact key repeat
	}
	res := s.Run(rows)
	if res.Duplicate != 1 {
		t.Errorf("Duplicate = %d, want 1", res.Duplicate)
	}
	if len(res.Kept) != 2 {
		t.Errorf("Kept = %d rows, want 2", len(res.Kept))
	}
}

func TestScreenRunChecksDropRows(t *testing.T) {
	s := Screen{
		Checks: []Check{
			{Field: "age", Kind: "range", Min: f(18), Max: f(120)},
			{Field: "email", Kind: "email"},
		},
	}
	rows := []records.Record{
		{"age": int64(42), "email": "ok@x.fr"},
		{"age": int64(7), "email": "ok@x.fr"},    // range violation
		{"age": int64(42), "email": "broken"},    // format violation
		{"age": nil, "email": nil},               // absent values pass checks
	}
	res := s.Run(rows)
	if res.Invalid != 2 {
		t.Errorf("Invalid = %d, want 2", res.Invalid)
	}
	if len(res.Kept) != 2 {
		t.Errorf("Kept = %d rows, want 2", len(res.Kept))
	}
}

func TestScreenRunEmpty(t *testing.T) {
	res := Screen{DedupKey: []string{"id"}}.Run(nil)
	if len(res.Kept) != 0 || res.Invalid != 0 || res.Duplicate != 0 {
		t.Errorf("empty input produced %+v", res)
	}
}
