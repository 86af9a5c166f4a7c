// Package config defines the canonical, YAML-serializable rule document for
// the cleanse engine. It is intentionally small and explicit so that rule
// documents can be loaded from disk (or other sources) and passed through the
// program without additional glue code.
//
// Design goals:
//
//  1. Stability: changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: field names in Go mirror the YAML structure used in rule
//     files under configs/*.yaml.
//  3. Load-time strictness: the document is linted once (see validate.go)
//     so a broken configuration never silently degrades to the default path
//     for tables it was meant to govern.
//
// Example (trimmed):
//
//	default:
//	  rules:
//	    - field: "*"
//	      op: normalize
//	  fill_value: "UNKNOWN"
//	tables:
//	  clients:
//	    aliases: [finances]
//	    rules:
//	      - field: numero_carte
//	        op: mask
//	        params: { kind: fixed, prefix: 0, suffix: 4 }
//	    dedup_key: [email]
//	    required: [email]
//	    enrichment: financial
//	quality:
//	  weights: { invalid: 40, duplicate: 30, nulls: 30 }
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the top-level rule document decoded from a YAML file. It maps
// logical table names to transform specifications and carries one mandatory
// default entry used when no match exists.
type Document struct {
	// Default is the fallback entry applied to logical names with no
	// specific entry. It must not declare an enrichment.
	Default TableSpec `yaml:"default"`

	// Tables maps logical table name to its specification. Lookup is
	// case-insensitive and also honors each entry's declared aliases.
	Tables map[string]TableSpec `yaml:"tables"`

	// Quality carries the configuration-exposed scoring parameters.
	Quality Quality `yaml:"quality"`
}

// TableSpec describes how one logical table (or the default path) is cleaned.
type TableSpec struct {
	// Aliases are alternative logical names resolving to this entry
	// (e.g. "finances" -> "clients").
	Aliases []string `yaml:"aliases,omitempty"`

	// Rules is the ordered list of field transforms. Each rule has an op
	// identifier and an options bag interpreted by the op implementation.
	Rules []FieldRule `yaml:"rules"`

	// DedupKey lists the columns whose combined value must be unique across
	// surviving rows. The single entry "*" keys over every column (exact
	// whole-row duplicates). Empty disables deduplication for this table.
	DedupKey []string `yaml:"dedup_key,omitempty"`

	// Required lists columns that must be present and non-empty; rows
	// violating this are dropped and counted invalid.
	Required []string `yaml:"required,omitempty"`

	// Checks are row-level range/format constraints evaluated alongside
	// the required-field check.
	Checks []FieldCheck `yaml:"checks,omitempty"`

	// Enrichment names the derived-column calculator for this table.
	// Only specific tables may set it; the default entry must not.
	Enrichment string `yaml:"enrichment,omitempty"`

	// FillValue replaces missing values in text columns after transforms.
	// Empty keeps nulls as nulls.
	FillValue string `yaml:"fill_value,omitempty"`

	// SensitivePatterns are column-name fragments (case-insensitive) that
	// trigger an anonymization warning when seen on the default path.
	SensitivePatterns []string `yaml:"sensitive_patterns,omitempty"`
}

// FieldRule is a single field-level transform step.
type FieldRule struct {
	// Field is the target column. The ops "normalize" and "fill" accept
	// "*" to apply to every column.
	Field string `yaml:"field"`

	// Op selects the transform implementation: "coerce", "normalize",
	// "mask", "clamp" or "fill". Unknown identifiers are rejected at load.
	Op string `yaml:"op"`

	// Params is a free-form map interpreted by the selected op.
	Params Options `yaml:"params,omitempty"`
}

// FieldCheck is a declarative validation constraint on one column.
type FieldCheck struct {
	// Field is the column under check.
	Field string `yaml:"field"`

	// Kind selects the constraint: "range" (numeric min/max), "pattern"
	// (regular expression) or "email".
	Kind string `yaml:"kind"`

	// Min/Max bound numeric values for kind "range". Either side may be
	// omitted.
	Min *float64 `yaml:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty"`

	// Pattern is the regular expression for kind "pattern".
	Pattern string `yaml:"pattern,omitempty"`
}

// Quality groups the scoring parameters exposed to configuration so that
// downstream consumers can recompute or audit the composite score.
type Quality struct {
	Weights Weights `yaml:"weights"`
}

// Weights are the relative penalty weights of the composite quality score.
// Zero values fall back to the engine defaults; negative values are rejected
// by the linter.
type Weights struct {
	Invalid   float64 `yaml:"invalid"`
	Duplicate float64 `yaml:"duplicate"`
	Nulls     float64 `yaml:"nulls"`
}

// Load reads and parses a YAML rule document from path.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML rule document from raw bytes.
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("config: parse: %w", err)
	}
	return doc, nil
}

// Options is a small helper to fetch typed values from arbitrary YAML maps
// without introducing extra decoding glue per op. It performs only minimal
// type coercion and returns provided defaults when a key is absent or of an
// unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. YAML numbers decode as int or
// float64 depending on their spelling, so both are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return def
}

// Float returns the float64 value for key along with whether it was present,
// accepting int spellings. def is returned when absent or mistyped.
func (o Options) Float(key string, def float64) (float64, bool) {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		}
	}
	return def, false
}

// StringSlice returns a []string for key when the value is a sequence of
// strings. Returns nil when the key is missing or of another shape.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// StringMap returns a map[string]string for key when the value is a mapping
// whose values are strings. Non-string values are ignored.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		var m map[string]any
		switch mm := v.(type) {
		case map[string]any:
			m = mm
		case Options:
			m = mm
		}
		for k, vv := range m {
			if s, ok := vv.(string); ok {
				res[k] = s
			}
		}
	}
	return res
}
