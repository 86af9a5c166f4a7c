// Package rules compiles a config.Document into a resolvable registry of
// per-table transform specifications. All configuration problems surface
// here, once, as a *ConfigError; row processing never encounters an unknown
// op, calculator or constraint.
package rules

import (
	"fmt"
	"regexp"
	"strings"

	"cleanse/internal/config"
	"cleanse/internal/enrich"
	"cleanse/internal/quality"
	"cleanse/internal/transformer"
	"cleanse/internal/transformer/builtin"
)

// Path tells which rule entry served a resolution.
type Path string

const (
	Specific Path = quality.PathSpecific
	Default  Path = quality.PathDefault
)

// ConfigError aggregates every error-severity issue found while building the
// registry. It is terminal: a run against a document that fails to build must
// not start.
type ConfigError struct {
	Issues []config.Issue
}

func (e *ConfigError) Error() string {
	if len(e.Issues) == 1 {
		return "rules: " + e.Issues[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "rules: %d configuration errors:", len(e.Issues))
	for _, is := range e.Issues {
		b.WriteString("\n  ")
		b.WriteString(is.Error())
	}
	return b.String()
}

// TransformSpec is one compiled table entry.
type TransformSpec struct {
	// Name is the canonical table name ("" for the default entry).
	Name string
	// Rules are the ordered field transforms, validated at build time.
	Rules []config.FieldRule
	// DedupKey / Required / Checks feed the quality screening pass.
	DedupKey []string
	Required []string
	Checks   []quality.Check
	// Enrichment names the derived-column calculator, or "" for none.
	Enrichment string
	// FillValue replaces remaining nil/empty text cells after transforms.
	FillValue string
	// SensitivePatterns flag column names that look like unmasked personal
	// data on the default path.
	SensitivePatterns []string
}

// Compile builds the transformer chain for one run. The reject sink receives
// rows dropped under the coercion "drop" policy; each run passes its own so
// counts stay per-run. dateFields are extra columns coerced to dates ahead of
// the rules (the engine's name-heuristic detection on the default path). A
// FillValue appends a trailing whole-row fill that skips coerced (typed)
// columns, dateFields included.
func (s TransformSpec) Compile(reject func(builtin.RejectedRow), dateFields ...string) (transformer.Chain, error) {
	chain := make(transformer.Chain, 0, len(s.Rules)+len(dateFields)+1)
	typed := append([]string(nil), dateFields...)
	for _, f := range dateFields {
		chain = append(chain, builtin.Coerce{Field: f, Type: "date", Policy: builtin.PolicyNull})
	}
	for _, r := range s.Rules {
		t, err := builtin.New(r, reject)
		if err != nil {
			return nil, err
		}
		if r.Op == "coerce" {
			typed = append(typed, r.Field)
		}
		chain = append(chain, t)
	}
	if s.FillValue != "" {
		chain = append(chain, builtin.Fill{Field: "*", Value: s.FillValue, Skip: typed})
	}
	return chain, nil
}

// OutputColumns lists the columns the chain introduces beyond the input
// layout: map rules writing into a separate target.
func (s TransformSpec) OutputColumns() []string {
	var cols []string
	for _, r := range s.Rules {
		if r.Op == "map" {
			if into := r.Params.String("into", ""); into != "" {
				cols = append(cols, into)
			}
		}
	}
	return cols
}

// Registry resolves logical table names to compiled transform specs.
type Registry struct {
	byName  map[string]TransformSpec // lowercase name and alias -> spec
	deflt   TransformSpec
	weights quality.Weights
}

// New validates and compiles doc. Any error-severity finding, including rule
// parameters the lints cannot see, comes back as a single *ConfigError.
func New(doc config.Document) (*Registry, error) {
	var errs []config.Issue
	for _, is := range config.ValidateDocument(doc) {
		if is.Severity == config.SeverityError {
			errs = append(errs, is)
		}
	}

	reg := &Registry{
		byName:  make(map[string]TransformSpec, len(doc.Tables)*2),
		weights: quality.Weights(doc.Quality.Weights),
	}

	build := func(path, name string, ts config.TableSpec) TransformSpec {
		spec := TransformSpec{
			Name:              name,
			Rules:             ts.Rules,
			DedupKey:          ts.DedupKey,
			Required:          ts.Required,
			Enrichment:        ts.Enrichment,
			FillValue:         ts.FillValue,
			SensitivePatterns: ts.SensitivePatterns,
		}
		if _, err := spec.Compile(nil); err != nil {
			errs = append(errs, config.Issue{
				Severity: config.SeverityError,
				Path:     path + ".rules",
				Message:  err.Error(),
			})
		}
		if ts.Enrichment != "" {
			if _, ok := enrich.Lookup(ts.Enrichment); !ok {
				errs = append(errs, config.Issue{
					Severity: config.SeverityError,
					Path:     path + ".enrichment",
					Message: fmt.Sprintf("unknown calculator %q (registered: %v)",
						ts.Enrichment, enrich.IDs()),
				})
			}
		}
		for _, c := range ts.Checks {
			check := quality.Check{Field: c.Field, Kind: c.Kind, Min: c.Min, Max: c.Max}
			if c.Kind == "pattern" {
				re, err := regexp.Compile(c.Pattern)
				if err != nil {
					// Already reported by the linter; skip the check.
					continue
				}
				check.Pattern = re
			}
			spec.Checks = append(spec.Checks, check)
		}
		return spec
	}

	reg.deflt = build("default", "", doc.Default)
	for name, ts := range doc.Tables {
		spec := build("tables."+name, name, ts)
		reg.byName[strings.ToLower(name)] = spec
		for _, a := range ts.Aliases {
			la := strings.ToLower(strings.TrimSpace(a))
			if la != "" {
				reg.byName[la] = spec
			}
		}
	}

	if len(errs) > 0 {
		return nil, &ConfigError{Issues: errs}
	}
	return reg, nil
}

// Resolve maps a logical table name to its spec. Matching is
// case-insensitive over canonical names and aliases; anything else gets the
// default spec. Absence is not an error.
func (r *Registry) Resolve(logical string) (TransformSpec, Path) {
	if spec, ok := r.byName[strings.ToLower(strings.TrimSpace(logical))]; ok {
		return spec, Specific
	}
	return r.deflt, Default
}

// Weights returns the configured scoring weights; zero values fall back to
// the defaults inside the scorer.
func (r *Registry) Weights() quality.Weights {
	return r.weights
}
