// Package config provides the rule document model and helpers for the
// cleanse engine.
//
// This file adds a lightweight linter/validator for Document values. It
// performs static checks over a decoded Document and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests. The rule
// registry treats error-severity issues as fatal at load time.
package config

import (
	"fmt"
	"regexp"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Document.
//
// Path is a dotted path into the document (e.g. "default.enrichment",
// "tables.clients.rules[1].op"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// knownOps are the field-transform identifiers the builtin package implements.
// Anything else is rejected here, at load time, never during row processing.
var knownOps = map[string]struct{}{
	"coerce":    {},
	"normalize": {},
	"mask":      {},
	"clamp":     {},
	"fill":      {},
	"map":       {},
}

// knownCheckKinds are the validation constraint kinds.
var knownCheckKinds = map[string]struct{}{
	"range":   {},
	"pattern": {},
	"email":   {},
}

// ValidateDocument performs static validation / linting of a rule document.
//
// It does not mutate the document. Callers may decide whether to treat
// warnings as fatal or not; the rule registry only blocks on errors.
func ValidateDocument(doc Document) []Issue {
	var issues []Issue

	// The default entry is the safety net for unknown tables; it has to
	// exist and must never carry table-specific enrichment.
	if emptySpec(doc.Default) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "default",
			Message:  "default entry is required; unknown tables would have no transformation path",
		})
	}
	if doc.Default.Enrichment != "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "default.enrichment",
			Message:  "the default path must not declare an enrichment; derived columns are a privilege of specifically-modeled tables",
		})
	}
	if len(doc.Default.Aliases) > 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "default.aliases",
			Message:  "aliases on the default entry are ignored",
		})
	}
	issues = append(issues, validateSpec("default", doc.Default)...)

	// Alias collisions would make resolution order-dependent; reject them.
	aliasOwner := map[string]string{}
	for name, spec := range doc.Tables {
		issues = append(issues, validateSpec("tables."+name, spec)...)
		for _, a := range spec.Aliases {
			la := strings.ToLower(strings.TrimSpace(a))
			if la == "" {
				continue
			}
			if owner, dup := aliasOwner[la]; dup && owner != name {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     fmt.Sprintf("tables.%s.aliases", name),
					Message:  fmt.Sprintf("alias %q already claimed by table %q", a, owner),
				})
				continue
			}
			aliasOwner[la] = name
		}
	}

	issues = append(issues, validateWeights(doc.Quality.Weights)...)
	return issues
}

// validateSpec checks one table entry (or the default entry).
func validateSpec(path string, spec TableSpec) []Issue {
	var issues []Issue

	if len(spec.Rules) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     path + ".rules",
			Message:  "no rules configured; rows pass through untransformed",
		})
	}

	if len(spec.DedupKey) > 1 {
		for _, k := range spec.DedupKey {
			if k == "*" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     path + ".dedup_key",
					Message:  `"*" keys the whole row and must be the only entry`,
				})
				break
			}
		}
	}

	for i, r := range spec.Rules {
		rp := fmt.Sprintf("%s.rules[%d]", path, i)
		op := strings.TrimSpace(r.Op)
		if op == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     rp + ".op",
				Message:  "op must not be empty",
			})
			continue
		}
		if _, ok := knownOps[op]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     rp + ".op",
				Message:  fmt.Sprintf("unknown op %q", r.Op),
			})
			continue
		}
		// Wildcard fields only make sense for whole-row ops.
		if (r.Field == "" || r.Field == "*") && op != "normalize" && op != "fill" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     rp + ".field",
				Message:  fmt.Sprintf("op %q requires a concrete field", op),
			})
		}
		issues = append(issues, validateRuleParams(rp, op, r.Params)...)
	}

	for i, c := range spec.Checks {
		cp := fmt.Sprintf("%s.checks[%d]", path, i)
		if strings.TrimSpace(c.Field) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     cp + ".field",
				Message:  "check field must not be empty",
			})
		}
		if _, ok := knownCheckKinds[c.Kind]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     cp + ".kind",
				Message:  fmt.Sprintf("unknown check kind %q", c.Kind),
			})
			continue
		}
		switch c.Kind {
		case "range":
			if c.Min == nil && c.Max == nil {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     cp,
					Message:  "range check with neither min nor max has no effect",
				})
			}
			if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     cp,
					Message:  fmt.Sprintf("range min %v exceeds max %v", *c.Min, *c.Max),
				})
			}
		case "pattern":
			if _, err := regexp.Compile(c.Pattern); err != nil {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     cp + ".pattern",
					Message:  fmt.Sprintf("invalid pattern: %v", err),
				})
			}
		}
	}

	return issues
}

// validateRuleParams applies op-specific structural checks. The builtin
// constructors repeat these checks; linting them here gives full-document
// reporting instead of failing on the first bad rule.
func validateRuleParams(path, op string, p Options) []Issue {
	var issues []Issue
	switch op {
	case "coerce":
		typ := p.String("type", "")
		switch typ {
		case "int", "float", "bool", "date":
		case "":
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".params.type",
				Message:  `coerce requires a type ("int", "float", "bool" or "date")`,
			})
		default:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".params.type",
				Message:  fmt.Sprintf("unknown coerce type %q", typ),
			})
		}
		switch pol := p.String("policy", "drop"); pol {
		case "drop", "null", "strict":
		default:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".params.policy",
				Message:  fmt.Sprintf(`unknown coerce policy %q (want "drop", "null" or "strict")`, pol),
			})
		}
	case "clamp":
		mn, hasMin := p.Float("min", 0)
		mx, hasMax := p.Float("max", 0)
		if !hasMin && !hasMax {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".params",
				Message:  "clamp requires at least one of min/max",
			})
		}
		if hasMin && hasMax && mn > mx {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".params",
				Message:  fmt.Sprintf("clamp min %v exceeds max %v", mn, mx),
			})
		}
	case "mask":
		if p.Int("prefix", 0) < 0 || p.Int("suffix", 0) < 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".params",
				Message:  "mask prefix/suffix must not be negative",
			})
		}
	case "map":
		if len(p.StringMap("values")) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".params.values",
				Message:  "map requires a non-empty values table",
			})
		}
	}
	return issues
}

// validateWeights rejects negative scoring weights. Zeros are allowed in the
// document and fall back to defaults at registry build time.
func validateWeights(w Weights) []Issue {
	var issues []Issue
	check := func(name string, v float64) {
		if v < 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "quality.weights." + name,
				Message:  "weight must not be negative",
			})
		}
	}
	check("invalid", w.Invalid)
	check("duplicate", w.Duplicate)
	check("nulls", w.Nulls)
	return issues
}

// emptySpec reports whether a TableSpec is entirely zero-valued, which for
// the default entry means it was missing from the document.
func emptySpec(s TableSpec) bool {
	return len(s.Rules) == 0 && len(s.DedupKey) == 0 && len(s.Required) == 0 &&
		len(s.Checks) == 0 && len(s.Aliases) == 0 && len(s.SensitivePatterns) == 0 &&
		s.Enrichment == "" && s.FillValue == ""
}
