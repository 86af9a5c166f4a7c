// Package builtin contains the field-level transform operations driven by the
// rule document: normalize, coerce, mask, clamp, fill and map. Each op is a small
// struct built by the factory in this package; the rule registry validates op
// identifiers and parameters once at load time so Apply never sees an
// unknown configuration.
package builtin

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"cleanse/pkg/records"
)

// nbspace is U+00A0 NO-BREAK SPACE, frequent in source extracts pasted from
// spreadsheets.
const nbspace = "\u00a0"

// Normalize cleans string values: NBSP replacement, edge-whitespace trim and
// optional case folding / accent stripping. Field "*" (or empty) applies to
// every string cell in the record.
type Normalize struct {
	Field        string
	Lower        bool
	Upper        bool
	StripAccents bool
}

// Apply mutates records in place and reuses the input slice.
func (n Normalize) Apply(in []records.Record) ([]records.Record, error) {
	all := n.Field == "" || n.Field == "*"
	for _, r := range in {
		if all {
			for k, v := range r {
				if s, ok := v.(string); ok {
					r[k] = n.clean(s)
				}
			}
			continue
		}
		if s, ok := r[n.Field].(string); ok {
			r[n.Field] = n.clean(s)
		}
	}
	return in, nil
}

func (n Normalize) clean(s string) string {
	if strings.Contains(s, nbspace) {
		s = strings.ReplaceAll(s, nbspace, " ")
	}
	if HasEdgeSpace(s) {
		s = strings.TrimSpace(s)
	}
	if n.StripAccents {
		s = StripAccents(s)
	}
	if n.Lower {
		s = strings.ToLower(s)
	} else if n.Upper {
		s = strings.ToUpper(s)
	}
	return s
}

// HasEdgeSpace reports whether s starts or ends with ASCII whitespace. Cheap
// pre-check to skip TrimSpace on the hot path.
func HasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	isSpace := func(b byte) bool {
		return b == ' ' || b == '\t' || b == '\n' || b == '\r'
	}
	return isSpace(s[0]) || isSpace(s[len(s)-1])
}

// accentStripper decomposes to NFD, removes combining marks and recomposes.
var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// StripAccents removes diacritical marks ("dépenses" -> "depenses"). On a
// transform error the input is returned unchanged.
func StripAccents(s string) string {
	out, _, err := transform.String(accentStripper, s)
	if err != nil {
		return s
	}
	return out
}

// CanonicalName normalizes a column name to the destination convention:
// accents stripped, lowercased, runs of spaces/punctuation collapsed to a
// single underscore ("Revenu Annuel (€)" -> "revenu_annuel").
func CanonicalName(name string) string {
	s := strings.ToLower(StripAccents(strings.TrimSpace(name)))
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := true // swallow leading separators
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimRight(b.String(), "_")
}
