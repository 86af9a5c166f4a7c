package builtin

import (
	"fmt"
	"strings"

	"github.com/ggwhite/go-masker"

	"cleanse/pkg/records"
)

// Mask replaces a string value with an irreversibly masked form. Kind "fixed"
// keeps Prefix leading and Suffix trailing runes visible and overwrites the
// middle with Placeholder; the named kinds delegate to go-masker.
type Mask struct {
	Field string
	fn    func(string) string
}

// NewMask builds a Mask for the given kind. Supported kinds: "fixed"
// (default), "credit_card", "email", "name", "mobile", "tel", "id", "url",
// "password", "address".
func NewMask(field, kind string, prefix, suffix int, placeholder string) (Mask, error) {
	if prefix < 0 || suffix < 0 {
		return Mask{}, fmt.Errorf("mask %s: prefix/suffix must not be negative", field)
	}
	if placeholder == "" {
		placeholder = "*"
	}
	m := masker.New()
	var fn func(string) string
	switch kind {
	case "", "fixed":
		fn = func(s string) string { return maskFixed(s, prefix, suffix, placeholder) }
	case "credit_card":
		fn = m.CreditCard
	case "email":
		fn = m.Email
	case "name":
		fn = m.Name
	case "mobile":
		fn = m.Mobile
	case "tel":
		fn = m.Telephone
	case "id":
		fn = m.ID
	case "url":
		fn = m.URL
	case "password":
		fn = m.Password
	case "address":
		fn = m.Address
	default:
		return Mask{}, fmt.Errorf("mask %s: unknown kind %q", field, kind)
	}
	return Mask{Field: field, fn: fn}, nil
}

func (m Mask) Apply(in []records.Record) ([]records.Record, error) {
	for _, r := range in {
		if s, ok := r[m.Field].(string); ok && s != "" {
			r[m.Field] = m.fn(s)
		}
	}
	return in, nil
}

// maskFixed masks everything but the first prefix and last suffix runes.
// Visible lengths clamp to the input length: a value shorter than
// prefix+suffix is fully masked rather than fully revealed.
func maskFixed(s string, prefix, suffix int, placeholder string) string {
	rs := []rune(s)
	if prefix+suffix >= len(rs) {
		return strings.Repeat(placeholder, len(rs))
	}
	var b strings.Builder
	b.WriteString(string(rs[:prefix]))
	b.WriteString(strings.Repeat(placeholder, len(rs)-prefix-suffix))
	b.WriteString(string(rs[len(rs)-suffix:]))
	return b.String()
}
