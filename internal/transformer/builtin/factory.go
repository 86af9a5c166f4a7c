package builtin

import (
	"fmt"

	"cleanse/internal/config"
	"cleanse/internal/transformer"
)

// New compiles one rule document entry into a Transformer. Unknown ops and
// malformed parameters come back as errors here, at registry build time.
func New(rule config.FieldRule, reject func(RejectedRow)) (transformer.Transformer, error) {
	p := rule.Params
	switch rule.Op {
	case "normalize":
		return Normalize{
			Field:        rule.Field,
			Lower:        p.Bool("lower", false),
			Upper:        p.Bool("upper", false),
			StripAccents: p.Bool("strip_accents", false),
		}, nil

	case "coerce":
		typ := p.String("type", "")
		switch typ {
		case "int", "float", "bool", "date":
		default:
			return nil, fmt.Errorf("coerce %s: unknown type %q", rule.Field, typ)
		}
		policy := p.String("policy", PolicyDrop)
		switch policy {
		case PolicyDrop, PolicyNull, PolicyStrict:
		default:
			return nil, fmt.Errorf("coerce %s: unknown policy %q", rule.Field, policy)
		}
		return Coerce{
			Field:   rule.Field,
			Type:    typ,
			Policy:  policy,
			Layouts: p.StringSlice("layouts"),
			Reject:  reject,
		}, nil

	case "mask":
		return NewMask(
			rule.Field,
			p.String("kind", "fixed"),
			p.Int("prefix", 0),
			p.Int("suffix", 4),
			p.String("placeholder", "*"),
		)

	case "clamp":
		mn, hasMin := p.Float("min", 0)
		mx, hasMax := p.Float("max", 0)
		if !hasMin && !hasMax {
			return nil, fmt.Errorf("clamp %s: at least one of min/max required", rule.Field)
		}
		if hasMin && hasMax && mn > mx {
			return nil, fmt.Errorf("clamp %s: min %v exceeds max %v", rule.Field, mn, mx)
		}
		return Clamp{Field: rule.Field, Min: mn, Max: mx, HasMin: hasMin, HasMax: hasMax}, nil

	case "fill":
		return Fill{
			Field: rule.Field,
			Value: p.String("value", ""),
			Skip:  p.StringSlice("skip"),
		}, nil

	case "map":
		vals := p.StringMap("values")
		if len(vals) == 0 {
			return nil, fmt.Errorf("map %s: values table must not be empty", rule.Field)
		}
		return MapValues{
			Field:   rule.Field,
			Into:    p.String("into", ""),
			Default: p.String("default", ""),
			Values:  vals,
		}, nil
	}
	return nil, fmt.Errorf("unknown op %q", rule.Op)
}
