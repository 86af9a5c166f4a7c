// Package transformer defines the row-batch transform contract shared by all
// field-level operations. Implementations operate on a batch of records and
// may drop rows (coercion policy "drop") or fail the whole batch (policy
// "strict"); they must never mutate rows they did not receive.
package transformer

import "cleanse/pkg/records"

type Transformer interface {
	Apply([]records.Record) ([]records.Record, error)
}

// Chain is an ordered list of transformers. The first error aborts the chain.
type Chain []Transformer

func (c Chain) Apply(in []records.Record) ([]records.Record, error) {
	out := in
	var err error
	for _, t := range c {
		if out, err = t.Apply(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Func adapts a plain function to the Transformer interface.
type Func func([]records.Record) ([]records.Record, error)

func (f Func) Apply(in []records.Record) ([]records.Record, error) { return f(in) }
