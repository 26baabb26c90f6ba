package testutil

import (
	"fmt"

	"github.com/roach88/fuseq/internal/backend"
	"github.com/roach88/fuseq/internal/expr"
	"github.com/roach88/fuseq/internal/plan"
)

// Reference evaluates a plan one operator at a time, materializing every
// intermediate sequence as a slice. It shares only the scalar backend with
// the fused path, so the two can be compared.
func Reference(agg *plan.Aggregate) (any, error) {
	elems, err := Materialize(agg.Source)
	if err != nil {
		return nil, err
	}
	acc, err := eval(agg.Seed)
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	fn, err := backend.Compile(agg.Func.Body, agg.Func.Params)
	if err != nil {
		return nil, err
	}
	for _, e := range elems {
		if acc, err = fn.Call2(acc, e); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// Materialize evaluates a non-terminal plan to the slice of its elements.
func Materialize(n plan.Node) ([]any, error) {
	switch node := n.(type) {
	case *plan.Source:
		v, err := eval(node.Ref)
		if err != nil {
			return nil, err
		}
		return collect(v)

	case *plan.Where:
		in, err := Materialize(node.Source)
		if err != nil {
			return nil, err
		}
		pred, err := backend.Compile(node.Predicate.Body, node.Predicate.Params)
		if err != nil {
			return nil, err
		}
		var out []any
		for _, e := range in {
			keep, err := pred.Call1(e)
			if err != nil {
				return nil, err
			}
			if keep.(bool) {
				out = append(out, e)
			}
		}
		return out, nil

	case *plan.Select:
		in, err := Materialize(node.Source)
		if err != nil {
			return nil, err
		}
		sel, err := backend.Compile(node.Selector.Body, node.Selector.Params)
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(in))
		for _, e := range in {
			v, err := sel.Call1(e)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil

	case *plan.SelectMany:
		in, err := Materialize(node.Source)
		if err != nil {
			return nil, err
		}
		sel, err := backend.Compile(node.Selector.Body, node.Selector.Params)
		if err != nil {
			return nil, err
		}
		var proj *backend.Callable
		if node.Projection != nil {
			if proj, err = backend.Compile(node.Projection.Body, node.Projection.Params); err != nil {
				return nil, err
			}
		}
		var out []any
		for _, e := range in {
			v, err := sel.Call1(e)
			if err != nil {
				return nil, err
			}
			inner, err := collect(v)
			if err != nil {
				return nil, err
			}
			for _, x := range inner {
				if proj != nil {
					if x, err = proj.Call2(e, x); err != nil {
						return nil, err
					}
				}
				out = append(out, x)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("reference: cannot materialize %T", n)
}

func eval(e expr.Expr) (any, error) {
	fn, err := backend.Compile(e, nil)
	if err != nil {
		return nil, err
	}
	return fn.Call0()
}

func collect(v any) ([]any, error) {
	switch x := v.(type) {
	case []any:
		return x, nil
	case *expr.Sequence:
		var out []any
		for e := range x.All() {
			out = append(out, e)
		}
		return out, nil
	}
	return nil, fmt.Errorf("reference: %T is not a sequence", v)
}
