package fusion

import "github.com/roach88/fuseq/internal/expr"

// Aggregate folds e into a single value and returns the finished code.
//
// The generated block declares an accumulator, assigns seed to it, runs the
// fused loop (see AggregateRaw) with a continuation that assigns
// fn(acc, elem) back to the accumulator, and evaluates to the accumulator.
// fn is a two-parameter lambda (acc, elem).
func Aggregate(e Enumerable, seed expr.Expr, fn *expr.Lambda) expr.Expr {
	acc := expr.NewParam("acc", seed.Type())
	loop := AggregateRaw(e, func(elem *expr.Param) expr.Expr {
		return expr.Set(acc, expr.Substitute(fn, acc, elem))
	})
	return &expr.Block{
		Vars:  []*expr.Param{acc},
		Exprs: []expr.Expr{expr.Set(acc, seed), loop, acc},
	}
}

// AggregateRaw emits the loop that runs k once per element of e.
//
// For Linear:
//
//	initialize(loop { if hasNext { moveNext(k) } else { break } })
//
// For Nested the base producer is looped over as if it were Linear and, at
// each of its elements, the loop for GetNested(elem) is spliced in with the
// same k. Recursing until every enumerable bottoms out at Linear turns plan
// nesting depth into loop nesting depth, with no flattened sequence ever
// built.
func AggregateRaw(e Enumerable, k Continuation) expr.Expr {
	switch n := e.(type) {
	case Linear:
		brk := &expr.Label{Name: "done"}
		p := n.Producer
		return p.Initialize(&expr.Loop{
			Body:  expr.If(p.HasNext(), p.MoveNext(k), &expr.Break{Target: brk}),
			Break: brk,
		})
	case Nested:
		return AggregateRaw(Linear{Producer: n.BaseProducer}, func(elem *expr.Param) expr.Expr {
			return AggregateRaw(n.GetNested(elem), k)
		})
	}
	panic(unknownEnumerable(e))
}
