package equiv

import (
	"fmt"
	"math"

	"github.com/roach88/fuseq/internal/expr"
	"github.com/roach88/fuseq/internal/plan"
)

// Comparer holds the state of one comparison. A Comparer is not safe for
// concurrent use and should not be reused across unrelated comparisons;
// use Equal, EqualPlans or Key.Equal for one-shot checks.
type Comparer struct {
	left, right [][]*expr.Param

	labels  map[*expr.Label]*expr.Label // left to right
	rlabels map[*expr.Label]*expr.Label // right to left
	gotos   []labelPair

	// conflict is set when a label pair contradicts an earlier one.
	conflict bool
}

type labelPair struct{ left, right *expr.Label }

// NewComparer returns a comparer with empty scopes.
func NewComparer() *Comparer {
	return &Comparer{
		labels:  make(map[*expr.Label]*expr.Label),
		rlabels: make(map[*expr.Label]*expr.Label),
	}
}

// Equal reports whether a and b are alpha-equivalent.
func Equal(a, b expr.Expr) bool {
	c := NewComparer()
	return c.Expr(a, b) && c.ValidateLabels()
}

// EqualPlans reports whether two plans are alpha-equivalent.
func EqualPlans(a, b plan.Node) bool {
	c := NewComparer()
	return c.Plan(a, b) && c.ValidateLabels()
}

// Bind opens a scope binding left[i] to right[i]. It reports false if the
// lists differ in length or in the type at any position; the scope is
// opened regardless and must be closed with Unbind.
func (c *Comparer) Bind(left, right []*expr.Param) bool {
	c.left = append(c.left, left)
	c.right = append(c.right, right)
	if len(left) != len(right) {
		return false
	}
	for i := range left {
		if left[i].T != right[i].T {
			return false
		}
	}
	return true
}

// Unbind closes the innermost scope.
func (c *Comparer) Unbind() {
	c.left = c.left[:len(c.left)-1]
	c.right = c.right[:len(c.right)-1]
}

// ValidateLabels checks every break pair recorded during comparison against
// the label map. A break whose loop was never compared must target the
// same label on both sides.
func (c *Comparer) ValidateLabels() bool {
	if c.conflict {
		return false
	}
	for _, g := range c.gotos {
		r, ok := c.labels[g.left]
		l, rok := c.rlabels[g.right]
		switch {
		case ok && rok:
			if r != g.right || l != g.left {
				return false
			}
		case !ok && !rok:
			if g.left != g.right {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (c *Comparer) mapLabel(l, r *expr.Label) {
	if l == nil || r == nil {
		if l != r {
			c.conflict = true
		}
		return
	}
	if prev, ok := c.labels[l]; ok && prev != r {
		c.conflict = true
		return
	}
	if prev, ok := c.rlabels[r]; ok && prev != l {
		c.conflict = true
		return
	}
	c.labels[l] = r
	c.rlabels[r] = l
}

// resolve finds p on a scope stack. depth counts scopes outward from the
// innermost one.
func resolve(scopes [][]*expr.Param, p *expr.Param) (depth, index int, ok bool) {
	for d := len(scopes) - 1; d >= 0; d-- {
		for i, q := range scopes[d] {
			if q == p {
				return len(scopes) - 1 - d, i, true
			}
		}
	}
	return 0, 0, false
}

func (c *Comparer) param(a, b *expr.Param) bool {
	if a.T != b.T {
		return false
	}
	ad, ai, aok := resolve(c.left, a)
	bd, bi, bok := resolve(c.right, b)
	if aok != bok {
		return false
	}
	if !aok {
		return a == b
	}
	return ad == bd && ai == bi
}

// Plan compares two plans node by node. Labels are not validated; call
// ValidateLabels afterwards.
func (c *Comparer) Plan(a, b plan.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.ElemType() != b.ElemType() {
		return false
	}
	switch x := a.(type) {
	case *plan.Source:
		y, ok := b.(*plan.Source)
		return ok && c.Expr(x.Ref, y.Ref)
	case *plan.Where:
		y, ok := b.(*plan.Where)
		return ok && c.Plan(x.Source, y.Source) && c.Expr(x.Predicate, y.Predicate)
	case *plan.Select:
		y, ok := b.(*plan.Select)
		return ok && c.Plan(x.Source, y.Source) && c.Expr(x.Selector, y.Selector)
	case *plan.SelectMany:
		y, ok := b.(*plan.SelectMany)
		if !ok || !c.Plan(x.Source, y.Source) || !c.Expr(x.Selector, y.Selector) {
			return false
		}
		if x.Projection == nil || y.Projection == nil {
			return x.Projection == nil && y.Projection == nil
		}
		return c.Expr(x.Projection, y.Projection)
	case *plan.Aggregate:
		y, ok := b.(*plan.Aggregate)
		return ok && c.Plan(x.Source, y.Source) && c.Expr(x.Seed, y.Seed) && c.Expr(x.Func, y.Func)
	}
	panic(fmt.Sprintf("equiv: unhandled plan node %T", a))
}

// Expr compares two expressions. Labels are not validated; call
// ValidateLabels afterwards.
func (c *Comparer) Expr(a, b expr.Expr) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Type() != b.Type() {
		return false
	}

	switch x := a.(type) {
	case *expr.Constant:
		y, ok := b.(*expr.Constant)
		return ok && sameValue(x.Value, y.Value)

	case *expr.Param:
		y, ok := b.(*expr.Param)
		return ok && c.param(x, y)

	case *expr.Member:
		y, ok := b.(*expr.Member)
		return ok && expr.NormalizeField(x.Field) == expr.NormalizeField(y.Field) && c.Expr(x.Object, y.Object)

	case *expr.Binary:
		y, ok := b.(*expr.Binary)
		return ok && x.Op == y.Op && c.Expr(x.Left, y.Left) && c.Expr(x.Right, y.Right)

	case *expr.Unary:
		y, ok := b.(*expr.Unary)
		return ok && x.Op == y.Op && c.Expr(x.Operand, y.Operand)

	case *expr.Call:
		y, ok := b.(*expr.Call)
		return ok && x.Fn == y.Fn && c.list(x.Args, y.Args)

	case *expr.Conditional:
		y, ok := b.(*expr.Conditional)
		return ok && c.Expr(x.Test, y.Test) && c.Expr(x.IfTrue, y.IfTrue) && c.Expr(x.IfFalse, y.IfFalse)

	case *expr.Block:
		y, ok := b.(*expr.Block)
		if !ok {
			return false
		}
		bound := c.Bind(x.Vars, y.Vars)
		defer c.Unbind()
		return bound && c.list(x.Exprs, y.Exprs)

	case *expr.Lambda:
		y, ok := b.(*expr.Lambda)
		if !ok {
			return false
		}
		bound := c.Bind(x.Params, y.Params)
		defer c.Unbind()
		return bound && c.Expr(x.Body, y.Body)

	case *expr.Assign:
		y, ok := b.(*expr.Assign)
		return ok && c.param(x.Target, y.Target) && c.Expr(x.Value, y.Value)

	case *expr.Loop:
		y, ok := b.(*expr.Loop)
		if !ok {
			return false
		}
		c.mapLabel(x.Break, y.Break)
		return c.Expr(x.Body, y.Body)

	case *expr.Break:
		y, ok := b.(*expr.Break)
		if !ok {
			return false
		}
		c.gotos = append(c.gotos, labelPair{x.Target, y.Target})
		return true

	case *expr.Index:
		y, ok := b.(*expr.Index)
		return ok && c.Expr(x.Array, y.Array) && c.Expr(x.Index, y.Index)

	case *expr.Len:
		y, ok := b.(*expr.Len)
		return ok && c.Expr(x.Array, y.Array)

	case *expr.CursorOpen:
		y, ok := b.(*expr.CursorOpen)
		return ok && c.Expr(x.Source, y.Source)

	case *expr.CursorNext:
		y, ok := b.(*expr.CursorNext)
		return ok && c.Expr(x.Cursor, y.Cursor)

	case *expr.CursorCurrent:
		y, ok := b.(*expr.CursorCurrent)
		return ok && c.Expr(x.Cursor, y.Cursor)

	case *expr.CursorClose:
		y, ok := b.(*expr.CursorClose)
		return ok && c.Expr(x.Cursor, y.Cursor)
	}

	panic(fmt.Sprintf("equiv: unhandled expression %T", a))
}

func (c *Comparer) list(a, b []expr.Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !c.Expr(a[i], b[i]) {
			return false
		}
	}
	return true
}

// sameValue compares constant values. Scalars compare by value; arrays,
// environments and sequences by identity. Floats compare by bit pattern, as
// the hasher writes them: -0.0 differs from 0.0 and a NaN equals itself.
func sameValue(a, b any) bool {
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		return ok && math.Float64bits(x) == math.Float64bits(y)
	case int64, bool, string:
		return a == b
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		return len(x) == 0 || &x[0] == &y[0]
	case *expr.Env:
		y, ok := b.(*expr.Env)
		return ok && x == y
	case *expr.Sequence:
		y, ok := b.(*expr.Sequence)
		return ok && x == y
	case nil:
		return b == nil
	}
	return false
}
