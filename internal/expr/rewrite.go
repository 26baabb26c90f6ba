package expr

import "fmt"

// Rewriter is called for every node before its children. Returning
// (replacement, true) substitutes replacement for the node and skips its
// children; returning (nil, false) descends into the node.
type Rewriter func(Expr) (Expr, bool)

// Rewrite returns e with fn applied top-down. Nodes whose children are
// unchanged are returned as-is, so a rewrite that matches nothing returns e
// itself and untouched subtrees stay shared.
func Rewrite(e Expr, fn Rewriter) Expr {
	if e == nil {
		return nil
	}
	if r, ok := fn(e); ok {
		return r
	}

	switch n := e.(type) {
	case *Constant, *Param, *Break:
		return e

	case *Member:
		obj := Rewrite(n.Object, fn)
		if obj == n.Object {
			return e
		}
		return &Member{Object: obj, Field: n.Field, T: n.T}

	case *Binary:
		l, r := Rewrite(n.Left, fn), Rewrite(n.Right, fn)
		if l == n.Left && r == n.Right {
			return e
		}
		return &Binary{Op: n.Op, Left: l, Right: r}

	case *Unary:
		o := Rewrite(n.Operand, fn)
		if o == n.Operand {
			return e
		}
		return &Unary{Op: n.Op, Operand: o}

	case *Call:
		args, changed := rewriteList(n.Args, fn)
		if !changed {
			return e
		}
		return &Call{Fn: n.Fn, Args: args}

	case *Conditional:
		t, a, b := Rewrite(n.Test, fn), Rewrite(n.IfTrue, fn), Rewrite(n.IfFalse, fn)
		if t == n.Test && a == n.IfTrue && b == n.IfFalse {
			return e
		}
		return &Conditional{Test: t, IfTrue: a, IfFalse: b}

	case *Block:
		exprs, changed := rewriteList(n.Exprs, fn)
		if !changed {
			return e
		}
		return &Block{Vars: n.Vars, Exprs: exprs}

	case *Lambda:
		body := Rewrite(n.Body, fn)
		if body == n.Body {
			return e
		}
		return &Lambda{Params: n.Params, Body: body}

	case *Assign:
		v := Rewrite(n.Value, fn)
		if v == n.Value {
			return e
		}
		return &Assign{Target: n.Target, Value: v}

	case *Loop:
		body := Rewrite(n.Body, fn)
		if body == n.Body {
			return e
		}
		return &Loop{Body: body, Break: n.Break}

	case *Index:
		a, i := Rewrite(n.Array, fn), Rewrite(n.Index, fn)
		if a == n.Array && i == n.Index {
			return e
		}
		return &Index{Array: a, Index: i}

	case *Len:
		a := Rewrite(n.Array, fn)
		if a == n.Array {
			return e
		}
		return &Len{Array: a}

	case *CursorOpen:
		s := Rewrite(n.Source, fn)
		if s == n.Source {
			return e
		}
		return &CursorOpen{Source: s}

	case *CursorNext:
		c := Rewrite(n.Cursor, fn)
		if c == n.Cursor {
			return e
		}
		return &CursorNext{Cursor: c}

	case *CursorCurrent:
		c := Rewrite(n.Cursor, fn)
		if c == n.Cursor {
			return e
		}
		return &CursorCurrent{Cursor: c}

	case *CursorClose:
		c := Rewrite(n.Cursor, fn)
		if c == n.Cursor {
			return e
		}
		return &CursorClose{Cursor: c}
	}

	panic(fmt.Sprintf("expr.Rewrite: unhandled node %T", e))
}

func rewriteList(in []Expr, fn Rewriter) ([]Expr, bool) {
	var out []Expr
	for i, x := range in {
		y := Rewrite(x, fn)
		if y != x && out == nil {
			out = make([]Expr, len(in))
			copy(out, in[:i])
		}
		if out != nil {
			out[i] = y
		}
	}
	if out == nil {
		return in, false
	}
	return out, true
}

// Walk visits e and its descendants depth-first. Returning false from fn
// skips the node's children.
func Walk(e Expr, fn func(Expr) bool) {
	Rewrite(e, func(n Expr) (Expr, bool) {
		if !fn(n) {
			return n, true
		}
		return nil, false
	})
}

// Substitute returns the body of l with each parameter replaced by the
// corresponding argument. It panics if the argument count does not match.
func Substitute(l *Lambda, args ...Expr) Expr {
	if len(args) != len(l.Params) {
		panic(fmt.Sprintf("expr.Substitute: lambda takes %d arguments, got %d", len(l.Params), len(args)))
	}
	if len(args) == 0 {
		return l.Body
	}
	repl := make(map[*Param]Expr, len(args))
	for i, p := range l.Params {
		repl[p] = args[i]
	}
	return Rewrite(l.Body, func(n Expr) (Expr, bool) {
		if p, ok := n.(*Param); ok {
			if r, found := repl[p]; found {
				return r, true
			}
		}
		return nil, false
	})
}

// Partial binds the leading parameters of l and returns a lambda over the
// remaining ones.
func Partial(l *Lambda, args ...Expr) *Lambda {
	if len(args) > len(l.Params) {
		panic(fmt.Sprintf("expr.Partial: lambda takes %d arguments, got %d", len(l.Params), len(args)))
	}
	bound := &Lambda{Params: l.Params[:len(args)], Body: l.Body}
	return &Lambda{Params: l.Params[len(args):], Body: Substitute(bound, args...)}
}
