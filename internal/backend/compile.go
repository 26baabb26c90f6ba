package backend

import (
	"fmt"

	"github.com/roach88/fuseq/internal/expr"
)

// evalFn is one compiled node. Statement nodes return nil.
type evalFn func(f *frame) any

// frame is the state of one invocation: a slot per variable, the cursors
// still open, and the label of a pending break.
type frame struct {
	slots   []any
	cursors []*expr.Cursor
	brk     *expr.Label
}

// release drops a closed cursor from the frame. Cursors close in reverse
// order of opening, so the search starts at the end.
func (f *frame) release(c *expr.Cursor) {
	for i := len(f.cursors) - 1; i >= 0; i-- {
		if f.cursors[i] == c {
			f.cursors = append(f.cursors[:i], f.cursors[i+1:]...)
			return
		}
	}
}

// compiler turns an expression tree into nested Go closures.
//
// Every variable gets a fixed slot index at compile time, so a compiled
// program reads and writes variables by index and never looks up names at
// run time. Control flow for Loop/Break is a pending-break field on the
// frame that Block and Loop check after each step.
type compiler struct {
	slots    map[*expr.Param]int
	declared map[*expr.Param]bool
	labels   map[*expr.Label]bool
}

func newCompiler() *compiler {
	return &compiler{
		slots:    make(map[*expr.Param]int),
		declared: make(map[*expr.Param]bool),
		labels:   make(map[*expr.Label]bool),
	}
}

func (c *compiler) slot(p *expr.Param) int {
	if i, ok := c.slots[p]; ok {
		return i
	}
	i := len(c.slots)
	c.slots[p] = i
	return i
}

func (c *compiler) declare(p *expr.Param) int {
	c.declared[p] = true
	return c.slot(p)
}

func (c *compiler) compile(e expr.Expr) (evalFn, error) {
	switch n := e.(type) {
	case *expr.Constant:
		v := n.Value
		return func(*frame) any { return v }, nil

	case *expr.Param:
		if !c.declared[n] {
			return nil, unsupported(n, fmt.Sprintf("unbound variable %q", n.Name))
		}
		i := c.slot(n)
		return func(f *frame) any { return f.slots[i] }, nil

	case *expr.Member:
		return c.member(n)

	case *expr.Binary:
		return c.binary(n)

	case *expr.Unary:
		return c.unary(n)

	case *expr.Call:
		return c.call(n)

	case *expr.Conditional:
		return c.conditional(n)

	case *expr.Block:
		return c.block(n)

	case *expr.Lambda:
		return nil, unsupported(n, "lambda values cannot be compiled, lambdas must be substituted")

	case *expr.Assign:
		if !c.declared[n.Target] {
			return nil, unsupported(n, fmt.Sprintf("assignment to unbound variable %q", n.Target.Name))
		}
		i := c.slot(n.Target)
		value, err := c.compile(n.Value)
		if err != nil {
			return nil, err
		}
		return func(f *frame) any {
			v := value(f)
			f.slots[i] = v
			return v
		}, nil

	case *expr.Loop:
		return c.loop(n)

	case *expr.Break:
		if !c.labels[n.Target] {
			return nil, unsupported(n, fmt.Sprintf("break to label %q outside its loop", n.Target.Name))
		}
		label := n.Target
		return func(f *frame) any {
			f.brk = label
			return nil
		}, nil

	case *expr.Index:
		return c.index(n)

	case *expr.Len:
		arr, err := c.compile(n.Array)
		if err != nil {
			return nil, err
		}
		return func(f *frame) any {
			return int64(len(asArray(arr(f), "len")))
		}, nil

	case *expr.CursorOpen:
		src, err := c.compile(n.Source)
		if err != nil {
			return nil, err
		}
		return func(f *frame) any {
			seq, ok := src(f).(*expr.Sequence)
			if !ok || seq == nil {
				panic(&EvalError{Op: "open", Err: fmt.Errorf("source is %T, not a sequence", seq)})
			}
			cur := seq.Open()
			f.cursors = append(f.cursors, cur)
			return cur
		}, nil

	case *expr.CursorNext:
		cur, err := c.compile(n.Cursor)
		if err != nil {
			return nil, err
		}
		return func(f *frame) any { return cur(f).(*expr.Cursor).Next() }, nil

	case *expr.CursorCurrent:
		cur, err := c.compile(n.Cursor)
		if err != nil {
			return nil, err
		}
		return func(f *frame) any { return cur(f).(*expr.Cursor).Current() }, nil

	case *expr.CursorClose:
		cur, err := c.compile(n.Cursor)
		if err != nil {
			return nil, err
		}
		return func(f *frame) any {
			cursor := cur(f).(*expr.Cursor)
			cursor.Close()
			f.release(cursor)
			return nil
		}, nil
	}

	return nil, unsupported(e, "unknown node kind")
}

func (c *compiler) member(n *expr.Member) (evalFn, error) {
	obj, err := c.compile(n.Object)
	if err != nil {
		return nil, err
	}
	field, typ := n.Field, n.T
	return func(f *frame) any {
		env, ok := obj(f).(*expr.Env)
		if !ok || env == nil {
			panic(&EvalError{Op: "member " + field, Err: fmt.Errorf("receiver is not an environment")})
		}
		v, err := env.Lookup(field)
		if err != nil {
			panic(&EvalError{Op: "member " + field, Err: err})
		}
		if !expr.Fits(v, typ) {
			panic(&EvalError{Op: "member " + field, Err: fmt.Errorf("%T is not %s", v, typ)})
		}
		return v
	}, nil
}

func (c *compiler) call(n *expr.Call) (evalFn, error) {
	if n.Fn == nil || n.Fn.Impl == nil {
		return nil, unsupported(n, "call to function without implementation")
	}
	args := make([]evalFn, len(n.Args))
	for i, a := range n.Args {
		fn, err := c.compile(a)
		if err != nil {
			return nil, err
		}
		args[i] = fn
	}
	impl := n.Fn.Impl
	return func(f *frame) any {
		vals := make([]any, len(args))
		for i, a := range args {
			vals[i] = a(f)
		}
		return impl(vals)
	}, nil
}

func (c *compiler) conditional(n *expr.Conditional) (evalFn, error) {
	test, err := c.compile(n.Test)
	if err != nil {
		return nil, err
	}
	then, err := c.compile(n.IfTrue)
	if err != nil {
		return nil, err
	}
	if n.IfFalse == nil {
		return func(f *frame) any {
			if test(f).(bool) {
				then(f)
			}
			return nil
		}, nil
	}
	otherwise, err := c.compile(n.IfFalse)
	if err != nil {
		return nil, err
	}
	return func(f *frame) any {
		if test(f).(bool) {
			return then(f)
		}
		return otherwise(f)
	}, nil
}

func (c *compiler) block(n *expr.Block) (evalFn, error) {
	for _, v := range n.Vars {
		c.declare(v)
	}
	steps := make([]evalFn, len(n.Exprs))
	for i, x := range n.Exprs {
		fn, err := c.compile(x)
		if err != nil {
			return nil, err
		}
		steps[i] = fn
	}
	return func(f *frame) any {
		var v any
		for _, step := range steps {
			v = step(f)
			if f.brk != nil {
				return nil
			}
		}
		return v
	}, nil
}

func (c *compiler) loop(n *expr.Loop) (evalFn, error) {
	c.labels[n.Break] = true
	body, err := c.compile(n.Body)
	delete(c.labels, n.Break)
	if err != nil {
		return nil, err
	}
	label := n.Break
	return func(f *frame) any {
		for {
			body(f)
			if f.brk != nil {
				if f.brk == label {
					f.brk = nil
				}
				return nil
			}
		}
	}, nil
}

func (c *compiler) index(n *expr.Index) (evalFn, error) {
	arr, err := c.compile(n.Array)
	if err != nil {
		return nil, err
	}
	idx, err := c.compile(n.Index)
	if err != nil {
		return nil, err
	}
	return func(f *frame) any {
		a := asArray(arr(f), "index")
		i := idx(f).(int64)
		if i < 0 || i >= int64(len(a)) {
			panic(&EvalError{Op: "index", Err: fmt.Errorf("index %d out of range [0:%d]", i, len(a))})
		}
		return a[i]
	}, nil
}

func asArray(v any, op string) []any {
	a, ok := v.([]any)
	if !ok {
		panic(&EvalError{Op: op, Err: fmt.Errorf("value is %T, not an array", v)})
	}
	return a
}
