package backend

import (
	"fmt"

	"github.com/roach88/fuseq/internal/expr"
)

// UnsupportedError reports a node the backend cannot compile.
type UnsupportedError struct {
	Node   expr.Expr
	Reason string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported %T: %s", e.Node, e.Reason)
}

func unsupported(n expr.Expr, reason string) *UnsupportedError {
	return &UnsupportedError{Node: n, Reason: reason}
}

// EvalError is a failure of compiled code itself: reading a missing
// environment field, indexing out of range, a wrongly typed argument.
// Panics raised by host functions or by integer division are not EvalErrors
// and propagate to the caller unchanged.
type EvalError struct {
	Op  string
	Err error
}

func (e *EvalError) Error() string { return fmt.Sprintf("eval %s: %v", e.Op, e.Err) }

func (e *EvalError) Unwrap() error { return e.Err }

// Callable is a compiled loop. Its formal parameters are bound positionally.
//
// Programs with up to three parameters get dedicated entry points (Call0
// through Call3) that write arguments straight into their slots. Wider
// programs take their arguments as a slice through CallN. Invoke picks the
// right entry point for a slice of arguments.
type Callable struct {
	params []expr.Type
	result expr.Type

	call0 func() (any, error)
	call1 func(a0 any) (any, error)
	call2 func(a0, a1 any) (any, error)
	call3 func(a0, a1, a2 any) (any, error)
	callN func(args []any) (any, error)
}

// Compile turns body into a Callable whose formal parameters are params,
// in order. Every variable body reads must be one of params or be declared
// by an enclosing Block.
func Compile(body expr.Expr, params []*expr.Param) (*Callable, error) {
	c := newCompiler()
	slots := make([]int, len(params))
	types := make([]expr.Type, len(params))
	for i, p := range params {
		slots[i] = c.declare(p)
		types[i] = p.T
	}
	root, err := c.compile(body)
	if err != nil {
		return nil, err
	}
	size := len(c.slots)

	run := func(f *frame) (result any, err error) {
		defer func() {
			for _, cur := range f.cursors {
				cur.Close()
			}
			if r := recover(); r != nil {
				evalErr, ok := r.(*EvalError)
				if !ok {
					panic(r)
				}
				result, err = nil, evalErr
			}
		}()
		return root(f), nil
	}
	bind := func(f *frame, i int, v any) {
		f.slots[slots[i]] = convertArg(v, types[i], i)
	}

	cl := &Callable{params: types, result: body.Type()}
	switch len(params) {
	case 0:
		cl.call0 = func() (any, error) {
			return run(&frame{slots: make([]any, size)})
		}
	case 1:
		cl.call1 = func(a0 any) (any, error) {
			f := &frame{slots: make([]any, size)}
			if err := guardBind(func() { bind(f, 0, a0) }); err != nil {
				return nil, err
			}
			return run(f)
		}
	case 2:
		cl.call2 = func(a0, a1 any) (any, error) {
			f := &frame{slots: make([]any, size)}
			if err := guardBind(func() { bind(f, 0, a0); bind(f, 1, a1) }); err != nil {
				return nil, err
			}
			return run(f)
		}
	case 3:
		cl.call3 = func(a0, a1, a2 any) (any, error) {
			f := &frame{slots: make([]any, size)}
			if err := guardBind(func() { bind(f, 0, a0); bind(f, 1, a1); bind(f, 2, a2) }); err != nil {
				return nil, err
			}
			return run(f)
		}
	default:
		cl.callN = func(args []any) (any, error) {
			if len(args) != len(slots) {
				return nil, fmt.Errorf("expected %d arguments, got %d", len(slots), len(args))
			}
			f := &frame{slots: make([]any, size)}
			err := guardBind(func() {
				for i, a := range args {
					bind(f, i, a)
				}
			})
			if err != nil {
				return nil, err
			}
			return run(f)
		}
	}
	return cl, nil
}

// Arity is the number of formal parameters.
func (c *Callable) Arity() int { return len(c.params) }

// ParamTypes returns the declared types of the formal parameters.
func (c *Callable) ParamTypes() []expr.Type { return c.params }

// ResultType is the static type of the value the callable returns.
func (c *Callable) ResultType() expr.Type { return c.result }

// Call0 through Call3 return an error when the callable's arity differs.
func (c *Callable) Call0() (any, error) {
	if err := c.checkArity(0); err != nil {
		return nil, err
	}
	return c.call0()
}

func (c *Callable) Call1(a0 any) (any, error) {
	if err := c.checkArity(1); err != nil {
		return nil, err
	}
	return c.call1(a0)
}

func (c *Callable) Call2(a0, a1 any) (any, error) {
	if err := c.checkArity(2); err != nil {
		return nil, err
	}
	return c.call2(a0, a1)
}

func (c *Callable) Call3(a0, a1, a2 any) (any, error) {
	if err := c.checkArity(3); err != nil {
		return nil, err
	}
	return c.call3(a0, a1, a2)
}

// CallN accepts any arity.
func (c *Callable) CallN(args []any) (any, error) { return c.Invoke(args...) }

func (c *Callable) checkArity(n int) error {
	if n != len(c.params) {
		return fmt.Errorf("expected %d arguments, got %d", len(c.params), n)
	}
	return nil
}

// Invoke calls the entry point matching the callable's arity.
func (c *Callable) Invoke(args ...any) (any, error) {
	if err := c.checkArity(len(args)); err != nil {
		return nil, err
	}
	switch len(args) {
	case 0:
		return c.call0()
	case 1:
		return c.call1(args[0])
	case 2:
		return c.call2(args[0], args[1])
	case 3:
		return c.call3(args[0], args[1], args[2])
	}
	return c.callN(args)
}

func guardBind(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			evalErr, ok := r.(*EvalError)
			if !ok {
				panic(r)
			}
			err = evalErr
		}
	}()
	fn()
	return nil
}

// convertArg checks an argument against its declared type. Go ints are
// widened to int64.
func convertArg(v any, t expr.Type, pos int) any {
	if i, ok := v.(int); ok {
		v = int64(i)
	}
	if !expr.Fits(v, t) {
		panic(&EvalError{Op: fmt.Sprintf("argument %d", pos), Err: fmt.Errorf("%T is not %s", v, t)})
	}
	return v
}
