package backend

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fuseq/internal/expr"
)

// sumLoop builds: total = 0; i = 0; loop { if i < n { total += i; i++ } else break }; total
func sumLoop(n expr.Expr) expr.Expr {
	total := expr.NewParam("total", expr.IntType)
	i := expr.NewParam("i", expr.IntType)
	brk := &expr.Label{Name: "done"}
	return &expr.Block{
		Vars: []*expr.Param{total, i},
		Exprs: []expr.Expr{
			expr.Set(total, expr.Lit(0)),
			expr.Set(i, expr.Lit(0)),
			&expr.Loop{
				Break: brk,
				Body: expr.If(
					expr.Bin(expr.OpLt, i, n),
					expr.Seq(
						expr.Set(total, expr.Bin(expr.OpAdd, total, i)),
						expr.Set(i, expr.Bin(expr.OpAdd, i, expr.Lit(1))),
					),
					&expr.Break{Target: brk},
				),
			},
			total,
		},
	}
}

func TestCompileLoop(t *testing.T) {
	fn, err := Compile(sumLoop(expr.Lit(10)), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, fn.Arity())
	assert.Equal(t, expr.IntType, fn.ResultType())

	got, err := fn.Call0()
	require.NoError(t, err)
	assert.Equal(t, int64(45), got)
}

func TestCompileArities(t *testing.T) {
	for arity := 0; arity <= 5; arity++ {
		params := make([]*expr.Param, arity)
		var body expr.Expr = expr.Lit(0)
		args := make([]any, arity)
		want := int64(0)
		for i := range params {
			params[i] = expr.NewParam("p", expr.IntType)
			body = expr.Bin(expr.OpAdd, body, expr.Bin(expr.OpMul, params[i], expr.Lit(int64(i+1))))
			args[i] = int64(10 * (i + 1))
			want += int64(10 * (i + 1) * (i + 1))
		}

		fn, err := Compile(body, params)
		require.NoError(t, err, "arity %d", arity)
		assert.Equal(t, arity, fn.Arity())

		got, err := fn.Invoke(args...)
		require.NoError(t, err, "arity %d", arity)
		assert.Equal(t, want, got, "arity %d", arity)
	}
}

func TestCompileSpecializedEntryPoints(t *testing.T) {
	a := expr.NewParam("a", expr.IntType)
	b := expr.NewParam("b", expr.IntType)
	c := expr.NewParam("c", expr.IntType)
	fn, err := Compile(expr.Bin(expr.OpSub, expr.Bin(expr.OpSub, a, b), c), []*expr.Param{a, b, c})
	require.NoError(t, err)

	got, err := fn.Call3(10, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got, "plain ints are widened")

	_, err = fn.Invoke(1, 2)
	require.Error(t, err)

	// Entry points for other arities report the mismatch instead of
	// calling into a missing specialization.
	_, err = fn.Call0()
	assert.EqualError(t, err, "expected 3 arguments, got 0")
	_, err = fn.Call1(1)
	assert.EqualError(t, err, "expected 3 arguments, got 1")
	_, err = fn.Call2(1, 2)
	assert.EqualError(t, err, "expected 3 arguments, got 2")

	got, err = fn.CallN([]any{10, 3, 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), got, "CallN dispatches to the specialized entry point")
}

func TestCompileArgumentTypeMismatch(t *testing.T) {
	a := expr.NewParam("a", expr.IntType)
	fn, err := Compile(a, []*expr.Param{a})
	require.NoError(t, err)

	_, err = fn.Call1("not an int")
	var evalErr *EvalError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "argument 0", evalErr.Op)
}

func TestCompileOperators(t *testing.T) {
	tests := []struct {
		name string
		e    expr.Expr
		want any
	}{
		{"int mod", expr.Bin(expr.OpMod, expr.Lit(17), expr.Lit(5)), int64(2)},
		{"int div", expr.Bin(expr.OpDiv, expr.Lit(17), expr.Lit(5)), int64(3)},
		{"float div", expr.Bin(expr.OpDiv, expr.Lit(1.0), expr.Lit(4.0)), 0.25},
		{"float mod", expr.Bin(expr.OpMod, expr.Lit(5.5), expr.Lit(2.0)), 1.5},
		{"string concat", expr.Bin(expr.OpAdd, expr.Lit("ab"), expr.Lit("c")), "abc"},
		{"string compare", expr.Bin(expr.OpLt, expr.Lit("a"), expr.Lit("b")), true},
		{"bool eq", expr.Bin(expr.OpEq, expr.Lit(true), expr.Lit(false)), false},
		{"and", expr.Bin(expr.OpAnd, expr.Lit(true), expr.Lit(false)), false},
		{"or", expr.Bin(expr.OpOr, expr.Lit(false), expr.Lit(true)), true},
		{"neg", &expr.Unary{Op: expr.OpNeg, Operand: expr.Lit(3)}, int64(-3)},
		{"not", &expr.Unary{Op: expr.OpNot, Operand: expr.Lit(true)}, false},
		{"ternary", expr.If(expr.Lit(false), expr.Lit(1), expr.Lit(2)), int64(2)},
		{"len", &expr.Len{Array: expr.Lit(expr.Ints(1, 2, 3))}, int64(3)},
		{"index", &expr.Index{Array: expr.Lit(expr.Ints(4, 5, 6)), Index: expr.Lit(1)}, int64(5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := Compile(tt.e, nil)
			require.NoError(t, err)
			got, err := fn.Call0()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileShortCircuit(t *testing.T) {
	calls := 0
	probe := &expr.Func{Name: "probe", Result: expr.BoolType, Impl: func([]any) any {
		calls++
		return true
	}}
	fn, err := Compile(expr.Bin(expr.OpAnd, expr.Lit(false), &expr.Call{Fn: probe}), nil)
	require.NoError(t, err)

	got, err := fn.Call0()
	require.NoError(t, err)
	assert.Equal(t, false, got)
	assert.Zero(t, calls, "right operand of && is not evaluated")
}

func TestCompileCall(t *testing.T) {
	square := &expr.Func{
		Name:   "square",
		Params: []expr.Type{expr.IntType},
		Result: expr.IntType,
		Impl:   func(args []any) any { x := args[0].(int64); return x * x },
	}
	fn, err := Compile(&expr.Call{Fn: square, Args: []expr.Expr{expr.Lit(7)}}, nil)
	require.NoError(t, err)
	got, err := fn.Call0()
	require.NoError(t, err)
	assert.Equal(t, int64(49), got)
}

func TestCompileMember(t *testing.T) {
	env := expr.NewEnv("closure").Set("x", 5)
	fn, err := Compile(expr.Bin(expr.OpMul, expr.Capture(env, "x", expr.IntType), expr.Lit(2)), nil)
	require.NoError(t, err)

	got, err := fn.Call0()
	require.NoError(t, err)
	assert.Equal(t, int64(10), got)

	env.Set("x", 6)
	got, err = fn.Call0()
	require.NoError(t, err)
	assert.Equal(t, int64(12), got, "members are read at run time")
}

func TestCompileMissingMemberIsEvalError(t *testing.T) {
	env := expr.NewEnv("closure")
	fn, err := Compile(expr.Capture(env, "missing", expr.IntType), nil)
	require.NoError(t, err)

	_, err = fn.Call0()
	var evalErr *EvalError
	require.True(t, errors.As(err, &evalErr))
	assert.Equal(t, "member missing", evalErr.Op)
}

func TestCompileIndexOutOfRange(t *testing.T) {
	fn, err := Compile(&expr.Index{Array: expr.Lit(expr.Ints(1)), Index: expr.Lit(3)}, nil)
	require.NoError(t, err)

	_, err = fn.Call0()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestCompileDivisionByZeroPropagates(t *testing.T) {
	zero := expr.NewParam("z", expr.IntType)
	fn, err := Compile(expr.Bin(expr.OpDiv, expr.Lit(1), zero), []*expr.Param{zero})
	require.NoError(t, err)

	assert.Panics(t, func() { _, _ = fn.Call1(0) })
}

func TestCompileRejects(t *testing.T) {
	free := expr.NewParam("free", expr.IntType)
	x := expr.NewParam("x", expr.IntType)
	stray := &expr.Label{Name: "stray"}

	tests := []struct {
		name   string
		e      expr.Expr
		reason string
	}{
		{"unbound variable", expr.Bin(expr.OpAdd, free, expr.Lit(1)), "unbound variable"},
		{"unbound assignment", expr.Set(free, expr.Lit(1)), "assignment to unbound"},
		{"lambda", expr.Fn(x, x), "lambda values"},
		{"stray break", &expr.Break{Target: stray}, "outside its loop"},
		{"mixed operands", expr.Bin(expr.OpAdd, expr.Lit(1), expr.Lit(1.5)), "have types int and float"},
		{"bool arithmetic", expr.Bin(expr.OpAdd, expr.Lit(true), expr.Lit(true)), "+ on bool"},
		{"negate string", &expr.Unary{Op: expr.OpNeg, Operand: expr.Lit("s")}, "- on string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.e, nil)
			var unsupportedErr *UnsupportedError
			require.ErrorAs(t, err, &unsupportedErr)
			assert.Contains(t, unsupportedErr.Reason, tt.reason)
		})
	}
}

func TestCompileClosesCursorsOnEarlyExit(t *testing.T) {
	stopped := false
	seq := expr.NewSequence(expr.IntType, func(yield func(any) bool) {
		defer func() { stopped = true }()
		for i := int64(0); ; i++ {
			if !yield(i) {
				return
			}
		}
	})

	cur := expr.NewParam("cur", expr.CursorOf(expr.IntType))
	// Open the cursor, read one element, and return without closing it.
	body := &expr.Block{
		Vars: []*expr.Param{cur},
		Exprs: []expr.Expr{
			expr.Set(cur, &expr.CursorOpen{Source: expr.ConstOf(seq, expr.SeqOf(expr.IntType))}),
			&expr.CursorNext{Cursor: cur},
			&expr.CursorCurrent{Cursor: cur},
		},
	}
	fn, err := Compile(body, nil)
	require.NoError(t, err)

	got, err := fn.Call0()
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)
	assert.True(t, stopped, "open cursors are closed when the call returns")
}

func TestCompileReleasesClosedCursors(t *testing.T) {
	seq := expr.SliceSequence(expr.IntType, expr.Ints(1, 2))
	cur := expr.NewParam("cur", expr.CursorOf(expr.IntType))
	var exprs []expr.Expr
	for range 50 {
		exprs = append(exprs,
			expr.Set(cur, &expr.CursorOpen{Source: expr.ConstOf(seq, expr.SeqOf(expr.IntType))}),
			&expr.CursorClose{Cursor: cur},
		)
	}
	body := &expr.Block{Vars: []*expr.Param{cur}, Exprs: exprs}

	c := newCompiler()
	root, err := c.compile(body)
	require.NoError(t, err)
	f := &frame{slots: make([]any, len(c.slots))}
	root(f)
	assert.Empty(t, f.cursors, "closed cursors are not kept for the rest of the call")
}
