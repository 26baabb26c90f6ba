package extract

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fuseq/internal/backend"
	"github.com/roach88/fuseq/internal/expr"
	"github.com/roach88/fuseq/internal/plan"
)

// pipeline builds where(i % env.threshold == 0).aggregate(seed, (acc + e*env.factor) % (100000 + env.threshold)).
func pipeline(t *testing.T, env *expr.Env, seed expr.Expr) *plan.Aggregate {
	t.Helper()
	i := expr.NewParam("i", expr.IntType)
	where, err := plan.NewWhere(plan.FromArray(expr.Range(0, 10), expr.IntType), expr.Fn(
		expr.Bin(expr.OpEq, expr.Bin(expr.OpMod, i, expr.Capture(env, "threshold", expr.IntType)), expr.Lit(0)), i))
	require.NoError(t, err)

	acc := expr.NewParam("acc", expr.IntType)
	e := expr.NewParam("e", expr.IntType)
	body := expr.Bin(expr.OpMod,
		expr.Bin(expr.OpAdd, acc, expr.Bin(expr.OpMul, e, expr.Capture(env, "factor", expr.IntType))),
		expr.Bin(expr.OpAdd, expr.Lit(100000), expr.Capture(env, "threshold", expr.IntType)))
	agg, err := plan.NewAggregate(where, seed, expr.Fn(body, acc, e))
	require.NoError(t, err)
	return agg
}

func run(t *testing.T, r Result) any {
	t.Helper()
	code, err := plan.LowerAggregate(r.Plan.(*plan.Aggregate))
	require.NoError(t, err)
	fn, err := backend.Compile(code, r.Placeholders())
	require.NoError(t, err)
	got, err := fn.Invoke(r.Values()...)
	require.NoError(t, err)
	return got
}

type param struct {
	Name   string
	Type   expr.Type
	Value  any
	Origin string
}

func summarize(r Result) []param {
	out := make([]param, len(r.Params))
	for i, p := range r.Params {
		v := p.Value
		if _, ok := v.([]any); ok {
			v = "array"
		}
		out[i] = param{Name: p.Placeholder.Name, Type: p.Type, Value: v, Origin: p.Origin}
	}
	return out
}

func TestExtractDedupsCaptures(t *testing.T) {
	env := expr.NewEnv("closure").Set("threshold", 3).Set("factor", 27)
	r := Extract(pipeline(t, env, expr.Lit(13)))

	want := []param{
		{Name: "p0", Type: expr.ArrayOf(expr.IntType), Value: "array", Origin: "source"},
		{Name: "p1", Type: expr.IntType, Value: int64(3), Origin: "env(closure).threshold"},
		{Name: "p2", Type: expr.IntType, Value: int64(13), Origin: "seed"},
		{Name: "p3", Type: expr.IntType, Value: int64(27), Origin: "env(closure).factor"},
	}
	if diff := cmp.Diff(want, summarize(r)); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}

	// threshold is read in both the predicate and the fold; both reads
	// resolve to the same placeholder.
	var reads []*expr.Param
	plan.MapExprs(r.Plan, func(_ plan.Site, e expr.Expr) expr.Expr {
		expr.Walk(e, func(n expr.Expr) bool {
			if p, ok := n.(*expr.Param); ok && p.Name == "p1" {
				reads = append(reads, p)
			}
			return true
		})
		return e
	})
	require.Len(t, reads, 2)
	assert.Same(t, reads[0], reads[1])

	assert.True(t, plan.Validate(r.Plan, r.Placeholders()...).OK())

	want13 := int64(13)
	for i := int64(0); i < 10; i++ {
		if i%3 == 0 {
			want13 = (want13 + i*27) % 100003
		}
	}
	assert.Equal(t, want13, run(t, r))
}

func TestExtractDoesNotModifyInput(t *testing.T) {
	env := expr.NewEnv("closure").Set("threshold", 3).Set("factor", 27)
	agg := pipeline(t, env, expr.Lit(13))
	before := expr.Format(mustLower(t, agg))

	r := Extract(agg)
	assert.NotSame(t, agg, r.Plan)
	assert.Equal(t, before, expr.Format(mustLower(t, agg)))
}

func mustLower(t *testing.T, a *plan.Aggregate) expr.Expr {
	t.Helper()
	code, err := plan.LowerAggregate(a)
	require.NoError(t, err)
	return code
}

func TestExtractDistinctEnvsAreDistinctParams(t *testing.T) {
	a := expr.NewEnv("a").Set("k", 1)
	b := expr.NewEnv("b").Set("k", 2)
	x := expr.NewParam("x", expr.IntType)
	sel, err := plan.NewSelect(plan.FromArray(expr.Ints(1), expr.IntType), expr.Fn(
		expr.Bin(expr.OpAdd, expr.Bin(expr.OpAdd, x, expr.Capture(a, "k", expr.IntType)), expr.Capture(b, "k", expr.IntType)), x))
	require.NoError(t, err)

	r := Extract(sel)
	require.Len(t, r.Params, 3)
	assert.Equal(t, []any{int64(1), int64(2)}, r.Values()[1:])
}

func TestExtractNormalizesFieldNames(t *testing.T) {
	// Precomposed and decomposed spellings name the same field.
	env := expr.NewEnv("closure").Set("caf\u00e9", 5)
	x := expr.NewParam("x", expr.IntType)
	sel, err := plan.NewSelect(plan.FromArray(expr.Ints(1), expr.IntType), expr.Fn(
		expr.Bin(expr.OpAdd, expr.Capture(env, "caf\u00e9", expr.IntType), expr.Capture(env, "cafe\u0301", expr.IntType)), x))
	require.NoError(t, err)

	r := Extract(sel)
	assert.Len(t, r.Params, 2, "source plus one capture")
}

func TestExtractLeavesFailedCapturesInPlace(t *testing.T) {
	env := expr.NewEnv("closure").Set("name", "seven")
	x := expr.NewParam("x", expr.IntType)

	tests := []struct {
		name  string
		field string
	}{
		{"missing field", "absent"},
		{"type mismatch", "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			member := expr.Capture(env, tt.field, expr.IntType)
			sel, err := plan.NewSelect(plan.FromArray(expr.Ints(1), expr.IntType), expr.Fn(expr.Bin(expr.OpAdd, x, member), x))
			require.NoError(t, err)

			r := Extract(sel)
			require.Len(t, r.Params, 1, "only the source is hoisted")
			body := r.Plan.(*plan.Select).Selector.Body.(*expr.Binary)
			assert.Same(t, member, body.Right)
		})
	}
}

func TestExtractHoistsLiteralSeed(t *testing.T) {
	env := expr.NewEnv("closure").Set("threshold", 3).Set("factor", 27)
	r13 := Extract(pipeline(t, env, expr.Lit(13)))
	r99 := Extract(pipeline(t, env, expr.Lit(99)))

	assert.Equal(t, r13.Types(), r99.Types())
	assert.Equal(t, int64(13), r13.Values()[2])
	assert.Equal(t, int64(99), r99.Values()[2])
	assert.Equal(t, expr.Format(mustLower(t, r13.Plan.(*plan.Aggregate))), expr.Format(mustLower(t, r99.Plan.(*plan.Aggregate))))
}

func TestExtractKeepsComputedSeed(t *testing.T) {
	env := expr.NewEnv("closure").Set("threshold", 3).Set("factor", 27).Set("base", 4)
	seed := expr.Bin(expr.OpMul, expr.Capture(env, "base", expr.IntType), expr.Lit(2))
	r := Extract(pipeline(t, env, seed))

	s, ok := r.Plan.(*plan.Aggregate).Seed.(*expr.Binary)
	require.True(t, ok, "a computed seed stays an expression")
	assert.IsType(t, &expr.Param{}, s.Left)
	assert.Equal(t, "env(closure).base", r.Params[2].Origin)
}

func TestExtractNestedMember(t *testing.T) {
	inner := expr.NewEnv("inner").Set("k", 9)
	outer := expr.NewEnv("outer").Set("inner", inner)
	x := expr.NewParam("x", expr.IntType)
	nested := &expr.Member{Object: expr.Capture(outer, "inner", expr.EnvType), Field: "k", T: expr.IntType}
	sel, err := plan.NewSelect(plan.FromArray(expr.Ints(1), expr.IntType), expr.Fn(expr.Bin(expr.OpAdd, x, nested), x))
	require.NoError(t, err)

	r := Extract(sel)
	// Only the inner read has a constant receiver. The outer read stays a
	// member and is evaluated at run time on the hoisted environment.
	require.Len(t, r.Params, 2)
	assert.Equal(t, expr.EnvType, r.Params[1].Type)
	assert.Equal(t, int64(1+9), run(t, Result{Plan: wrap(t, r.Plan), Params: r.Params}))
}

func wrap(t *testing.T, n plan.Node) *plan.Aggregate {
	t.Helper()
	a := expr.NewParam("a", expr.IntType)
	e := expr.NewParam("e", expr.IntType)
	agg, err := plan.NewAggregate(n, expr.Lit(0), expr.Fn(expr.Bin(expr.OpAdd, a, e), a, e))
	require.NoError(t, err)
	return agg
}

func TestExtractNoCaptures(t *testing.T) {
	x := expr.NewParam("x", expr.IntType)
	src, err := plan.From(&expr.Index{Array: expr.ConstOf([]any{expr.Ints(1, 2)}, expr.ArrayOf(expr.ArrayOf(expr.IntType))), Index: expr.Lit(0)})
	require.NoError(t, err)
	sel, err := plan.NewSelect(src, expr.Fn(x, x))
	require.NoError(t, err)

	r := Extract(sel)
	assert.Empty(t, r.Params)
	assert.Same(t, sel, r.Plan)
}
