package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fuseq/internal/executor"
	"github.com/roach88/fuseq/internal/expr"
	"github.com/roach88/fuseq/internal/plan"
)

func newExecutor() *executor.Executor {
	return executor.New(executor.WithCache(executor.NewMapCache()))
}

func load(t *testing.T, name string) *Pipeline {
	t.Helper()
	def, err := LoadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	p, err := Build(context.Background(), def)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func whereSelect(seed int64) int64 {
	acc := seed
	for i := int64(0); i < 100; i++ {
		if i%3 == 0 {
			acc = (acc + i*4*27) % 100001
		}
	}
	return acc
}

func TestYAMLAndCUEShareArtifact(t *testing.T) {
	ctx := context.Background()
	ex := newExecutor()

	fromYAML := load(t, "where_select.yaml")
	fromCUE := load(t, "where_select.cue")
	assert.Equal(t, "where-select", fromYAML.Name)
	assert.Equal(t, fromYAML.Description, fromCUE.Description)

	got, err := ex.Execute(ctx, fromYAML.Plan)
	require.NoError(t, err)
	assert.Equal(t, whereSelect(13), got)

	got, err = ex.Execute(ctx, fromCUE.Plan)
	require.NoError(t, err)
	assert.Equal(t, whereSelect(99), got)

	assert.Equal(t, int64(1), ex.Stats().Compilations, "the files differ only in captured values")
}

func TestJaggedFlatten(t *testing.T) {
	p := load(t, "jagged.yaml")
	got, err := newExecutor().Execute(context.Background(), p.Plan)
	require.NoError(t, err)
	// Every element is multiplied by its row length, 5.
	assert.Equal(t, int64(5*(24*25/2)), got)
	assert.Equal(t, expr.IntType, p.Plan.Source.ElemType())
}

func TestParseYAMLRejectsUnknownFields(t *testing.T) {
	_, err := ParseYAML([]byte("name: x\nsorce: {range: {count: 1}}\n"))
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "yaml", fe.Field)
	assert.Contains(t, fe.Message, "sorce")

	_, err = ParseYAML(nil)
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "empty document", fe.Message)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join("testdata", "invalid.cue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid.cue")

	_, err = LoadFile(filepath.Join("testdata", "where_select.json"))
	require.Error(t, err)

	_, err = LoadFile("pipeline.toml")
	require.Error(t, err)
}

func TestErrorFormat(t *testing.T) {
	assert.Equal(t, "steps[0].where: bad", (&Error{Field: "steps[0].where", Message: "bad"}).Error())
	assert.Equal(t, "p.yaml: name: is required", (&Error{File: "p.yaml", Field: "name", Message: "is required"}).Error())
}

func base() *Definition {
	return &Definition{
		Name:   "t",
		Env:    map[string]any{"k": 2, "name": "x", "limits": map[string]any{"max": 7}},
		Source: SourceDef{Range: &RangeDef{Start: 0, Count: 4}},
		Aggregate: AggregateDef{
			Seed:   "0",
			Params: []string{"acc", "e"},
			Body:   "acc + e",
		},
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(d *Definition)
		field  string
	}{
		{"missing name", func(d *Definition) { d.Name = "" }, "name"},
		{"no source", func(d *Definition) { d.Source = SourceDef{} }, "source"},
		{"two sources", func(d *Definition) { d.Source.Array = []any{1} }, "source"},
		{"negative range", func(d *Definition) { d.Source.Range.Count = -1 }, "source.range"},
		{"mixed array", func(d *Definition) { d.Source = SourceDef{Array: []any{1, "a"}} }, "source.array"},
		{"empty array", func(d *Definition) { d.Source = SourceDef{Array: []any{}} }, "source.array"},
		{"env source scalar", func(d *Definition) { d.Source = SourceDef{Env: "k"} }, "source.env"},
		{"unknown elem", func(d *Definition) { d.Source = SourceDef{Array: []any{}, Elem: "complex"} }, "source.array"},
		{"empty step", func(d *Definition) { d.Steps = []Step{{}} }, "steps[0].step"},
		{"two ops in a step", func(d *Definition) {
			l := &LambdaDef{Params: []string{"x"}, Body: "x"}
			d.Steps = []Step{{Where: l, Select: l}}
		}, "steps[0].step"},
		{"undefined identifier", func(d *Definition) {
			d.Steps = []Step{{Select: &LambdaDef{Params: []string{"x"}, Body: "x + missing"}}}
		}, "steps[0].select"},
		{"mismatched types", func(d *Definition) {
			d.Steps = []Step{{Select: &LambdaDef{Params: []string{"x"}, Body: "x + name"}}}
		}, "steps[0].select"},
		{"non-bool predicate", func(d *Definition) {
			d.Steps = []Step{{Where: &LambdaDef{Params: []string{"x"}, Body: "x + 1"}}}
		}, "steps[0].where"},
		{"syntax error", func(d *Definition) {
			d.Steps = []Step{{Select: &LambdaDef{Params: []string{"x"}, Body: "x +"}}}
		}, "steps[0].select"},
		{"arity", func(d *Definition) {
			d.Steps = []Step{{Select: &LambdaDef{Params: []string{"x", "y"}, Body: "x"}}}
		}, "steps[0].select"},
		{"duplicate params", func(d *Definition) { d.Aggregate.Params = []string{"a", "a"} }, "aggregate"},
		{"scalar selectMany", func(d *Definition) {
			d.Steps = []Step{{SelectMany: &SelectManyDef{Params: []string{"x"}, Body: "x"}}}
		}, "steps[0].selectMany"},
		{"missing seed", func(d *Definition) { d.Aggregate.Seed = "" }, "aggregate.seed"},
		{"seed uses a param", func(d *Definition) { d.Aggregate.Seed = "acc" }, "aggregate.seed"},
		{"fold type", func(d *Definition) { d.Aggregate.Body = "acc < e" }, "aggregate"},
		{"unknown function", func(d *Definition) { d.Aggregate.Body = "sqrt(acc)" }, "aggregate"},
		{"selector on scalar", func(d *Definition) { d.Aggregate.Body = "acc + k.x" }, "aggregate"},
		{"unsupported env value", func(d *Definition) { d.Env["bad"] = []any{map[string]any{}} }, "env.bad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := base()
			tt.modify(def)
			_, err := Build(context.Background(), def)
			var fe *Error
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field, "error: %v", err)
		})
	}
}

func TestNestedEnvSelector(t *testing.T) {
	def := base()
	def.Steps = []Step{{Select: &LambdaDef{Params: []string{"x"}, Body: "min(x * k, limits.max)"}}}
	p, err := Build(context.Background(), def)
	require.NoError(t, err)

	got, err := newExecutor().Execute(context.Background(), p.Plan)
	require.NoError(t, err)
	assert.Equal(t, int64(0+2+4+6), got)
}

func TestEnvSourceReadsCurrentValue(t *testing.T) {
	ctx := context.Background()
	def := base()
	def.Env["data"] = []any{1, 2, 3}
	def.Source = SourceDef{Env: "data"}
	p, err := Build(ctx, def)
	require.NoError(t, err)

	ex := newExecutor()
	got, err := ex.Execute(ctx, p.Plan)
	require.NoError(t, err)
	assert.Equal(t, int64(6), got)

	p.Env.Set("data", expr.Ints(10, 20))
	got, err = ex.Execute(ctx, p.Plan)
	require.NoError(t, err)
	assert.Equal(t, int64(30), got)
	assert.Equal(t, int64(1), ex.Stats().Compilations)
}

func TestSQLiteSource(t *testing.T) {
	ctx := context.Background()
	def := base()
	def.Source = SourceDef{
		Elem: "float",
		SQLite: &SQLiteDef{
			DSN: "file::memory:",
			Setup: []string{
				"CREATE TABLE readings (value REAL NOT NULL)",
				"INSERT INTO readings (value) VALUES (1.5), (2.5), (4.0)",
			},
			Query: "SELECT value FROM readings ORDER BY rowid",
		},
	}
	def.Aggregate.Seed = "0.0"
	p, err := Build(ctx, def)
	require.NoError(t, err)
	defer p.Close()

	got, err := newExecutor().Execute(ctx, p.Plan)
	require.NoError(t, err)
	assert.Equal(t, 8.0, got)
	assert.NoError(t, p.SourceErr())
}

func TestSQLiteSetupError(t *testing.T) {
	def := base()
	def.Source = SourceDef{SQLite: &SQLiteDef{DSN: "file::memory:", Setup: []string{"NOT SQL"}, Query: "SELECT 1"}}
	_, err := Build(context.Background(), def)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "source.sqlite.setup[0]", fe.Field)
}

func TestBuiltins(t *testing.T) {
	tests := []struct {
		body string
		want any
	}{
		{"cond(x % 2 == 0, x, -x)", int64(0 - 1 + 2 - 3)},
		{"abs(x - 2)", int64(2 + 1 + 0 + 1)},
		{"max(x, 2)", int64(2 + 2 + 2 + 3)},
		{"len(range(0, x))", int64(0 + 1 + 2 + 3)},
		{"int(float(x) * 1.5)", int64(0 + 1 + 3 + 4)},
		{"cond(!(x > 1) && true, 1, 0)", int64(2)},
		{"0x10 + x", int64(16*4 + 6)},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			def := base()
			def.Steps = []Step{{Select: &LambdaDef{Params: []string{"x"}, Body: tt.body}}}
			p, err := Build(context.Background(), def)
			require.NoError(t, err)
			got, err := newExecutor().Execute(context.Background(), p.Plan)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStringsAndFloats(t *testing.T) {
	def := &Definition{
		Name:   "strings",
		Env:    map[string]any{"sep": "-"},
		Source: SourceDef{Array: []any{"a", "b", "c"}},
		Steps:  []Step{{Where: &LambdaDef{Params: []string{"s"}, Body: `s != "b"`}}},
		Aggregate: AggregateDef{
			Seed:   `""`,
			Params: []string{"acc", "s"},
			Body:   "acc + s + sep",
		},
	}
	p, err := Build(context.Background(), def)
	require.NoError(t, err)
	got, err := newExecutor().Execute(context.Background(), p.Plan)
	require.NoError(t, err)
	assert.Equal(t, "a-c-", got)
}

func TestBuildIsRepeatable(t *testing.T) {
	a, err := Build(context.Background(), base())
	require.NoError(t, err)
	b, err := Build(context.Background(), base())
	require.NoError(t, err)

	codeA, err := plan.LowerAggregate(a.Plan)
	require.NoError(t, err)
	codeB, err := plan.LowerAggregate(b.Plan)
	require.NoError(t, err)
	assert.Equal(t, expr.Format(codeA), expr.Format(codeB))
}

func TestSetEnv(t *testing.T) {
	ctx := context.Background()
	p := load(t, "where_select.yaml")
	ex := newExecutor()

	require.NoError(t, p.SetEnv(map[string]any{"seed": 99}))
	got, err := ex.Execute(ctx, p.Plan)
	require.NoError(t, err)
	assert.Equal(t, whereSelect(99), got)

	var fe *Error
	require.ErrorAs(t, p.SetEnv(map[string]any{"seed": struct{}{}}), &fe)
	assert.Equal(t, "env.seed", fe.Field)
}
