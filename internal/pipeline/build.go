package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/roach88/fuseq/internal/expr"
	"github.com/roach88/fuseq/internal/plan"
	"github.com/roach88/fuseq/internal/sqlsource"
)

// Pipeline is a built definition.
type Pipeline struct {
	Name        string
	Description string

	// Env is the root environment. Fields can be reassigned before each
	// execution.
	Env *expr.Env

	Plan *plan.Aggregate

	db     *sql.DB
	column *sqlsource.Column
}

// Close releases the SQLite database of a sqlite source. It is a no-op for
// other sources.
func (p *Pipeline) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

// SourceErr reports a failure of a sqlite source during the last
// iteration.
func (p *Pipeline) SourceErr() error {
	if p.column == nil {
		return nil
	}
	return p.column.Err()
}

// SetEnv assigns env fields, converting decoded values the same way the
// definition's env is converted. Plans built earlier see the new values on
// their next execution.
func (p *Pipeline) SetEnv(values map[string]any) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := envValue("env."+k, values[k])
		if err != nil {
			return err
		}
		p.Env.Set(k, v)
	}
	return nil
}

// Build turns a definition into a plan. The context bounds SQLite setup.
func Build(ctx context.Context, def *Definition) (*Pipeline, error) {
	if def == nil {
		return nil, fieldErr("definition", "is nil")
	}
	if def.Name == "" {
		return nil, fieldErr("name", "is required")
	}

	env, err := buildEnv("env", def.Env)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{Name: def.Name, Description: def.Description, Env: env}
	src, err := p.source(ctx, def.Source)
	if err != nil {
		return nil, errors.Join(err, p.Close())
	}

	var node plan.Node = src
	for i, step := range def.Steps {
		node, err = addStep(env, node, step)
		if err != nil {
			var fe *Error
			if errors.As(err, &fe) {
				fe.Field = fmt.Sprintf("steps[%d].%s", i, fe.Field)
			}
			return nil, errors.Join(err, p.Close())
		}
	}

	p.Plan, err = aggregate(env, node, def.Aggregate)
	if err != nil {
		return nil, errors.Join(err, p.Close())
	}
	return p, nil
}

func (p *Pipeline) source(ctx context.Context, def SourceDef) (*plan.Source, error) {
	kinds := 0
	for _, set := range []bool{def.Array != nil, def.Range != nil, def.Jagged != nil, def.Env != "", def.SQLite != nil} {
		if set {
			kinds++
		}
	}
	if kinds != 1 {
		return nil, fieldErr("source", "exactly one of array, range, jagged, env or sqlite is required, got %d", kinds)
	}

	switch {
	case def.Range != nil:
		if def.Range.Count < 0 {
			return nil, fieldErr("source.range", "negative count %d", def.Range.Count)
		}
		return plan.FromArray(expr.Range(def.Range.Start, def.Range.Count), expr.IntType), nil

	case def.Array != nil:
		vals, elem, err := scalars(def.Array, def.Elem)
		if err != nil {
			return nil, fieldErr("source.array", "%v", err)
		}
		return plan.FromArray(vals, elem), nil

	case def.Jagged != nil:
		return jagged(def.Jagged, def.Elem)

	case def.Env != "":
		v, err := p.Env.Lookup(def.Env)
		if err != nil {
			return nil, fieldErr("source.env", "%v", err)
		}
		t, ok := expr.TypeOf(v)
		if !ok || !t.IsArray() {
			return nil, fieldErr("source.env", "field %s is %T, not a non-empty array", def.Env, v)
		}
		src, err := plan.From(expr.Capture(p.Env, def.Env, t))
		if err != nil {
			return nil, fieldErr("source.env", "%v", err)
		}
		return src, nil
	}
	return p.sqlite(ctx, def)
}

func (p *Pipeline) sqlite(ctx context.Context, def SourceDef) (*plan.Source, error) {
	elem, err := elemType(def.Elem)
	if err != nil {
		return nil, fieldErr("source.elem", "%v", err)
	}
	if def.SQLite.DSN == "" || def.SQLite.Query == "" {
		return nil, fieldErr("source.sqlite", "dsn and query are required")
	}
	db, err := sqlsource.Open(def.SQLite.DSN)
	if err != nil {
		return nil, fieldErr("source.sqlite", "%v", err)
	}
	p.db = db
	for i, stmt := range def.SQLite.Setup {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fieldErr(fmt.Sprintf("source.sqlite.setup[%d]", i), "%v", err)
		}
	}
	col, err := sqlsource.NewColumn(ctx, db, elem, def.SQLite.Query)
	if err != nil {
		return nil, fieldErr("source.sqlite", "%v", err)
	}
	p.column = col
	return plan.FromSequence(col.Sequence()), nil
}

func jagged(rows [][]any, elemName string) (*plan.Source, error) {
	var elem expr.Type
	if elemName != "" {
		t, err := elemType(elemName)
		if err != nil {
			return nil, fieldErr("source.elem", "%v", err)
		}
		elem = t
	}
	out := make([]any, len(rows))
	for i, row := range rows {
		vals, t, err := scalars(row, string(elem))
		if err != nil && len(row) > 0 {
			return nil, fieldErr(fmt.Sprintf("source.jagged[%d]", i), "%v", err)
		}
		if elem == "" && len(row) > 0 {
			elem = t
		}
		if vals == nil {
			vals = []any{}
		}
		out[i] = vals
	}
	if elem == "" {
		elem = expr.IntType
	}
	for i, row := range out {
		for _, v := range row.([]any) {
			if !expr.Fits(v, elem) {
				return nil, fieldErr(fmt.Sprintf("source.jagged[%d]", i), "element %v is not %s", v, elem)
			}
		}
	}
	return plan.FromArray(out, expr.ArrayOf(elem)), nil
}

// scalars converts decoded values and checks they share one scalar type.
func scalars(in []any, elemName string) ([]any, expr.Type, error) {
	out := make([]any, len(in))
	for i, v := range in {
		c, err := scalar(v)
		if err != nil {
			return nil, "", fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = c
	}
	var elem expr.Type
	switch {
	case elemName != "":
		t, err := elemType(elemName)
		if err != nil {
			return nil, "", err
		}
		elem = t
	case len(out) > 0:
		elem, _ = expr.TypeOf(out[0])
	default:
		return nil, "", fmt.Errorf("empty array needs an elem type")
	}
	for i, v := range out {
		if !expr.Fits(v, elem) {
			return nil, "", fmt.Errorf("element %d is %T, not %s", i, v, elem)
		}
	}
	return out, elem, nil
}

func elemType(name string) (expr.Type, error) {
	switch name {
	case "", "int":
		return expr.IntType, nil
	case "float":
		return expr.FloatType, nil
	case "string":
		return expr.StringType, nil
	case "bool":
		return expr.BoolType, nil
	}
	return "", fmt.Errorf("unknown element type %q", name)
}

// scalar normalizes a decoded YAML or CUE value.
func scalar(v any) (any, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int64, float64, bool, string:
		return x, nil
	case uint64:
		if x > 1<<63-1 {
			return nil, fmt.Errorf("integer %d overflows int64", x)
		}
		return int64(x), nil
	case *big.Int:
		if !x.IsInt64() {
			return nil, fmt.Errorf("integer %s overflows int64", x)
		}
		return x.Int64(), nil
	}
	return nil, fmt.Errorf("unsupported value %v (%T)", v, v)
}

func buildEnv(name string, fields map[string]any) (*expr.Env, error) {
	env := expr.NewEnv(name)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := envValue(name+"."+k, fields[k])
		if err != nil {
			return nil, err
		}
		env.Set(k, v)
	}
	return env, nil
}

func envValue(path string, v any) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		return buildEnv(path, x)
	case []any:
		vals, _, err := scalars(x, "")
		if err != nil {
			return nil, fieldErr(path, "%v", err)
		}
		return vals, nil
	}
	s, err := scalar(v)
	if err != nil {
		return nil, fieldErr(path, "%v", err)
	}
	return s, nil
}

func addStep(env *expr.Env, src plan.Node, step Step) (plan.Node, error) {
	elem := src.ElemType()
	switch {
	case step.Where != nil && step.Select == nil && step.SelectMany == nil:
		fn, err := parseLambda(env, step.Where.Params, []expr.Type{elem}, step.Where.Body)
		if err != nil {
			return nil, fieldErr("where", "%v", err)
		}
		n, err := plan.NewWhere(src, fn)
		if err != nil {
			return nil, fieldErr("where", "%v", err)
		}
		return n, nil

	case step.Select != nil && step.Where == nil && step.SelectMany == nil:
		fn, err := parseLambda(env, step.Select.Params, []expr.Type{elem}, step.Select.Body)
		if err != nil {
			return nil, fieldErr("select", "%v", err)
		}
		n, err := plan.NewSelect(src, fn)
		if err != nil {
			return nil, fieldErr("select", "%v", err)
		}
		return n, nil

	case step.SelectMany != nil && step.Where == nil && step.Select == nil:
		sm := step.SelectMany
		selector, err := parseLambda(env, sm.Params, []expr.Type{elem}, sm.Body)
		if err != nil {
			return nil, fieldErr("selectMany", "%v", err)
		}
		var projection *expr.Lambda
		if sm.Projection != nil {
			inner := selector.Body.Type().Elem()
			projection, err = parseLambda(env, sm.Projection.Params, []expr.Type{elem, inner}, sm.Projection.Body)
			if err != nil {
				return nil, fieldErr("selectMany.projection", "%v", err)
			}
		}
		n, err := plan.NewSelectMany(src, selector, projection)
		if err != nil {
			return nil, fieldErr("selectMany", "%v", err)
		}
		return n, nil
	}
	return nil, fieldErr("step", "exactly one of where, select or selectMany is required")
}

func aggregate(env *expr.Env, src plan.Node, def AggregateDef) (*plan.Aggregate, error) {
	if def.Seed == "" {
		return nil, fieldErr("aggregate.seed", "is required")
	}
	seed, err := parseExpr(env, def.Seed)
	if err != nil {
		return nil, fieldErr("aggregate.seed", "%v", err)
	}
	fn, err := parseLambda(env, def.Params, []expr.Type{seed.Type(), src.ElemType()}, def.Body)
	if err != nil {
		return nil, fieldErr("aggregate", "%v", err)
	}
	agg, err := plan.NewAggregate(src, seed, fn)
	if err != nil {
		return nil, fieldErr("aggregate", "%v", err)
	}
	return agg, nil
}
