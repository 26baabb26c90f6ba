// Package extract hoists captured runtime values out of a plan.
//
// A pipeline built twice with different captured values (a threshold, a
// seed, the source array itself) should compile once. Extraction rewrites
// every read of a captured variable into a fresh placeholder parameter and
// records the value read, so the rewritten plan depends only on the shape
// and types of the captures, and the values travel separately as
// positional arguments.
package extract

import (
	"fmt"
	"log/slog"

	"github.com/roach88/fuseq/internal/expr"
	"github.com/roach88/fuseq/internal/plan"
)

// ClosureCaptureKey identifies one captured variable: a field of one
// environment. Every read of the same key within a plan maps to the same
// placeholder.
type ClosureCaptureKey struct {
	Env   *expr.Env
	Field string
}

// ContextParameter is a captured value hoisted out of a plan.
type ContextParameter struct {
	// Placeholder is the parameter that replaced the capture in the plan.
	// It becomes a formal parameter of the compiled callable.
	Placeholder *expr.Param

	// Value is the runtime value read at extraction time.
	Value any

	// Type is the declared type of the capture. It is part of the plan's
	// shape; Value is not.
	Type expr.Type

	// Origin describes where the value came from, e.g. "env(closure).seed"
	// or "source". Only used in diagnostics.
	Origin string
}

// Result is the output of Extract.
type Result struct {
	// Plan is the rewritten plan. It contains no reads of captured
	// environments that could be evaluated.
	Plan plan.Node

	// Params lists the hoisted values in first-encounter order, which is
	// pipeline order: source first, aggregate last.
	Params []ContextParameter
}

// Placeholders returns the placeholder parameters in order.
func (r Result) Placeholders() []*expr.Param {
	out := make([]*expr.Param, len(r.Params))
	for i, p := range r.Params {
		out[i] = p.Placeholder
	}
	return out
}

// Values returns the runtime values in order.
func (r Result) Values() []any {
	out := make([]any, len(r.Params))
	for i, p := range r.Params {
		out[i] = p.Value
	}
	return out
}

// Types returns the declared parameter types in order.
func (r Result) Types() []expr.Type {
	out := make([]expr.Type, len(r.Params))
	for i, p := range r.Params {
		out[i] = p.Type
	}
	return out
}

// Option configures an extraction.
type Option func(*extractor)

// WithLogger sets the logger used to report captures that could not be
// evaluated. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(x *extractor) { x.log = l }
}

// Extract rewrites n, replacing:
//   - each member read on a captured *expr.Env with a placeholder, one
//     placeholder per ClosureCaptureKey;
//   - a constant source reference with a placeholder;
//   - a constant aggregate seed with a placeholder.
//
// A captured member that cannot be read (the field does not exist, or
// holds a value of another type) is left in place. The backend reads it at
// run time instead and reports the failure then.
//
// Extract does not modify n.
func Extract(n plan.Node, opts ...Option) Result {
	x := &extractor{
		seen: make(map[ClosureCaptureKey]*expr.Param),
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(x)
	}
	rewritten := plan.MapExprs(n, x.visit)
	return Result{Plan: rewritten, Params: x.params}
}

type extractor struct {
	seen   map[ClosureCaptureKey]*expr.Param
	params []ContextParameter
	log    *slog.Logger
}

func (x *extractor) visit(site plan.Site, e expr.Expr) expr.Expr {
	if c, ok := e.(*expr.Constant); ok && (site == plan.SiteSource || site == plan.SiteSeed) {
		return x.hoist(c.Value, c.T, site.String())
	}
	return expr.Rewrite(e, x.member)
}

func (x *extractor) member(e expr.Expr) (expr.Expr, bool) {
	m, ok := e.(*expr.Member)
	if !ok {
		return nil, false
	}
	c, ok := m.Object.(*expr.Constant)
	if !ok {
		return nil, false
	}
	env, ok := c.Value.(*expr.Env)
	if !ok || env == nil {
		return nil, false
	}

	key := ClosureCaptureKey{Env: env, Field: expr.NormalizeField(m.Field)}
	if p, found := x.seen[key]; found {
		return p, true
	}

	v, err := env.Lookup(m.Field)
	if err == nil && !expr.Fits(v, m.T) {
		err = fmt.Errorf("value %T does not fit declared type %s", v, m.T)
	}
	if err != nil {
		x.log.Debug("capture left in place", "env", env.Name(), "field", m.Field, "error", err)
		return m, true
	}

	p := x.hoist(v, m.T, fmt.Sprintf("env(%s).%s", env.Name(), m.Field))
	x.seen[key] = p
	return p, true
}

func (x *extractor) hoist(v any, t expr.Type, origin string) *expr.Param {
	p := expr.NewParam(fmt.Sprintf("p%d", len(x.params)), t)
	x.params = append(x.params, ContextParameter{Placeholder: p, Value: v, Type: t, Origin: origin})
	return p
}
