package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/fuseq/internal/backend"
	"github.com/roach88/fuseq/internal/equiv"
	"github.com/roach88/fuseq/internal/expr"
	"github.com/roach88/fuseq/internal/extract"
	"github.com/roach88/fuseq/internal/plan"
)

// sharedCache is the cache of executors created without WithCache. It
// lives as long as the process.
var sharedCache = NewMapCache()

// Executor compiles and runs plans.
//
// Thread-safety: an Executor is safe for concurrent use if its Cache is.
// Both built-in caches are.
type Executor struct {
	cache   Cache
	log     *slog.Logger
	tracer  trace.Tracer
	ids     IDGenerator
	metrics *metrics

	compilations atomic.Int64
	hits         atomic.Int64
	misses       atomic.Int64
}

// Option configures an Executor.
type Option func(*Executor)

// WithCache sets the compiled-plan cache.
func WithCache(c Cache) Option {
	return func(e *Executor) { e.cache = c }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.log = l }
}

// WithRegisterer registers the executor's metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *Executor) { e.metrics = newMetrics(reg) }
}

// WithTracer sets the tracer. Defaults to the global provider's tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) { e.tracer = t }
}

// WithIDGenerator sets how artifacts are named. Defaults to UUIDv7.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Executor) { e.ids = g }
}

// New creates an Executor.
func New(opts ...Option) *Executor {
	e := &Executor{
		cache:  sharedCache,
		log:    slog.Default(),
		tracer: otel.Tracer("github.com/roach88/fuseq/internal/executor"),
		ids:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = newMetrics(nil)
	}
	return e
}

// Stats counts what an executor has done since it was created.
type Stats struct {
	Compilations int64
	CacheHits    int64
	CacheMisses  int64
}

// Stats returns the executor's counters.
func (e *Executor) Stats() Stats {
	return Stats{
		Compilations: e.compilations.Load(),
		CacheHits:    e.hits.Load(),
		CacheMisses:  e.misses.Load(),
	}
}

// Cache returns the executor's cache.
func (e *Executor) Cache() Cache { return e.cache }

// Prepared is a plan ready to run: its artifact and the values extracted
// from this particular plan.
type Prepared struct {
	Artifact *Artifact
	Params   []extract.ContextParameter
	Warnings []string
}

// Args returns the runtime values in argument order.
func (p *Prepared) Args() []any {
	out := make([]any, len(p.Params))
	for i, cp := range p.Params {
		out[i] = cp.Value
	}
	return out
}

// Run invokes the artifact with the prepared arguments.
func (p *Prepared) Run() (any, error) {
	return p.Artifact.Invoke(p.Args()...)
}

// Aggregate folds src with fn starting from seed and runs the resulting
// plan. seed is a zero-parameter *expr.Lambda, an expr.Expr or a plain
// value (int, int64, float64, bool, string).
func (e *Executor) Aggregate(ctx context.Context, src plan.Node, seed any, fn *expr.Lambda) (any, error) {
	var (
		agg *plan.Aggregate
		err error
	)
	if l, ok := seed.(*expr.Lambda); ok {
		agg, err = plan.NewAggregateSeedExpr(src, l, fn)
	} else {
		var s expr.Expr
		if s, err = seedExpr(seed); err == nil {
			agg, err = plan.NewAggregate(src, s, fn)
		}
	}
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, agg)
}

func seedExpr(seed any) (expr.Expr, error) {
	if x, ok := seed.(expr.Expr); ok {
		return x, nil
	}
	if _, ok := expr.TypeOf(seed); !ok {
		return nil, &plan.BuildError{Code: plan.ErrCodeTypeMismatch, Op: "aggregate", Message: fmt.Sprintf("seed of type %T has no expression type", seed)}
	}
	return expr.Lit(seed), nil
}

// Execute runs agg: extraction, cache lookup (compiling on a miss) and
// invocation with the extracted values.
//
// Failures of the compiled code itself are returned as *backend.EvalError.
// Panics raised by user logic, such as an integer division by zero, are
// not recovered.
func (e *Executor) Execute(ctx context.Context, agg *plan.Aggregate) (any, error) {
	ctx, span := e.tracer.Start(ctx, "fuseq.execute")
	defer span.End()

	p, err := e.Prepare(ctx, agg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("fuseq.artifact", p.Artifact.ID),
		attribute.Int("fuseq.params", len(p.Params)),
	)

	start := time.Now()
	v, err := p.Run()
	e.metrics.executeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("execute %s: %w", p.Artifact.ID, err)
	}
	return v, nil
}

// Compile returns the artifact for agg, compiling it if no equivalent plan
// has been compiled yet. The artifact can be invoked directly with values
// of its ParamTypes.
func (e *Executor) Compile(ctx context.Context, agg *plan.Aggregate) (*Artifact, error) {
	p, err := e.Prepare(ctx, agg)
	if err != nil {
		return nil, err
	}
	return p.Artifact, nil
}

// Prepare extracts agg's context parameters and finds or compiles its
// artifact.
func (e *Executor) Prepare(ctx context.Context, agg *plan.Aggregate) (*Prepared, error) {
	if agg == nil {
		return nil, &CompileError{Code: ErrCodeInvalidPlan, Message: "nil plan"}
	}

	res := extract.Extract(agg, extract.WithLogger(e.log))
	placeholders := res.Placeholders()

	v := plan.Validate(res.Plan, placeholders...)
	if !v.OK() {
		return nil, &CompileError{Code: ErrCodeInvalidPlan, Message: strings.Join(v.Errors, "; ")}
	}
	for _, w := range v.Warnings {
		e.log.Debug("plan warning", "warning", w)
	}

	key := equiv.Key{Plan: res.Plan, Params: placeholders}
	art, hit, err := e.cache.GetOrAdd(key, func() (*Artifact, error) {
		return e.compile(ctx, key)
	})
	if err != nil {
		return nil, err
	}

	if hit {
		e.hits.Add(1)
		e.metrics.cacheHits.Inc()
	} else {
		e.misses.Add(1)
		e.metrics.cacheMisses.Inc()
	}
	e.log.Debug("plan prepared", "artifact", art.ID, "hit", hit, "params", len(placeholders))

	return &Prepared{Artifact: art, Params: res.Params, Warnings: v.Warnings}, nil
}

func (e *Executor) compile(ctx context.Context, key equiv.Key) (*Artifact, error) {
	_, span := e.tracer.Start(ctx, "fuseq.compile")
	defer span.End()

	start := time.Now()
	art, err := e.build(key)
	e.metrics.compileDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		e.metrics.compileErrors.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.log.Error("plan compilation failed", "error", err)
		return nil, err
	}

	e.compilations.Add(1)
	e.metrics.compilations.Inc()
	span.SetAttributes(attribute.String("fuseq.artifact", art.ID))
	e.log.Debug("plan compiled", "artifact", art.ID, "params", len(key.Params), "duration", time.Since(start))
	return art, nil
}

func (e *Executor) build(key equiv.Key) (*Artifact, error) {
	agg, ok := key.Plan.(*plan.Aggregate)
	if !ok {
		return nil, &CompileError{Code: ErrCodeInternal, Message: fmt.Sprintf("extraction returned %T", key.Plan)}
	}
	code, err := plan.LowerAggregate(agg)
	if err != nil {
		return nil, newCompileError(err)
	}
	fn, err := backend.Compile(code, key.Params)
	if err != nil {
		return nil, newCompileError(err)
	}
	return &Artifact{ID: e.ids.Generate(), Key: key, Code: code, callable: fn}, nil
}
