package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/fuseq/internal/executor"
	"github.com/roach88/fuseq/internal/expr"
	"github.com/roach88/fuseq/internal/pipeline"
	"github.com/roach88/fuseq/internal/testutil"
)

// Run executes a scenario and returns the result.
//
// Each scenario gets a fresh executor with its own cache and a sequential
// ID generator, so artifact IDs and hit/miss patterns are reproducible.
// Expectation and assertion failures are reported in the result; the error
// return is for scenarios that cannot run at all.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	def, err := pipeline.LoadFile(scenario.Pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline: %w", err)
	}
	p, err := pipeline.Build(ctx, def)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer p.Close()

	prefix := scenario.IDPrefix
	if prefix == "" {
		prefix = "artifact"
	}
	ex := executor.New(
		executor.WithCache(executor.NewMapCache()),
		executor.WithIDGenerator(testutil.NewSequentialIDGenerator(prefix)),
		executor.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	result := NewResult()
	for i, step := range scenario.Runs {
		if err := p.SetEnv(step.Env); err != nil {
			return nil, fmt.Errorf("runs[%d]: %w", i, err)
		}
		rec := runOnce(ctx, ex, p, result)
		rec.Index = i
		checkExpectations(result, rec, step)
		result.Runs = append(result.Runs, rec)
	}
	result.Stats = ex.Stats()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func runOnce(ctx context.Context, ex *executor.Executor, p *pipeline.Pipeline, result *Result) RunRecord {
	var rec RunRecord
	before := ex.Stats().CacheHits
	prep, err := ex.Prepare(ctx, p.Plan)
	if err != nil {
		rec.Error = err.Error()
		return rec
	}
	rec.Artifact = prep.Artifact.ID
	rec.Hit = ex.Stats().CacheHits > before

	if result.Code == "" {
		result.Code = expr.Format(prep.Artifact.Code)
		for _, cp := range prep.Params {
			result.Params = append(result.Params, ParamRecord{
				Name:   cp.Placeholder.Name,
				Type:   cp.Type.String(),
				Origin: cp.Origin,
			})
		}
	}

	v, err := prep.Run()
	if err == nil {
		err = p.SourceErr()
	}
	if err != nil {
		rec.Error = err.Error()
		return rec
	}
	rec.Value = v

	ref, err := testutil.Reference(p.Plan)
	if err != nil {
		rec.Reference = fmt.Sprintf("error: %v", err)
	} else {
		rec.Reference = ref
	}
	return rec
}

func checkExpectations(result *Result, rec RunRecord, step RunStep) {
	switch {
	case step.ExpectError != "":
		if rec.Error == "" {
			result.AddError(fmt.Sprintf("runs[%d]: expected error containing %q, got value %v", rec.Index, step.ExpectError, rec.Value))
		} else if !strings.Contains(rec.Error, step.ExpectError) {
			result.AddError(fmt.Sprintf("runs[%d]: expected error containing %q, got %q", rec.Index, step.ExpectError, rec.Error))
		}
	case rec.Error != "":
		result.AddError(fmt.Sprintf("runs[%d]: unexpected error: %s", rec.Index, rec.Error))
	case step.Expect != nil && !valuesEqual(rec.Value, step.Expect):
		result.AddError(fmt.Sprintf("runs[%d]: expected %v, got %v", rec.Index, step.Expect, rec.Value))
	}
}
