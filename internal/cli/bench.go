package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/fuseq/internal/executor"
)

// BenchOptions holds flags for the bench command.
type BenchOptions struct {
	*RootOptions
	Set        []string
	Iterations int
	Vary       string
}

// BenchResult is the JSON payload of the bench command.
type BenchResult struct {
	Pipeline       string        `json:"pipeline"`
	Iterations     int           `json:"iterations"`
	Compilations   int64         `json:"compilations"`
	CacheHits      int64         `json:"cache_hits"`
	CacheMisses    int64         `json:"cache_misses"`
	Total          time.Duration `json:"total_ns"`
	PerIteration   time.Duration `json:"per_iteration_ns"`
	CompileSeconds float64       `json:"compile_seconds"`
	ExecuteSeconds float64       `json:"execute_seconds"`
	Last           any           `json:"last"`
}

// NewBenchCommand creates the bench command.
func NewBenchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BenchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bench <pipeline-file>",
		Short: "Execute a pipeline repeatedly and report cache behavior",
		Long: `Execute a pipeline file N times against one executor and report how many
times it was compiled, the cache hits and misses, and the time spent.

With --vary, the named env field is set to the iteration number before each
execution. The field is a captured value, so the pipeline still compiles
once.

Examples:
  fuseq bench pipeline.yaml --iterations 1000
  fuseq bench pipeline.yaml --iterations 100 --vary seed`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return benchPipeline(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "override an env field (field=value)")
	cmd.Flags().IntVarP(&opts.Iterations, "iterations", "n", 100, "number of executions")
	cmd.Flags().StringVar(&opts.Vary, "vary", "", "env field set to the iteration number before each execution")

	return cmd
}

func benchPipeline(opts *BenchOptions, path string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	ctx := cmd.Context()

	if opts.Iterations < 1 {
		return out.Fail("invalid flags", NewExitError(ExitCommandError, fmt.Sprintf("--iterations must be positive, got %d", opts.Iterations)))
	}

	p, err := openPipeline(ctx, path, opts.Set)
	if err != nil {
		return out.Fail("failed to load pipeline", err)
	}
	defer p.Close()

	reg := prometheus.NewRegistry()
	ex := executor.New(
		executor.WithCache(executor.NewMapCache()),
		executor.WithRegisterer(reg),
		executor.WithLogger(slog.Default()),
	)

	var last any
	start := time.Now()
	for i := range opts.Iterations {
		if opts.Vary != "" {
			p.Env.Set(opts.Vary, i)
		}
		last, err = ex.Execute(ctx, p.Plan)
		if err != nil {
			return out.Fail(fmt.Sprintf("iteration %d failed", i), err)
		}
	}
	total := time.Since(start)

	stats := ex.Stats()
	result := BenchResult{
		Pipeline:     p.Name,
		Iterations:   opts.Iterations,
		Compilations: stats.Compilations,
		CacheHits:    stats.CacheHits,
		CacheMisses:  stats.CacheMisses,
		Total:        total,
		PerIteration: total / time.Duration(opts.Iterations),
		Last:         last,
	}
	result.CompileSeconds, result.ExecuteSeconds, err = durations(reg)
	if err != nil {
		return out.Fail("failed to read metrics", err)
	}

	text := fmt.Sprintf("pipeline: %s\niterations: %d\ncompilations: %d\ncache: %d hits, %d misses\ntime: %s total, %s per iteration\ncompile: %.6fs execute: %.6fs\nlast: %v\n",
		result.Pipeline, result.Iterations, result.Compilations, result.CacheHits, result.CacheMisses,
		result.Total, result.PerIteration, result.CompileSeconds, result.ExecuteSeconds, result.Last)
	return out.Success(result, text)
}

// durations reads the summed compile and execute histograms.
func durations(g prometheus.Gatherer) (compile, execute float64, err error) {
	families, err := g.Gather()
	if err != nil {
		return 0, 0, err
	}
	for _, mf := range families {
		var sum float64
		for _, m := range mf.GetMetric() {
			sum += m.GetHistogram().GetSampleSum()
		}
		switch mf.GetName() {
		case "fuseq_executor_compile_duration_seconds":
			compile = sum
		case "fuseq_executor_execute_duration_seconds":
			execute = sum
		}
	}
	return compile, execute, nil
}
