package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/fuseq/internal/executor"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Set []string
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Pipeline string `json:"pipeline"`
	Value    any    `json:"value"`
	Artifact string `json:"artifact"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <pipeline-file>",
		Short: "Compile and execute a pipeline",
		Long: `Compile a pipeline file into a fused loop and execute it.

Pipeline files are YAML (.yaml, .yml) or CUE (.cue). Env fields can be
overridden with --set; the overrides are captured values and do not
change the compiled loop.

Examples:
  fuseq run pipeline.yaml
  fuseq run pipeline.cue --set seed=99 --set threshold=5
  fuseq run pipeline.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "override an env field (field=value)")

	return cmd
}

func runPipeline(opts *RunOptions, path string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	ctx := cmd.Context()

	p, err := openPipeline(ctx, path, opts.Set)
	if err != nil {
		return out.Fail("failed to load pipeline", err)
	}
	defer p.Close()

	ex := executor.New(executor.WithLogger(slog.Default()))
	prep, err := ex.Prepare(ctx, p.Plan)
	if err != nil {
		return out.Fail("failed to compile pipeline", err)
	}
	slog.Debug("pipeline prepared", "pipeline", p.Name, "artifact", prep.Artifact.ID, "params", len(prep.Params))

	v, err := prep.Run()
	if err == nil {
		err = p.SourceErr()
	}
	if err != nil {
		return out.Fail("pipeline failed", err)
	}

	return out.Success(RunResult{Pipeline: p.Name, Value: v, Artifact: prep.Artifact.ID}, fmt.Sprintf("%v\n", v))
}
