package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fuseq/internal/executor"
	"github.com/roach88/fuseq/internal/expr"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	Set []string
}

// ExplainParam is one context parameter in explain output.
type ExplainParam struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Origin string `json:"origin"`
	Value  any    `json:"value"`
}

// ExplainResult is the JSON payload of the explain command.
type ExplainResult struct {
	Pipeline string         `json:"pipeline"`
	Params   []ExplainParam `json:"params"`
	Warnings []string       `json:"warnings,omitempty"`
	Code     string         `json:"code"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <pipeline-file>",
		Short: "Show the extracted parameters and the fused loop",
		Long: `Compile a pipeline file without running it and print the context
parameters extracted from it and the fused loop they are passed to.

Examples:
  fuseq explain pipeline.yaml
  fuseq explain pipeline.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return explainPipeline(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "override an env field (field=value)")

	return cmd
}

func explainPipeline(opts *ExplainOptions, path string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	ctx := cmd.Context()

	p, err := openPipeline(ctx, path, opts.Set)
	if err != nil {
		return out.Fail("failed to load pipeline", err)
	}
	defer p.Close()

	ex := executor.New(executor.WithCache(executor.NoopCache{}), executor.WithLogger(slog.Default()))
	prep, err := ex.Prepare(ctx, p.Plan)
	if err != nil {
		return out.Fail("failed to compile pipeline", err)
	}

	result := ExplainResult{
		Pipeline: p.Name,
		Params:   make([]ExplainParam, len(prep.Params)),
		Warnings: prep.Warnings,
		Code:     expr.Format(prep.Artifact.Code),
	}
	for i, cp := range prep.Params {
		result.Params[i] = ExplainParam{
			Name:   cp.Placeholder.Name,
			Type:   cp.Type.String(),
			Origin: cp.Origin,
			Value:  describeValue(cp.Value),
		}
	}
	return out.Success(result, formatExplain(result))
}

// describeValue keeps explain output short for arrays and sequences.
func describeValue(v any) any {
	switch x := v.(type) {
	case []any:
		return fmt.Sprintf("array(len=%d)", len(x))
	case *expr.Sequence:
		return "sequence"
	case *expr.Env:
		return "env(" + x.Name() + ")"
	}
	return v
}

func formatExplain(r ExplainResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "pipeline: %s\n", r.Pipeline)
	b.WriteString("params:\n")
	for _, p := range r.Params {
		fmt.Fprintf(&b, "  %s %s = %v (%s)\n", p.Name, p.Type, p.Value, p.Origin)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "warning: %s\n", w)
	}
	b.WriteString("code:\n")
	b.WriteString(r.Code)
	return b.String()
}
