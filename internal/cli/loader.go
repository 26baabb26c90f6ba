package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fuseq/internal/pipeline"
)

// openPipeline loads and builds a pipeline file, then applies --set
// overrides of the form field=value. Values are YAML scalars, so 99 is an
// int, 1.5 a float and "99" a string.
func openPipeline(ctx context.Context, path string, sets []string) (*pipeline.Pipeline, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("pipeline file not found: %s", path))
	}
	def, err := pipeline.LoadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := pipeline.Build(ctx, def)
	if err != nil {
		return nil, err
	}
	overrides, err := parseSets(sets)
	if err == nil {
		err = p.SetEnv(overrides)
	}
	if err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func parseSets(sets []string) (map[string]any, error) {
	out := make(map[string]any, len(sets))
	for _, s := range sets {
		field, raw, ok := strings.Cut(s, "=")
		if !ok || field == "" {
			return nil, &pipeline.Error{Field: "--set", Message: fmt.Sprintf("%q is not field=value", s)}
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, &pipeline.Error{Field: "--set", Message: fmt.Sprintf("%q: %v", s, err)}
		}
		if v == nil {
			return nil, &pipeline.Error{Field: "--set", Message: fmt.Sprintf("%q has an empty value", s)}
		}
		out[field] = v
	}
	return out, nil
}
