package harness

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a result as deterministic text: the extracted
// parameters, each run, the executor counters and the fused loop.
func Snapshot(scenario *Scenario, result *Result) []byte {
	var buf strings.Builder
	fmt.Fprintf(&buf, "scenario: %s\n", scenario.Name)
	fmt.Fprintf(&buf, "pipeline: %s\n", filepath.Base(scenario.Pipeline))

	buf.WriteString("params:\n")
	for _, p := range result.Params {
		fmt.Fprintf(&buf, "  %s %s %s\n", p.Name, p.Type, p.Origin)
	}

	buf.WriteString("runs:\n")
	for _, r := range result.Runs {
		fmt.Fprintf(&buf, "  [%d] %s\n", r.Index, describeRun(r))
	}

	fmt.Fprintf(&buf, "stats: compilations=%d hits=%d misses=%d\n",
		result.Stats.Compilations, result.Stats.CacheHits, result.Stats.CacheMisses)
	buf.WriteString("code:\n")
	buf.WriteString(result.Code)
	return []byte(buf.String())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario, result)
	return result, nil
}

// AssertGolden compares an existing result against the scenario's golden
// file without re-running it.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, Snapshot(scenario, result))
}
