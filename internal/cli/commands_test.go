package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fuseq/internal/harness"
)

const whereSelect = "testdata/pipelines/where_select.yaml"

func decode(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

func TestRunCommand(t *testing.T) {
	out, err := execute(t, "run", whereSelect)
	require.NoError(t, err)
	assert.Equal(t, "81776\n", out)

	out, err = execute(t, "run", "testdata/pipelines/where_select.cue")
	require.NoError(t, err)
	assert.Equal(t, "81862\n", out)

	out, err = execute(t, "run", whereSelect, "--set", "seed=99", "--set", "threshold=5")
	require.NoError(t, err)
	assert.Equal(t, "2698\n", out)
}

func TestRunCommandJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "run", whereSelect)
	require.NoError(t, err)

	resp := decode(t, out)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "where-select", data["pipeline"])
	assert.Equal(t, float64(81776), data["value"])
	assert.NotEmpty(t, data["artifact"])
}

func TestRunCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		exit int
		code string
	}{
		{"missing file", []string{"run", "testdata/pipelines/absent.yaml"}, ExitCommandError, "E_USAGE"},
		{"invalid pipeline", []string{"run", "testdata/pipelines/broken.yaml"}, ExitCommandError, "E_PIPELINE"},
		{"invalid set", []string{"run", whereSelect, "--set", "seed"}, ExitCommandError, "E_PIPELINE"},
		{"capture type changed", []string{"run", whereSelect, "--set", "threshold=three"}, ExitFailure, "E_EVAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"--format", "json"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, tt.exit, GetExitCode(err))

			resp := decode(t, out)
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestExplainCommand(t *testing.T) {
	out, err := execute(t, "explain", whereSelect)
	require.NoError(t, err)

	assert.Contains(t, out, "pipeline: where-select\n")
	assert.Contains(t, out, "  p0 []int = array(len=100) (source)\n")
	assert.Contains(t, out, "  p1 int = 3 (env(env).threshold)\n")
	assert.Contains(t, out, "  p3 int = 13 (env(env).seed)\n")
	assert.Contains(t, out, "code:\n{\n  var acc int\n  acc = p3\n")
	assert.Contains(t, out, "if ((elem % p1) == 0) {")
}

func TestExplainCommandJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "explain", whereSelect, "--set", "seed=99")
	require.NoError(t, err)

	resp := decode(t, out)
	data := resp.Data.(map[string]any)
	params := data["params"].([]any)
	require.Len(t, params, 4)
	assert.Equal(t, map[string]any{"name": "p3", "type": "int", "origin": "env(env).seed", "value": float64(99)}, params[3])
	assert.Contains(t, data["code"], "loop done {")
}

func TestBenchCommand(t *testing.T) {
	out, err := execute(t, "--format", "json", "bench", whereSelect, "--iterations", "5", "--vary", "seed")
	require.NoError(t, err)

	data := decode(t, out).Data.(map[string]any)
	assert.Equal(t, float64(5), data["iterations"])
	assert.Equal(t, float64(1), data["compilations"])
	assert.Equal(t, float64(4), data["cache_hits"])
	assert.Equal(t, float64(1), data["cache_misses"])
	assert.Greater(t, data["execute_seconds"], float64(0))

	// The last iteration ran with seed 4.
	want := int64(4)
	for i := int64(0); i < 100; i++ {
		if i%3 == 0 {
			want = (want + i*4*27) % 100001
		}
	}
	assert.Equal(t, float64(want), data["last"])
}

func TestBenchCommandText(t *testing.T) {
	out, err := execute(t, "bench", whereSelect, "-n", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "iterations: 3\n")
	assert.Contains(t, out, "compilations: 1\n")
	assert.Contains(t, out, "cache: 2 hits, 1 misses\n")
}

func TestBenchCommandInvalidIterations(t *testing.T) {
	_, err := execute(t, "bench", whereSelect, "--iterations", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandSingleScenario(t *testing.T) {
	out, err := execute(t, "test", "testdata/scenarios/seed_reuse.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ seed_reuse")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommandDirectory(t *testing.T) {
	out, err := execute(t, "test", "testdata/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_expectation")
	assert.Contains(t, out, "runs[0]: expected 1, got 81776")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")

	out, err = execute(t, "--format", "json", "test", "testdata/scenarios", "--filter", "seed_*")
	require.NoError(t, err)
	data := decode(t, out).Data.(map[string]any)
	assert.Equal(t, float64(1), data["total"])
	assert.Equal(t, float64(1), data["passed"])
}

func TestTestCommandMissingPath(t *testing.T) {
	_, err := execute(t, "test", "testdata/nowhere")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandGolden(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"scenarios/seed_reuse.yaml", "pipelines/where_select.yaml"} {
		data, err := os.ReadFile(filepath.Join("testdata", name))
		require.NoError(t, err)
		require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}
	scenarioFile := filepath.Join(dir, "scenarios", "seed_reuse.yaml")
	goldenFile := filepath.Join(dir, "scenarios", "golden", "seed_reuse.golden")

	out, err := execute(t, "test", scenarioFile, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ seed_reuse (golden updated)")

	golden, err := os.ReadFile(goldenFile)
	require.NoError(t, err)
	scenario, err := harness.LoadScenario(scenarioFile)
	require.NoError(t, err)
	result, err := harness.Run(t.Context(), scenario)
	require.NoError(t, err)
	assert.Equal(t, string(harness.Snapshot(scenario, result)), string(golden))

	_, err = execute(t, "test", scenarioFile)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenFile, []byte("stale"), 0o644))
	out, err = execute(t, "test", scenarioFile)
	require.Error(t, err)
	assert.Contains(t, out, "golden file mismatch")
}
