package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "fuseq", cmd.Use)
	assert.Contains(t, cmd.Long, "fused loops")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"run", "explain", "bench", "test"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestBenchCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	bench, _, err := cmd.Find([]string{"bench"})
	require.NoError(t, err)

	iterations := bench.Flags().Lookup("iterations")
	require.NotNil(t, iterations)
	assert.Equal(t, "n", iterations.Shorthand)
	assert.Equal(t, "100", iterations.DefValue)
	assert.NotNil(t, bench.Flags().Lookup("vary"))
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "run", "testdata/pipelines/where_select.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}
