package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fuseq/internal/backend"
	"github.com/roach88/fuseq/internal/executor"
	"github.com/roach88/fuseq/internal/pipeline"
	"github.com/roach88/fuseq/internal/plan"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Success(map[string]int{"value": 3}, "ignored"))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"value": float64(3)}, resp.Data)
	assert.NotContains(t, buf.String(), "ignored")
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, f.Success(map[string]int{"value": 3}, "3\n"))
	assert.Equal(t, "3\n", buf.String())
}

func TestOutputFormatter_Error(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}
	require.NoError(t, f.Error("E_PIPELINE", "bad file", nil))
	assert.Equal(t, "Error [E_PIPELINE]: bad file\n", buf.String())

	buf.Reset()
	f.Format = "json"
	require.NoError(t, f.Error("E_PIPELINE", "bad file", "details"))
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E_PIPELINE", resp.Error.Code)
	assert.Equal(t, "details", resp.Error.Details)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		exit int
	}{
		{"exit error", NewExitError(ExitCommandError, "usage"), "E_USAGE", ExitCommandError},
		{"pipeline", &pipeline.Error{Field: "name", Message: "is required"}, "E_PIPELINE", ExitCommandError},
		{"build", &plan.BuildError{Code: plan.ErrCodeArity, Op: "select"}, "E202", ExitCommandError},
		{"compile", &executor.CompileError{Code: executor.ErrCodeInvalidPlan}, "INVALID_PLAN", ExitFailure},
		{"eval", fmt.Errorf("run: %w", &backend.EvalError{Op: "index", Err: errors.New("out of range")}), "E_EVAL", ExitFailure},
		{"other", errors.New("boom"), "E_INTERNAL", ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, exit := classify(tt.err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.exit, exit)
		})
	}
}

func TestFailWrapsExitCode(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}
	err := f.Fail("failed to load pipeline", &pipeline.Error{Field: "name", Message: "is required"})

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), `"E_PIPELINE"`)
}

func TestExitError(t *testing.T) {
	err := WrapExitError(ExitFailure, "failed", errors.New("cause"))
	assert.Equal(t, "failed: cause", err.Error())
	assert.Equal(t, "cause", errors.Unwrap(err).Error())
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("outer: %w", err)))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, "bare", NewExitError(ExitCommandError, "bare").Error())
}
