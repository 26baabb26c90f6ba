package harness

import "github.com/roach88/fuseq/internal/executor"

// RunRecord is the outcome of one run.
type RunRecord struct {
	Index     int
	Artifact  string
	Hit       bool
	Value     any
	Reference any
	Error     string
}

// ParamRecord describes one extracted context parameter.
type ParamRecord struct {
	Name   string
	Type   string
	Origin string
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool

	Runs []RunRecord

	// Params are the context parameters of the first prepared run.
	Params []ParamRecord

	// Code is the formatted loop of the first prepared run's artifact.
	Code string

	Stats executor.Stats

	// Errors lists failed expectations and assertions. Empty if Pass is
	// true.
	Errors []string
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{Pass: true, Runs: []RunRecord{}, Errors: []string{}}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
