package harness

import (
	"fmt"
	"reflect"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Runs     []RunRecord
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Runs) > 0 {
		fmt.Fprintf(&buf, "\nRuns:\n")
		for _, r := range e.Runs {
			fmt.Fprintf(&buf, "  [%d] %s\n", r.Index, describeRun(r))
		}
	}
	return buf.String()
}

func describeRun(r RunRecord) string {
	if r.Error != "" {
		return "error: " + r.Error
	}
	state := "miss"
	if r.Hit {
		state = "hit"
	}
	return fmt.Sprintf("%s %s %v", r.Artifact, state, r.Value)
}

// EvaluateAssertions checks every assertion against the result and
// returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertCompilations:
		return assertCount(a, result.Stats.Compilations, result.Runs)
	case AssertCacheHits:
		return assertCount(a, result.Stats.CacheHits, result.Runs)
	case AssertParams:
		return assertCount(a, int64(len(result.Params)), nil)
	case AssertMatchesReference:
		for _, r := range result.Runs {
			if r.Error != "" {
				continue
			}
			if !valuesEqual(r.Value, r.Reference) {
				return &AssertionError{
					Type:     a.Type,
					Expected: fmt.Sprintf("run %d to equal the reference %v", r.Index, r.Reference),
					Actual:   fmt.Sprintf("%v", r.Value),
					Runs:     result.Runs,
				}
			}
		}
		return nil
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func assertCount(a Assertion, actual int64, runs []RunRecord) error {
	if actual == int64(a.Count) {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%d", a.Count),
		Actual:   fmt.Sprintf("%d", actual),
		Runs:     runs,
	}
}

// valuesEqual compares an executed value with an expected one decoded
// from YAML, where integers arrive as int.
func valuesEqual(actual, expected any) bool {
	return reflect.DeepEqual(normalize(actual), normalize(expected))
}

func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}
