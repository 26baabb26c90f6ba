package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Pipeline is the path to a pipeline definition (.yaml or .cue).
	// LoadScenario resolves it relative to the scenario file.
	Pipeline string `yaml:"pipeline"`

	// Runs execute in order against one executor.
	Runs []RunStep `yaml:"runs"`

	// Assertions are checked after all runs.
	Assertions []Assertion `yaml:"assertions"`

	// IDPrefix prefixes the sequential artifact IDs. Defaults to
	// "artifact".
	IDPrefix string `yaml:"id_prefix,omitempty"`
}

// RunStep is one execution of the pipeline.
type RunStep struct {
	// Env reassigns env fields before the run.
	Env map[string]any `yaml:"env,omitempty"`

	// Expect is the expected value. Nil means no check.
	Expect any `yaml:"expect,omitempty"`

	// ExpectError is a substring the run's error must contain. A run with
	// ExpectError must fail.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion checks the executor state after all runs.
type Assertion struct {
	// Type is one of the Assert constants.
	Type string `yaml:"type"`

	// Count is the expected number for compilations, cache_hits and params.
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertCompilations     = "compilations"
	AssertCacheHits        = "cache_hits"
	AssertParams           = "params"
	AssertMatchesReference = "matches_reference"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// errors, and the pipeline path is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Pipeline != "" && !filepath.IsAbs(scenario.Pipeline) {
		scenario.Pipeline = filepath.Join(filepath.Dir(path), scenario.Pipeline)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Pipeline == "" {
		return fmt.Errorf("pipeline is required")
	}
	if _, err := os.Stat(s.Pipeline); os.IsNotExist(err) {
		return fmt.Errorf("pipeline file not found: %s", s.Pipeline)
	}
	if len(s.Runs) == 0 {
		return fmt.Errorf("runs list is required and must be non-empty")
	}
	for i, r := range s.Runs {
		if r.Expect != nil && r.ExpectError != "" {
			return fmt.Errorf("runs[%d]: expect and expect_error are exclusive", i)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertCompilations, AssertCacheHits, AssertParams:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertMatchesReference:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
