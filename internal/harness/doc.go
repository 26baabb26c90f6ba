// Package harness runs conformance scenarios against the executor.
//
// A scenario names a pipeline file and a list of runs. Each run may
// reassign env fields before executing, and may state the expected value
// or error. After all runs, assertions check the executor's counters:
//
//	name: seed-reuse
//	description: changing the seed reuses the compiled loop
//	pipeline: pipelines/where_select.yaml
//	runs:
//	  - env: {seed: 13}
//	  - env: {seed: 99}
//	assertions:
//	  - {type: compilations, count: 1}
//	  - {type: matches_reference}
//
// Every scenario runs with a fresh cache and sequential artifact IDs, so
// the result can be compared against a golden snapshot.
//
// # Assertion Types
//
//   - compilations: the executor compiled exactly Count artifacts
//   - cache_hits: exactly Count runs reused an artifact
//   - params: the pipeline extracts exactly Count context parameters
//   - matches_reference: every successful run agrees with the unfused
//     per-operator evaluation of the same plan
package harness
