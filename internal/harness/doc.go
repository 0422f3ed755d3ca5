// Package harness provides conformance testing for StreamIR specifications.
//
// The harness compiles a CUE specification, feeds a scenario's events to a
// monitor and validates the resulting cycles against the scenario's
// assertions.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	spec: ../specs/sampler.cue
//	tie_break: periodic-first
//	events:
//	  - time: 0
//	    inputs: { a: 1 }
//	  - time: 1s
//	    inputs: { a: 2 }
//	assertions:
//	  - type: verdict_times
//	    stream: s
//	    times: [0.1, 0.2, 0.3]
//	  - type: final_value
//	    stream: s
//	    value: 1
//
// Instead of spec, a scenario may carry its specification inline under
// source.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - verdict_contains: some cycle (optionally at a given time) has a matching change
//   - verdict_times: matching changes happened exactly at the given timestamps
//   - verdict_count: the number of matching changes
//   - final_value: the last value of a stream or instance
//   - runtime_error: the run stopped with the given error code
//
// Changes are matched by stream, kind (value, spawn, close), instance
// parameters and value. Integers and floats compare numerically.
//
// # Deterministic Testing
//
// Every scenario runs with a fixed run id (the scenario name unless run_id
// is set) against a fresh in-memory SQLite store. After the run, the
// recorded events are replayed against a new monitor and every cycle hash
// is compared with the recording; a divergence fails the scenario.
//
// Golden snapshots (see Snapshot) hold the canonical JSON of every cycle,
// so identical scenarios produce byte-identical files.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/sampler.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, err := range result.Errors {
//	        log.Println(err)
//	    }
//	}
package harness
