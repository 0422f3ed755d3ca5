package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string `json:"scenario_name"`
	RunID        string `json:"run_id"`
	Result       *Result
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	cycles := make([]any, len(s.Result.Trace))
	for i, cycle := range s.Result.Trace {
		cycles[i] = cycle.Document()
	}

	snapshot := map[string]any{
		"scenario_name": s.ScenarioName,
		"run_id":        s.RunID,
		"cycles":        cycles,
	}
	if s.Result.RuntimeError != nil {
		snapshot["runtime_error"] = s.Result.RuntimeError.Error()
	}
	return snapshot
}

// Snapshot renders the result as the canonical JSON stored in golden files.
// Every cycle is included, empty or not, so that changes to deadline
// scheduling show up as golden diffs.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		RunID:        result.RunID,
		Result:       result,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	// Compare with golden file using goldie
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
