package harness

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/reactive-systems/rtlola-streamir/internal/engine"
	"github.com/reactive-systems/rtlola-streamir/internal/ir"
	"github.com/reactive-systems/rtlola-streamir/internal/testutil"
	"github.com/reactive-systems/rtlola-streamir/internal/verdict"
)

// instancesResult is a hand-built trace over testutil.Instances: instances
// 5 and 3 spawn, instance 5 gets a value, then both close.
func instancesResult() *Result {
	r := NewResult()
	r.spec = testutil.Instances()
	r.AddCycle(verdict.Timed{TS: 0, Incremental: verdict.Incremental{
		Inputs:  []verdict.InputValue{{Input: 0, Value: ir.Int(5)}},
		Outputs: []verdict.OutputChanges{{Output: 0, Changes: []verdict.Change{verdict.SpawnOf(ir.Parameters{ir.Int(5)})}}},
	}})
	r.AddCycle(verdict.Timed{TS: time.Second, Incremental: verdict.Incremental{
		Inputs: []verdict.InputValue{{Input: 0, Value: ir.Int(3)}},
		Outputs: []verdict.OutputChanges{{Output: 0, Changes: []verdict.Change{
			verdict.SpawnOf(ir.Parameters{ir.Int(3)}),
			verdict.ValueOf(ir.Parameters{ir.Int(5)}, ir.Float(2.5)),
		}}},
	}})
	r.AddCycle(verdict.Timed{TS: 1500 * time.Millisecond})
	r.AddCycle(verdict.Timed{TS: 2 * time.Second, Incremental: verdict.Incremental{
		Inputs: []verdict.InputValue{{Input: 0, Value: ir.Int(-1)}},
		Outputs: []verdict.OutputChanges{{Output: 0, Changes: []verdict.Change{
			verdict.CloseOf(ir.Parameters{ir.Int(3)}),
			verdict.CloseOf(ir.Parameters{ir.Int(5)}),
		}}},
	}})
	return r
}

func yamlValue(t *testing.T, src string) yaml.Node {
	t.Helper()
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
	return *doc.Content[0]
}

func at(d time.Duration) *Timestamp {
	ts := Timestamp(d)
	return &ts
}

func TestEvaluateAssertions_VerdictContains(t *testing.T) {
	r := instancesResult()

	tests := []struct {
		name      string
		assertion Assertion
		pass      bool
	}{
		{"spawn any time", Assertion{Stream: "c", Kind: "spawn", Params: []any{3}}, true},
		{"spawn at time", Assertion{Stream: "c", Kind: "spawn", Params: []any{5}, At: at(0)}, true},
		{"spawn wrong time", Assertion{Stream: "c", Kind: "spawn", Params: []any{5}, At: at(time.Second)}, false},
		{"spawn unknown instance", Assertion{Stream: "c", Kind: "spawn", Params: []any{7}}, false},
		{"value any", Assertion{Stream: "c"}, true},
		{"value numeric match", Assertion{Stream: "c", Params: []any{5}, Value: yamlValue(t, "2.5")}, true},
		{"value mismatch", Assertion{Stream: "c", Value: yamlValue(t, "3")}, false},
		{"close", Assertion{Stream: "c", Kind: "close", At: at(2 * time.Second)}, true},
		{"input value", Assertion{Stream: "a", Value: yamlValue(t, "-1")}, true},
		{"input never", Assertion{Stream: "a", Value: yamlValue(t, "4")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.assertion.Type = AssertVerdictContains
			errs := EvaluateAssertions(r, []Assertion{tt.assertion})
			if tt.pass {
				assert.Empty(t, errs)
			} else {
				require.Len(t, errs, 1)
				assert.Contains(t, errs[0], "Assertion failed: verdict_contains")
				assert.Contains(t, errs[0], "not found in trace")
			}
		})
	}
}

func TestEvaluateAssertions_VerdictTimes(t *testing.T) {
	r := instancesResult()

	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertVerdictTimes, Stream: "c", Kind: "spawn", Times: []Timestamp{0, Timestamp(time.Second)}},
		{Type: AssertVerdictTimes, Stream: "c", Kind: "close", Times: []Timestamp{Timestamp(2 * time.Second), Timestamp(2 * time.Second)}},
		{Type: AssertVerdictTimes, Stream: "a", Times: []Timestamp{0, Timestamp(time.Second), Timestamp(2 * time.Second)}},
	})
	assert.Empty(t, errs)

	errs = EvaluateAssertions(r, []Assertion{
		{Type: AssertVerdictTimes, Stream: "c", Kind: "spawn", Times: []Timestamp{0}},
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Expected: spawn of c at [0]")
	assert.Contains(t, errs[0], "Actual: [0, 1]")
}

func TestEvaluateAssertions_VerdictCount(t *testing.T) {
	r := instancesResult()

	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertVerdictCount, Stream: "c", Kind: "spawn", Count: count(2)},
		{Type: AssertVerdictCount, Stream: "c", Kind: "close", Params: []any{5}, Count: count(1)},
		{Type: AssertVerdictCount, Stream: "c", Count: count(1)},
		{Type: AssertVerdictCount, Stream: "c", Value: yamlValue(t, "1"), Count: count(0)},
	})
	assert.Empty(t, errs)

	errs = EvaluateAssertions(r, []Assertion{
		{Type: AssertVerdictCount, Stream: "a", Count: count(2)},
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "3 occurrence(s)")
}

func TestEvaluateAssertions_FinalValue(t *testing.T) {
	r := instancesResult()

	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertFinalValue, Stream: "a", Value: yamlValue(t, "-1")},
		{Type: AssertFinalValue, Stream: "c", Params: []any{5}, Value: yamlValue(t, "2.5")},
	})
	assert.Empty(t, errs)

	errs = EvaluateAssertions(r, []Assertion{
		{Type: AssertFinalValue, Stream: "c", Params: []any{3}, Value: yamlValue(t, "1")},
		{Type: AssertFinalValue, Stream: "a", Value: yamlValue(t, "5")},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "Actual: no value")
	assert.Contains(t, errs[1], "Actual: -1")
}

func TestEvaluateAssertions_RuntimeError(t *testing.T) {
	r := instancesResult()

	errs := EvaluateAssertions(r, []Assertion{{Type: AssertRuntimeError, Code: "TYPE_ERROR"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "run completed without error")

	r.RuntimeError = &engine.RuntimeError{Code: engine.ErrCodeType, Message: "string value for int input"}
	assert.Empty(t, EvaluateAssertions(r, []Assertion{{Type: AssertRuntimeError, Code: "TYPE_ERROR"}}))

	errs = EvaluateAssertions(r, []Assertion{{Type: AssertRuntimeError, Code: "TIME_REGRESSION"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "TYPE_ERROR: string value for int input")

	r.RuntimeError = errors.New("disk full")
	errs = EvaluateAssertions(r, []Assertion{{Type: AssertRuntimeError, Code: "TYPE_ERROR"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "disk full")
}

func TestEvaluateAssertions_UnknownStream(t *testing.T) {
	r := instancesResult()

	errs := EvaluateAssertions(r, []Assertion{{Type: AssertVerdictContains, Stream: "nope"}})
	require.Len(t, errs, 1)
	assert.Equal(t, `assertion[0]: unknown stream "nope"`, errs[0])
}

func TestAssertionError_Trace(t *testing.T) {
	r := instancesResult()

	errs := EvaluateAssertions(r, []Assertion{{Type: AssertVerdictCount, Stream: "c", Count: count(9)}})
	require.Len(t, errs, 1)

	// empty cycles are left out of the trace listing
	assert.Contains(t, errs[0], "Full trace:\n  [1] 0s: a = 5, c Spawn<5>\n")
	assert.Contains(t, errs[0], "  [3] 2s: a = -1, c Close<3>, c Close<5>\n")
	assert.NotContains(t, errs[0], "1.5s")
}

func TestValueMatches(t *testing.T) {
	assert.True(t, valueMatches(ir.Int(2), ir.Float(2)))
	assert.True(t, valueMatches(ir.Float(2), ir.Int(2)))
	assert.False(t, valueMatches(ir.Int(2), ir.String("2")))
	assert.True(t, valueMatches(ir.Tuple{ir.Int(1), ir.String("x")}, ir.Tuple{ir.Float(1), ir.String("x")}))
	assert.False(t, valueMatches(ir.Tuple{ir.Int(1)}, ir.Tuple{ir.Int(1), ir.Int(2)}))
	assert.True(t, valueMatches(ir.None{}, ir.None{}))
	assert.False(t, valueMatches(ir.None{}, ir.Int(0)))
}
