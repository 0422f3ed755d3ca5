package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactive-systems/rtlola-streamir/internal/engine"
	"github.com/reactive-systems/rtlola-streamir/internal/ir"
	"github.com/reactive-systems/rtlola-streamir/internal/verdict"
)

const plusOneSource = `
inputs: a: type: "int"
outputs: b: type: "int"
eval: [{assign: "b", expr: {op: "+", args: ["a", 1]}}]
`

func plusOneScenario(assertions ...Assertion) *Scenario {
	return &Scenario{
		Name:        "plus_one",
		Description: "b = a + 1",
		Source:      plusOneSource,
		Events: []EventStep{
			{Time: Timestamp(time.Second), Inputs: map[string]any{"a": 1}},
			{Time: Timestamp(2 * time.Second), Inputs: map[string]any{"a": 2}},
		},
		Assertions: assertions,
	}
}

func count(n int) *int { return &n }

func TestRun_MinimalScenario(t *testing.T) {
	scenario := plusOneScenario(Assertion{Type: AssertVerdictCount, Stream: "b", Count: count(2)})

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass, result.Errors)
	assert.Empty(t, result.Errors)
	assert.True(t, result.Deterministic)
	assert.Equal(t, "plus_one", result.RunID)
	assert.Nil(t, result.RuntimeError)

	require.Len(t, result.Trace, 2)
	assert.Equal(t, time.Second, result.Trace[0].TS)
	assert.Equal(t, []verdict.Change{verdict.ValueOf(nil, ir.Int(2))}, result.Trace[0].Changes(0))
	assert.Equal(t, []verdict.InputValue{{Input: 0, Value: ir.Int(2)}}, result.Trace[1].Inputs)
	assert.Equal(t, []verdict.Change{verdict.ValueOf(nil, ir.Int(3))}, result.Trace[1].Changes(0))
	assert.Equal(t, "b", result.Spec().Outputs[0].Name)
}

func TestRun_FixedRunID(t *testing.T) {
	scenario := plusOneScenario(Assertion{Type: AssertVerdictCount, Stream: "b", Count: count(2)})
	scenario.RunID = "run-fixed"

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.Equal(t, "run-fixed", result.RunID)
}

func TestRun_AssertionFailure(t *testing.T) {
	scenario := plusOneScenario(Assertion{Type: AssertVerdictCount, Stream: "b", Count: count(5)})

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Assertion failed: verdict_count")
	assert.Contains(t, result.Errors[0], "2 occurrence(s)")
}

func TestRun_FloatInputsAcceptIntegers(t *testing.T) {
	scenario := &Scenario{
		Name:        "float_input",
		Description: "YAML integers are widened for float inputs",
		Source: `
inputs: x: type: "float"
outputs: y: type: "float"
eval: [{assign: "y", expr: {op: "*", args: ["x", 2.0]}}]
`,
		Events: []EventStep{
			{Time: 0, Inputs: map[string]any{"x": 2}},
		},
		Assertions: []Assertion{{Type: AssertVerdictCount, Stream: "y", Count: count(1)}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, []verdict.InputValue{{Input: 0, Value: ir.Float(2)}}, result.Trace[0].Inputs)
	assert.Equal(t, []verdict.Change{verdict.ValueOf(nil, ir.Float(4))}, result.Trace[0].Changes(0))
}

func TestRun_NullInputIsAbsent(t *testing.T) {
	scenario := plusOneScenario(Assertion{Type: AssertVerdictCount, Stream: "a", Count: count(1)})
	scenario.Events[1].Inputs = map[string]any{"a": nil}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_UnknownInput(t *testing.T) {
	scenario := plusOneScenario(Assertion{Type: AssertVerdictCount, Stream: "b", Count: count(2)})
	scenario.Events[0].Inputs = map[string]any{"nope": 1}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"nope" is not an input`)
}

func TestRun_CompileError(t *testing.T) {
	scenario := plusOneScenario(Assertion{Type: AssertVerdictCount, Stream: "b", Count: count(2)})
	scenario.Source = `inputs: a: type: "complex"`

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile spec")
}

func TestRun_RuntimeErrorWithoutAssertionFails(t *testing.T) {
	scenario := plusOneScenario(Assertion{Type: AssertVerdictCount, Stream: "b", Count: count(1)})
	scenario.Events[1].Time = Timestamp(500 * time.Millisecond)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.False(t, result.Deterministic)
	require.Error(t, result.RuntimeError)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "monitor failed: TIME_REGRESSION")
}

func TestRun_ExpectedRuntimeError(t *testing.T) {
	scenario := plusOneScenario(
		Assertion{Type: AssertRuntimeError, Code: string(engine.ErrCodeTimeRegression)},
		Assertion{Type: AssertVerdictCount, Stream: "b", Count: count(1)},
	)
	scenario.Events[1].Time = Timestamp(500 * time.Millisecond)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Len(t, result.Trace, 1)
}

func TestRun_Scenarios(t *testing.T) {
	paths, err := FindScenarios("testdata/scenarios", "")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_SamplerBatching(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/sampler_batching.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, result.Errors)
	assert.True(t, result.Deterministic)

	// ten periodic cycles at 100ms..1000ms, then the event cycles at 0 and 1s
	require.Len(t, result.Trace, 12)
	assert.Equal(t, time.Duration(0), result.Trace[0].TS)
	for i := 1; i <= 10; i++ {
		assert.Equal(t, time.Duration(i)*100*time.Millisecond, result.Trace[i].TS)
	}
	assert.Equal(t, time.Second, result.Trace[11].TS)
	assert.Nil(t, result.Trace[11].Changes(0))
}
