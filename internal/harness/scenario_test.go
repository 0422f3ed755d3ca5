package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestSpec writes a minimal CUE spec file for testing.
func createTestSpec(t *testing.T, dir, name string) string {
	t.Helper()
	specsDir := filepath.Join(dir, "specs")
	require.NoError(t, os.MkdirAll(specsDir, 0755))
	specPath := filepath.Join(specsDir, name)
	require.NoError(t, os.WriteFile(specPath, []byte(plusOneSource), 0644))
	return specPath
}

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	createTestSpec(t, dir, "plus_one.cue")
	path := writeScenario(t, dir, `
name: test_scenario
description: "Test scenario for validation"
spec: specs/plus_one.cue
tie_break: event-first
start: 500ms
events:
  - time: 1
    inputs: { a: 1 }
  - time: 1.5
    inputs: { a: 2, b: [1, "x"] }
assertions:
  - type: verdict_contains
    stream: b
    at: 1
    value: 2
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Equal(t, filepath.Join(dir, "specs", "plus_one.cue"), scenario.Spec)
	assert.Equal(t, "event-first", scenario.TieBreak)
	assert.Equal(t, 500*time.Millisecond, scenario.Start.Duration())
	require.Len(t, scenario.Events, 2)
	assert.Equal(t, time.Second, scenario.Events[0].Time.Duration())
	assert.Equal(t, 1500*time.Millisecond, scenario.Events[1].Time.Duration())
	assert.Equal(t, 1, scenario.Events[0].Inputs["a"])
	assert.Equal(t, []any{1, "x"}, scenario.Events[1].Inputs["b"])

	require.Len(t, scenario.Assertions, 1)
	a := scenario.Assertions[0]
	require.NotNil(t, a.At)
	assert.Equal(t, time.Second, a.At.Duration())
	assert.True(t, a.HasValue())
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_InlineSource(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: inline
description: "Inline specification"
source: |
  inputs: a: type: "int"
  outputs: b: type: "int"
  eval: [{assign: "b", expr: "a"}]
events:
  - time: 0
    inputs: { a: 1 }
assertions:
  - type: final_value
    stream: b
    value: 1
`), "")
	require.NoError(t, err)
	assert.Empty(t, scenario.Spec)
	assert.Contains(t, scenario.Source, `outputs: b: type: "int"`)
}

func TestParseScenario_Invalid(t *testing.T) {
	dir := t.TempDir()
	createTestSpec(t, dir, "plus_one.cue")

	const events = `
events:
  - time: 0
    inputs: { a: 1 }
`
	const assertion = `
assertions:
  - type: verdict_contains
    stream: b
`

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\nspec: specs/plus_one.cue" + events + assertion,
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\nspec: specs/plus_one.cue" + events + assertion,
			wantErr: "description is required",
		},
		{
			name:    "missing spec",
			content: "name: n\ndescription: d" + events + assertion,
			wantErr: "one of spec or source is required",
		},
		{
			name:    "spec and source",
			content: "name: n\ndescription: d\nspec: specs/plus_one.cue\nsource: x" + events + assertion,
			wantErr: "mutually exclusive",
		},
		{
			name:    "spec file not found",
			content: "name: n\ndescription: d\nspec: specs/missing.cue" + events + assertion,
			wantErr: "spec file not found",
		},
		{
			name:    "unknown tie break",
			content: "name: n\ndescription: d\nspec: specs/plus_one.cue\ntie_break: random" + events + assertion,
			wantErr: "random",
		},
		{
			name:    "no events",
			content: "name: n\ndescription: d\nspec: specs/plus_one.cue\nevents: []" + assertion,
			wantErr: "events list is required",
		},
		{
			name:    "no assertions",
			content: "name: n\ndescription: d\nspec: specs/plus_one.cue" + events + "assertions: []\n",
			wantErr: "assertions list is required",
		},
		{
			name:    "unknown field",
			content: "name: n\ndescription: d\nspec: specs/plus_one.cue\nassertion: []" + events + assertion,
			wantErr: "failed to parse YAML",
		},
		{
			name:    "bad timestamp",
			content: "name: n\ndescription: d\nspec: specs/plus_one.cue\nevents:\n  - time: soon\n" + assertion,
			wantErr: "invalid timestamp",
		},
		{
			name:    "unknown assertion type",
			content: "name: n\ndescription: d\nspec: specs/plus_one.cue" + events + "assertions:\n  - type: trace_order\n",
			wantErr: `unknown assertion type "trace_order"`,
		},
		{
			name:    "unknown kind",
			content: "name: n\ndescription: d\nspec: specs/plus_one.cue" + events + "assertions:\n  - type: verdict_count\n    stream: b\n    kind: update\n    count: 1\n",
			wantErr: `unknown kind "update"`,
		},
		{
			name:    "stream required",
			content: "name: n\ndescription: d\nspec: specs/plus_one.cue" + events + "assertions:\n  - type: verdict_times\n",
			wantErr: "stream is required for verdict_times",
		},
		{
			name:    "count required",
			content: "name: n\ndescription: d\nspec: specs/plus_one.cue" + events + "assertions:\n  - type: verdict_count\n    stream: b\n",
			wantErr: "count must be non-negative",
		},
		{
			name:    "value required",
			content: "name: n\ndescription: d\nspec: specs/plus_one.cue" + events + "assertions:\n  - type: final_value\n    stream: b\n",
			wantErr: "value is required for final_value",
		},
		{
			name:    "code required",
			content: "name: n\ndescription: d\nspec: specs/plus_one.cue" + events + "assertions:\n  - type: runtime_error\n",
			wantErr: "code is required for runtime_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content), dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertion_NullValue(t *testing.T) {
	dir := t.TempDir()
	createTestSpec(t, dir, "plus_one.cue")
	scenario, err := ParseScenario([]byte(`
name: n
description: d
spec: specs/plus_one.cue
events:
  - time: 0
    inputs: { a: 1 }
assertions:
  - type: final_value
    stream: b
    value: null
  - type: verdict_contains
    stream: b
`), dir)
	require.NoError(t, err)
	assert.True(t, scenario.Assertions[0].HasValue())
	assert.False(t, scenario.Assertions[1].HasValue())
}

func TestTimestamp_String(t *testing.T) {
	assert.Equal(t, "1.5", Timestamp(1500*time.Millisecond).String())
	assert.Equal(t, "0", Timestamp(0).String())
}
