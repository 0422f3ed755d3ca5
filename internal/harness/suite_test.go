package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindScenarios(t *testing.T) {
	paths, err := FindScenarios("testdata/scenarios", "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"testdata/scenarios/instances.yaml",
		"testdata/scenarios/plus_one.yaml",
		"testdata/scenarios/sampler_batching.yaml",
		"testdata/scenarios/sampler_event_first.yaml",
		"testdata/scenarios/sliding_sum.yaml",
		"testdata/scenarios/time_regression.yaml",
	}, paths)

	paths, err = FindScenarios("testdata/scenarios", "sampler")
	require.NoError(t, err)
	assert.Len(t, paths, 2)

	paths, err = FindScenarios("testdata/scenarios/plus_one.yaml", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"testdata/scenarios/plus_one.yaml"}, paths)
}

func TestFindScenarios_SkipsGolden(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "x.yaml"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yml"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0644))

	paths, err := FindScenarios(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yml")}, paths)
}

func TestFindScenarios_NotFound(t *testing.T) {
	_, err := FindScenarios("/nonexistent/scenarios", "")
	var notFound *ScenarioNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "/nonexistent/scenarios", notFound.Path)
}

func TestRunSuite(t *testing.T) {
	dir := t.TempDir()
	createTestSpec(t, dir, "plus_one.cue")

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
name: good
description: "passes"
spec: specs/plus_one.cue
events:
  - time: 0
    inputs: { a: 1 }
assertions:
  - type: final_value
    stream: b
    value: 2
`), 0644))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`
name: bad
description: "fails"
spec: specs/plus_one.cue
events:
  - time: 0
    inputs: { a: 1 }
assertions:
  - type: final_value
    stream: b
    value: 7
`), 0644))

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("name: broken\n"), 0644))

	result, err := RunSuite(context.Background(), []string{bad, broken, good})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 2, result.Failed)

	require.Len(t, result.Scenarios, 3)
	assert.Equal(t, "bad", result.Scenarios[0].Name)
	assert.False(t, result.Scenarios[0].Pass)
	require.NotNil(t, result.Scenarios[0].Result)
	assert.Equal(t, "broken", result.Scenarios[1].Name)
	assert.Nil(t, result.Scenarios[1].Result)
	assert.Equal(t, "good", result.Scenarios[2].Name)
	assert.True(t, result.Scenarios[2].Pass)

	require.Len(t, result.Failures, 2)
	assert.Contains(t, result.Failures[0].Error, "scenario assertions failed")
	assert.Contains(t, result.Failures[1].Error, "failed to load scenario")
}
