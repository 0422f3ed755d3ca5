package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replayFixture records one plus_one run into a fresh database.
func replayFixture(t *testing.T) (spec, db string) {
	t.Helper()
	dir := t.TempDir()
	spec = writeSpec(t, dir, "plus_one.cue", plusOneSpec)
	events := writeEvents(t, dir, "events.csv", "time,a\n0,1\n1,2\n")
	db = filepath.Join(dir, "runs.db")
	recordRun(t, spec, events, db, "run-1")
	return spec, db
}

func TestReplayDeterministic(t *testing.T) {
	spec, db := replayFixture(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{spec, "--db", db})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Replaying 1 run(s)...")
	assert.Contains(t, output, "✓ run-1: 2 event(s), 2/2 cycle(s)")
	assert.Contains(t, output, "✓ All runs verified deterministic")
}

func TestReplayJSON(t *testing.T) {
	spec, db := replayFixture(t)

	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{spec, "--db", db, "--run", "run-1"})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.AllDeterministic)
	require.Len(t, resp.Data.Runs, 1)
	assert.Equal(t, "run-1", resp.Data.Runs[0].RunID)
	assert.True(t, resp.Data.Runs[0].Deterministic)
	assert.Equal(t, 2, resp.Data.Runs[0].Cycles)
	assert.Empty(t, resp.Data.Runs[0].Mismatches)
}

func TestReplayDifferentSpecSkipped(t *testing.T) {
	_, db := replayFixture(t)
	other := writeSpec(t, t.TempDir(), "plus_two.cue", `package spec

inputs: a: type: "int"
outputs: b: type: "int"
eval: [{assign: "b", expr: {op: "+", args: ["a", 2]}}]
`)

	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{other, "--db", db})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "- run-1: skipped (recorded with a different specification)")
}

func TestReplayDifferentSpecSelected(t *testing.T) {
	_, db := replayFixture(t)
	other := writeSpec(t, t.TempDir(), "sampler.cue", samplerSpec)

	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{other, "--db", db, "--run", "run-1"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "run run-1 was recorded with spec")
}

func TestReplayRunNotFound(t *testing.T) {
	spec, db := replayFixture(t)

	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{spec, "--db", db, "--run", "missing"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E005]")
}

func TestReplayEmptyDatabase(t *testing.T) {
	dir := t.TempDir()
	spec := writeSpec(t, dir, "plus_one.cue", plusOneSpec)

	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{spec, "--db", filepath.Join(dir, "empty.db")})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "No runs found in database.\n", buf.String())
}

func TestReplayRequiresDatabase(t *testing.T) {
	dir := t.TempDir()
	spec := writeSpec(t, dir, "plus_one.cue", plusOneSpec)

	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{spec})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "db" not set`)
}
