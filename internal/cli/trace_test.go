package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactive-systems/rtlola-streamir/internal/store"
)

// quietSpec has periodic cycles that never change anything.
const quietSpec = `package spec

inputs: a: type: "int"
outputs: s: type: "int"
frequencies: hz: "100ms"
eval: [
	{"if": {and: [{global: "hz"}, {fresh: "a"}]}, then: [{assign: "s", expr: "a"}]},
]
`

// traceFixture records one quiet run with two events and two empty
// periodic cycles.
func traceFixture(t *testing.T) (db, events string) {
	t.Helper()
	dir := t.TempDir()
	spec := writeSpec(t, dir, "quiet.cue", quietSpec)
	events = writeEvents(t, dir, "events.csv", "time,a\n0,1\n0.25,2\n")
	db = filepath.Join(dir, "runs.db")
	recordRun(t, spec, events, db, "run-q")
	return db, events
}

func executeTrace(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTraceListRuns(t *testing.T) {
	db, events := traceFixture(t)

	out, err := executeTrace(t, "text", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "run-q  finished  4 cycle(s)  "+events+"\n", out)
}

func TestTraceListRunsEmpty(t *testing.T) {
	out, err := executeTrace(t, "text", "--db", filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	assert.Equal(t, "No runs found in database.\n", out)
}

func TestTraceTimeline(t *testing.T) {
	db, _ := traceFixture(t)

	t.Run("changes only", func(t *testing.T) {
		out, err := executeTrace(t, "text", "--db", db, "--run", "run-q")
		require.NoError(t, err)
		assert.Contains(t, out, "Run: run-q\n")
		assert.Contains(t, out, "Status: finished\n")
		assert.Contains(t, out, "Events: 2, cycles: 4, last: 0.25s\n")
		assert.Contains(t, out, "=== Timeline ===\n")
		assert.Contains(t, out, "  [0] 0s\n")
		assert.Contains(t, out, "  [3] 0.25s\n")
		assert.NotContains(t, out, "[1] 0.1s")
	})

	t.Run("all cycles", func(t *testing.T) {
		out, err := executeTrace(t, "text", "--db", db, "--run", "run-q", "--all")
		require.NoError(t, err)
		assert.Contains(t, out, "  [1] 0.1s\n")
		assert.Contains(t, out, `{"inputs":[],"outputs":[],"ts":100000000}`)
		assert.Contains(t, out, "  [2] 0.2s\n")
	})

	t.Run("json", func(t *testing.T) {
		out, err := executeTrace(t, "json", "--db", db, "--run", "run-q")
		require.NoError(t, err)

		var resp struct {
			Status string      `json:"status"`
			Data   TraceResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, 2, resp.Data.Events)
		require.Len(t, resp.Data.Cycles, 2)
		assert.Equal(t, "0.25", resp.Data.Cycles[1].TS)
		assert.JSONEq(t,
			`{"inputs":[{"input":0,"value":2}],"outputs":[],"ts":250000000}`,
			string(resp.Data.Cycles[1].Document))
	})
}

func TestTraceFindByHash(t *testing.T) {
	db, _ := traceFixture(t)

	st, err := store.Open(db)
	require.NoError(t, err)
	cycles, err := st.ReadCycles(context.Background(), "run-q")
	require.NoError(t, err)
	require.NoError(t, st.Close())
	require.Len(t, cycles, 4)
	hash := cycles[0].Hash

	out, err := executeTrace(t, "text", "--db", db, "--hash", hash)
	require.NoError(t, err)
	assert.Contains(t, out, "Cycles with hash "+hash+":\n")
	assert.Contains(t, out, "  [0] 0s "+hash+" run-q\n")
}

func TestTraceErrors(t *testing.T) {
	db, _ := traceFixture(t)

	t.Run("unknown run", func(t *testing.T) {
		out, err := executeTrace(t, "text", "--db", db, "--run", "missing")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "Error [E005]")
	})

	t.Run("run and hash", func(t *testing.T) {
		_, err := executeTrace(t, "text", "--db", db, "--run", "run-q", "--hash", "abc")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), "mutually exclusive")
	})
}
