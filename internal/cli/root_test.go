package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plusOneSpec is a one-input, one-output specification: b = a + 1.
const plusOneSpec = `package spec

inputs: a: type: "int"
outputs: b: type: "int"
eval: [{assign: "b", expr: {op: "+", args: ["a", 1]}}]
`

// samplerSpec samples input a into s every 100ms.
const samplerSpec = `package spec

inputs: a: type: "int"
outputs: s: type: "int"
frequencies: hz: "100ms"
eval: [
	{"if": {global: "hz"}, then: [{assign: "s", expr: {default: "a", or: 0}}]},
]
`

// writeSpec writes a .cue file into dir and returns its path.
func writeSpec(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "streamir", cmd.Use)
	assert.Contains(t, cmd.Long, "timestamped event traces")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"compile", "validate", "run", "replay", "test", "trace"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	defaults := map[string]string{
		"verbosity":    "outputs",
		"sink":         "csv",
		"db":           "",
		"tie-break":    "periodic-first",
		"start-time":   "0",
		"metrics-addr": "",
		"max-catch-up": "0",
	}
	for name, def := range defaults {
		flag := runCmd.Flags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, def, flag.DefValue, name)
	}
	assert.Equal(t, "o", runCmd.Flags().Lookup("output").Shorthand)
}

func TestReplayCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	replayCmd, _, err := cmd.Find([]string{"replay"})
	require.NoError(t, err)

	require.NotNil(t, replayCmd.Flags().Lookup("db"))
	require.NotNil(t, replayCmd.Flags().Lookup("run"))
}

func TestInvalidFormat(t *testing.T) {
	dir := t.TempDir()
	spec := writeSpec(t, dir, "plus_one.cue", plusOneSpec)

	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"validate", spec, "--format", "yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}

func TestVerboseLogsToStderr(t *testing.T) {
	dir := t.TempDir()
	spec := writeSpec(t, dir, "plus_one.cue", plusOneSpec)
	events := filepath.Join(dir, "events.csv")
	require.NoError(t, os.WriteFile(events, []byte("time,a\n0,1\n"), 0644))

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{"run", spec, events, "-v"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "time,b\n0,Value = 2\n", out.String())
	assert.Contains(t, errOut.String(), "level=DEBUG msg=\"spec loaded\"")
	assert.Contains(t, errOut.String(), "level=INFO msg=\"monitor finished\"")
}
