package trace

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
	"github.com/reactive-systems/rtlola-streamir/internal/verdict"
)

// mixedSpec has an int and a float input, a static output b and a
// parameterized output c.
func mixedSpec() *ir.StreamIR {
	return &ir.StreamIR{
		Inputs: []ir.InputStream{
			{Name: "a", Type: ir.TypeInt, Memory: 1},
			{Name: "f", Type: ir.TypeFloat, Memory: 1},
		},
		Outputs: []ir.OutputStream{
			{Name: "b", Type: ir.TypeInt, Memory: 1},
			{Name: "c", Type: ir.TypeInt, Memory: 1, Parameters: []ir.Parameter{{Name: "p", Type: ir.TypeInt}}},
			{Name: "alarm", Type: ir.TypeBool, Memory: 1, Trigger: true},
		},
	}
}

func readAll(t *testing.T, src EventSource) []Event {
	t.Helper()
	var events []Event
	for {
		ev, ok, err := src.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			return events
		}
		events = append(events, ev)
	}
}

func TestCSVSource(t *testing.T) {
	input := "time, a, f\n0.5,1,\n1500ms,#,2.5\n2,3,0.25\n"
	src, err := NewCSVSource(strings.NewReader(input), mixedSpec())
	require.NoError(t, err)

	events := readAll(t, src)
	assert.Equal(t, []Event{
		{TS: 500 * time.Millisecond, Inputs: map[int]ir.Value{0: ir.Int(1)}},
		{TS: 1500 * time.Millisecond, Inputs: map[int]ir.Value{1: ir.Float(2.5)}},
		{TS: 2 * time.Second, Inputs: map[int]ir.Value{0: ir.Int(3), 1: ir.Float(0.25)}},
	}, events)
}

func TestCSVSource_TimeColumnAnywhere(t *testing.T) {
	src, err := NewCSVSource(strings.NewReader("f,TIME\n1.0,3\n"), mixedSpec())
	require.NoError(t, err)

	events := readAll(t, src)
	require.Len(t, events, 1)
	assert.Equal(t, 3*time.Second, events[0].TS)
	assert.Equal(t, map[int]ir.Value{1: ir.Float(1)}, events[0].Inputs)
}

func TestCSVSource_HeaderErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"unknown column", "time,zzz\n", `csv column "zzz" is not an input of the specification`},
		{"output column", "time,b\n", `csv column "b" is not an input`},
		{"no time column", "a\n1\n", `csv header has no "time" column`},
		{"empty", "", "read csv header"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCSVSource(strings.NewReader(tt.input), mixedSpec())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCSVSource_RowErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"bad timestamp", "time,a\nsoon,1\n", "csv line 2: invalid timestamp"},
		{"bad value", "time,a\n0,1\n1,x\n", "csv line 3, input a"},
		{"short row", "time,a\n0\n", "csv line 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewCSVSource(strings.NewReader(tt.input), mixedSpec())
			require.NoError(t, err)

			var lastErr error
			for {
				_, ok, err := src.Next(context.Background())
				if err != nil {
					lastErr = err
					break
				}
				if !ok {
					break
				}
			}
			require.Error(t, lastErr)
			assert.Contains(t, lastErr.Error(), tt.wantErr)
		})
	}
}

func TestCSVSource_Cancelled(t *testing.T) {
	src, err := NewCSVSource(strings.NewReader("time,a\n0,1\n"), mixedSpec())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"0", 0, false},
		{"1.5", 1500 * time.Millisecond, false},
		{" 2 ", 2 * time.Second, false},
		{"0.001", time.Millisecond, false},
		{"250ms", 250 * time.Millisecond, false},
		{"1m30s", 90 * time.Second, false},
		{"-1", 0, true},
		{"-5s", 0, true},
		{"NaN", 0, true},
		{"later", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseTimestamp(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "0", FormatTimestamp(0))
	assert.Equal(t, "1.5", FormatTimestamp(1500*time.Millisecond))
	assert.Equal(t, "0.1", FormatTimestamp(100*time.Millisecond))
	assert.Equal(t, "12", FormatTimestamp(12*time.Second))
}

func TestCSVSink(t *testing.T) {
	spec := mixedSpec()
	proj, err := NewProjection(spec, VerbosityStreams, nil)
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	sink, err := NewCSVSink(buf, proj)
	require.NoError(t, err)

	require.NoError(t, sink.Accept(0, verdict.Incremental{
		Inputs:  []verdict.InputValue{{Input: 0, Value: ir.Int(1)}},
		Outputs: []verdict.OutputChanges{{Output: 0, Changes: []verdict.Change{verdict.ValueOf(nil, ir.Int(2))}}},
	}))
	// empty cycles are not written
	require.NoError(t, sink.Accept(100*time.Millisecond, verdict.Incremental{}))
	require.NoError(t, sink.Accept(time.Second, verdict.Incremental{
		Outputs: []verdict.OutputChanges{{Output: 1, Changes: []verdict.Change{
			verdict.SpawnOf(ir.Parameters{ir.Int(5)}),
			verdict.ValueOf(ir.Parameters{ir.Int(5)}, ir.Int(3)),
		}}},
	}))
	require.NoError(t, sink.Close())

	assert.Equal(t,
		"time,a,f,b,c,alarm\n"+
			"0,1,,Value = 2,,\n"+
			"1,,,,Spawn<5>;Instance<5> = 3,\n",
		buf.String())
}

func TestCSVSink_ProjectionDropsCycles(t *testing.T) {
	proj, err := NewProjection(mixedSpec(), "", []string{"c"})
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	sink, err := NewCSVSink(buf, proj)
	require.NoError(t, err)

	// only b changes, so nothing is reported
	require.NoError(t, sink.Accept(0, verdict.Incremental{
		Inputs:  []verdict.InputValue{{Input: 0, Value: ir.Int(1)}},
		Outputs: []verdict.OutputChanges{{Output: 0, Changes: []verdict.Change{verdict.ValueOf(nil, ir.Int(2))}}},
	}))
	assert.Equal(t, "time,c\n", buf.String())
}
