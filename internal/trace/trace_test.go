package trace

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
	"github.com/reactive-systems/rtlola-streamir/internal/verdict"
)

func TestNewProjection(t *testing.T) {
	spec := mixedSpec()

	tests := []struct {
		name      string
		verbosity Verbosity
		names     []string
		want      []string
	}{
		{"silent", VerbositySilent, nil, nil},
		{"trigger", VerbosityTrigger, nil, []string{"alarm"}},
		{"outputs", VerbosityOutputs, nil, []string{"b", "c", "alarm"}},
		{"default", "", nil, []string{"b", "c", "alarm"}},
		{"streams", VerbosityStreams, nil, []string{"a", "f", "b", "c", "alarm"}},
		{"explicit", VerbositySilent, []string{"c", "a"}, []string{"c", "a"}},
		{"comma separated", "", []string{"b, a", "b"}, []string{"b", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proj, err := NewProjection(spec, tt.verbosity, tt.names)
			require.NoError(t, err)
			assert.Equal(t, tt.want, proj.Names())
			assert.Len(t, proj.Streams(), len(tt.want))
		})
	}
}

func TestNewProjection_Errors(t *testing.T) {
	_, err := NewProjection(mixedSpec(), "", []string{"zzz"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream zzz does not exist")

	_, err = NewProjection(mixedSpec(), "loud", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid verbosity "loud"`)
}

func TestProjection_Apply(t *testing.T) {
	proj, err := NewProjection(mixedSpec(), "", []string{"a", "c"})
	require.NoError(t, err)

	inc := verdict.Incremental{
		Inputs: []verdict.InputValue{
			{Input: 0, Value: ir.Int(1)},
			{Input: 1, Value: ir.Float(0.5)},
		},
		Outputs: []verdict.OutputChanges{
			{Output: 0, Changes: []verdict.Change{verdict.ValueOf(nil, ir.Int(2))}},
			{Output: 1, Changes: []verdict.Change{verdict.SpawnOf(ir.Parameters{ir.Int(1)})}},
		},
	}

	got := proj.Apply(inc)
	assert.Equal(t, []verdict.InputValue{{Input: 0, Value: ir.Int(1)}}, got.Inputs)
	assert.Equal(t, []verdict.OutputChanges{inc.Outputs[1]}, got.Outputs)
	assert.True(t, proj.Apply(verdict.Incremental{Inputs: inc.Inputs[1:]}).IsEmpty())
}

func TestJSONSink(t *testing.T) {
	proj, err := NewProjection(mixedSpec(), VerbosityStreams, nil)
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	sink := NewJSONSink(buf, proj)
	require.NoError(t, sink.Accept(time.Second, verdict.Incremental{
		Inputs: []verdict.InputValue{{Input: 1, Value: ir.Float(1.5)}},
		Outputs: []verdict.OutputChanges{{Output: 1, Changes: []verdict.Change{
			verdict.ValueOf(ir.Parameters{ir.Int(5)}, ir.Int(3)),
			verdict.SpawnOf(ir.Parameters{ir.Int(5)}),
		}}},
	}))
	require.NoError(t, sink.Accept(2*time.Second, verdict.Incremental{}))
	require.NoError(t, sink.Close())

	// changes are written in canonical order
	assert.Equal(t,
		`{"inputs":[{"input":1,"value":{"float":"1.5"}}],"outputs":[{"changes":[`+
			`{"kind":"spawn","params":[5]},{"kind":"value","params":[5],"value":3}],"output":1}],"ts":1000000000}`+"\n",
		buf.String())
}

func TestSliceSource(t *testing.T) {
	events := []Event{
		{TS: 0, Inputs: map[int]ir.Value{0: ir.Int(1)}},
		{TS: time.Second, Inputs: map[int]ir.Value{0: ir.Int(2)}},
	}
	src := NewSliceSource(events)
	assert.Equal(t, events, readAll(t, src))

	_, ok, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

type failingSink struct {
	Collector
	err error
}

func (f *failingSink) Accept(time.Duration, verdict.Incremental) error { return f.err }
func (f *failingSink) Close() error { return f.err }

func TestMultiSink(t *testing.T) {
	first := &Collector{}
	second := &Collector{}
	multi := MultiSink{first, second}

	inc := verdict.Incremental{Inputs: []verdict.InputValue{{Input: 0, Value: ir.Int(1)}}}
	require.NoError(t, multi.Accept(time.Second, inc))
	require.NoError(t, multi.RecordEvent(Event{TS: time.Second}))
	require.NoError(t, multi.Close())

	for _, c := range []*Collector{first, second} {
		assert.Equal(t, []verdict.Timed{{TS: time.Second, Incremental: inc}}, c.Cycles)
		assert.Equal(t, []Event{{TS: time.Second}}, c.Events)
	}
}

func TestMultiSink_Errors(t *testing.T) {
	boom := errors.New("disk full")
	after := &Collector{}
	multi := MultiSink{&failingSink{err: boom}, after}

	err := multi.Accept(0, verdict.Incremental{})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, after.Cycles, "sinks after a failure are not called")

	assert.ErrorIs(t, multi.Close(), boom)
}
