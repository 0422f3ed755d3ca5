package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
)

func testSpec() *ir.StreamIR {
	owner := ir.OutputReference{Index: 2, Parameterized: true}
	return &ir.StreamIR{
		Inputs: []ir.InputStream{{Name: "a", Type: ir.TypeInt, Memory: 2}},
		Outputs: []ir.OutputStream{
			{Name: "b", Type: ir.TypeInt, Memory: 1},
			{Name: "d", Type: ir.TypeInt, Memory: 1, Dynamic: true},
			{Name: "c", Type: ir.TypeInt, Memory: 1, Parameters: []ir.Parameter{{Name: "p", Type: ir.TypeInt}}},
		},
		Windows: []ir.Window{
			{Name: "w", Kind: ir.WindowDiscrete, Source: ir.OutputRef(0), Op: ir.AggSum, Count: 5},
			{Name: "cw", Kind: ir.WindowDiscrete, Source: ir.InputRef(0), Owner: &owner, Op: ir.AggCount, Count: 5},
		},
	}
}

func TestNew_InitialLiveness(t *testing.T) {
	m := New(testSpec(), 0)

	assert.True(t, m.IsAlive(ir.InputRef(0), nil))
	assert.True(t, m.IsAlive(ir.OutputRef(0), nil), "static outputs are alive from the start")
	assert.False(t, m.IsAlive(ir.OutputRef(1), nil))
	assert.Equal(t, 0, m.Output(2).Len())
	assert.Empty(t, m.Output(0).Spawned(), "static spawn is not reported")
	assert.Equal(t, 0, m.LiveInstances())
}

func TestWriteOutput_FeedsWindows(t *testing.T) {
	m := New(testSpec(), 0)

	require.NoError(t, m.WriteOutput(0, nil, ir.Int(3), 0))
	m.ClearActivation()
	require.NoError(t, m.WriteOutput(0, nil, ir.Int(4), 10))

	got, err := m.Windows().Get(0, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(7), got)
	assert.True(t, m.IsFresh(ir.OutputRef(0), nil))
}

func TestSpawnClose_SynchronousWithBuffers(t *testing.T) {
	m := New(testSpec(), 0)
	p := ir.Parameters{ir.Int(5)}

	assert.True(t, m.Spawn(2, p, 0))
	assert.False(t, m.Spawn(2, p, 0))
	assert.Equal(t, 1, m.Windows().Instances(1), "window state created with the instance")
	assert.Equal(t, 1, m.LiveInstances())

	m.WriteInput(0, ir.Int(1), 0)
	got, err := m.Windows().Get(1, p, 0)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(1), got)

	require.NoError(t, m.Close(2, p))
	assert.Equal(t, 0, m.Windows().Instances(1), "window state dropped with the instance")
	assert.False(t, m.IsAlive(ir.OutputRef(2), p))

	err = m.Close(2, p)
	var notFound *InstanceNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestGet_Dispatch(t *testing.T) {
	m := New(testSpec(), 0)
	m.WriteInput(0, ir.Int(1), 0)
	m.WriteInput(0, ir.Int(2), 1)

	got, err := m.Get(ir.InputRef(0), nil, 1)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(1), got)

	_, err = m.Get(ir.InputRef(0), nil, 2)
	var oob *OutOfBoundsError
	assert.ErrorAs(t, err, &oob)

	// Parameters are ignored for unparameterized outputs.
	require.NoError(t, m.WriteOutput(0, nil, ir.Int(8), 1))
	got, err = m.Get(ir.OutputRef(0), ir.Parameters{ir.Int(1)}, 0)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(8), got)

	_, err = m.Get(ir.OutputRef(2), ir.Parameters{ir.Int(1)}, 0)
	var notFound *InstanceNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestClearActivation_AllStreams(t *testing.T) {
	m := New(testSpec(), 0)
	m.WriteInput(0, ir.Int(1), 0)
	m.Spawn(1, nil, 0)
	require.NoError(t, m.WriteOutput(1, nil, ir.Int(2), 0))

	m.ClearActivation()

	assert.False(t, m.IsFresh(ir.InputRef(0), nil))
	assert.False(t, m.IsFresh(ir.OutputRef(1), nil))
	assert.Empty(t, m.Output(1).Spawned())
	assert.True(t, m.IsAlive(ir.OutputRef(1), nil))
}

func TestWriteOutput_InstancedWindowOverParameterizedSource(t *testing.T) {
	param := []ir.Parameter{{Name: "p", Type: ir.TypeInt}}
	owner := ir.OutputReference{Index: 1, Parameterized: true}
	spec := &ir.StreamIR{
		Outputs: []ir.OutputStream{
			{Name: "x", Type: ir.TypeInt, Memory: 1, Parameters: param},
			{Name: "y", Type: ir.TypeInt, Memory: 1, Parameters: param},
		},
		Windows: []ir.Window{
			{Name: "xs", Kind: ir.WindowSliding, Source: ir.OutputRef(0), Owner: &owner, Op: ir.AggSum, Duration: 10},
		},
	}
	m := New(spec, 0)
	p1, p2 := ir.Parameters{ir.Int(1)}, ir.Parameters{ir.Int(2)}
	for _, p := range []ir.Parameters{p1, p2} {
		m.Spawn(0, p, 0)
		m.Spawn(1, p, 0)
	}

	require.NoError(t, m.WriteOutput(0, p1, ir.Int(10), 1))
	require.NoError(t, m.WriteOutput(0, p2, ir.Int(20), 1))

	got, err := m.Windows().Get(0, p1, 1)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(10), got)

	got, err = m.Windows().Get(0, p2, 1)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(20), got)

	// a source instance without a matching owner instance feeds nothing
	p3 := ir.Parameters{ir.Int(3)}
	m.Spawn(0, p3, 1)
	require.NoError(t, m.WriteOutput(0, p3, ir.Int(30), 2))
	assert.Equal(t, 2, m.Windows().Instances(0))
}
