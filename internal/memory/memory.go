package memory

import (
	"fmt"
	"time"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
)

// Memory is the complete stream state of one monitor.
type Memory struct {
	spec    *ir.StreamIR
	inputs  []*StreamMemory
	outputs []*InstanceCollection
	windows *WindowMemory
}

// New allocates memory for every stream declared in spec. Static outputs
// are alive from the start; dynamic and parameterized outputs start without
// live instances.
func New(spec *ir.StreamIR, start time.Duration) *Memory {
	m := &Memory{
		spec:    spec,
		inputs:  make([]*StreamMemory, len(spec.Inputs)),
		outputs: make([]*InstanceCollection, len(spec.Outputs)),
		windows: NewWindowMemory(spec, start),
	}
	for i, in := range spec.Inputs {
		m.inputs[i] = NewStreamMemory(in.Memory)
	}
	for i, out := range spec.Outputs {
		c := NewInstanceCollection(out.Memory, out.IsParameterized())
		if out.IsStatic() {
			c.Spawn(nil)
			c.ClearActivation()
		}
		m.outputs[i] = c
	}
	return m
}

// Input returns the buffer of input i.
func (m *Memory) Input(i int) *StreamMemory { return m.inputs[i] }

// Output returns the instance collection of output i.
func (m *Memory) Output(i int) *InstanceCollection { return m.outputs[i] }

// Windows returns the window state.
func (m *Memory) Windows() *WindowMemory { return m.windows }

// WriteInput stores a new input value and feeds the windows over it.
func (m *Memory) WriteInput(i int, v ir.Value, now time.Duration) {
	m.inputs[i].Push(v)
	m.windows.Push(ir.InputRef(i), nil, v, now)
}

// WriteOutput stores a new value for the output instance and feeds the
// windows over the output.
func (m *Memory) WriteOutput(i int, params ir.Parameters, v ir.Value, now time.Duration) error {
	if err := m.outputs[i].Push(params, v); err != nil {
		return err
	}
	if !m.outputs[i].Parameterized() {
		params = nil
	}
	m.windows.Push(ir.OutputRef(i), params, v, now)
	return nil
}

// Spawn creates the output instance and its window state.
// It reports whether a new instance was created.
func (m *Memory) Spawn(i int, params ir.Parameters, now time.Duration) bool {
	if !m.outputs[i].Spawn(params) {
		return false
	}
	if m.outputs[i].Parameterized() {
		m.windows.Spawn(i, params, now)
	}
	return true
}

// Close destroys the output instance and its window state.
func (m *Memory) Close(i int, params ir.Parameters) error {
	if err := m.outputs[i].Close(params); err != nil {
		return err
	}
	if m.outputs[i].Parameterized() {
		m.windows.Close(i, params)
	}
	return nil
}

// Get reads stream ref at offset. params selects the instance of a
// parameterized output and is ignored otherwise.
func (m *Memory) Get(ref ir.StreamReference, params ir.Parameters, offset int) (ir.Value, error) {
	switch ref.Kind {
	case ir.KindInput:
		return m.inputs[ref.Index].Get(offset)
	case ir.KindOutput:
		if !m.outputs[ref.Index].Parameterized() {
			params = nil
		}
		return m.outputs[ref.Index].Get(params, offset)
	default:
		return nil, fmt.Errorf("unknown stream kind %d", ref.Kind)
	}
}

// IsFresh reports whether ref (or its instance) was written this cycle.
func (m *Memory) IsFresh(ref ir.StreamReference, params ir.Parameters) bool {
	if ref.Kind == ir.KindInput {
		return m.inputs[ref.Index].IsFresh()
	}
	return m.outputs[ref.Index].IsFresh(params)
}

// IsAlive reports whether ref (or its instance) is alive. Inputs are
// always alive.
func (m *Memory) IsAlive(ref ir.StreamReference, params ir.Parameters) bool {
	if ref.Kind == ir.KindInput {
		return true
	}
	return m.outputs[ref.Index].IsAlive(params)
}

// LiveInstances returns the total number of live parameterized instances.
func (m *Memory) LiveInstances() int {
	n := 0
	for _, c := range m.outputs {
		if c.Parameterized() {
			n += c.Len()
		}
	}
	return n
}

// ClearActivation resets all per-cycle tracking at a cycle boundary.
func (m *Memory) ClearActivation() {
	for _, in := range m.inputs {
		in.ClearActivation()
	}
	for _, out := range m.outputs {
		out.ClearActivation()
	}
}
