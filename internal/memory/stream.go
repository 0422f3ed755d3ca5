package memory

import "github.com/reactive-systems/rtlola-streamir/internal/ir"

// StreamMemory is a fixed-capacity history of one stream (or instance).
// Offset 0 is the most recent value.
type StreamMemory struct {
	values []ir.Value
	head   int // slot of the most recent value
	size   int
	fresh  bool
}

// NewStreamMemory allocates a buffer retaining capacity values.
// A capacity below 1 is raised to 1; every stream keeps its current value.
func NewStreamMemory(capacity int) *StreamMemory {
	if capacity < 1 {
		capacity = 1
	}
	return &StreamMemory{values: make([]ir.Value, capacity), head: -1}
}

// Capacity returns the retained history depth.
func (m *StreamMemory) Capacity() int { return len(m.values) }

// Len returns how many values have been written, capped at Capacity.
func (m *StreamMemory) Len() int { return m.size }

// Push writes v as the newest value and marks the buffer fresh.
func (m *StreamMemory) Push(v ir.Value) {
	if v == nil {
		v = ir.None{}
	}
	m.head = (m.head + 1) % len(m.values)
	m.values[m.head] = v
	if m.size < len(m.values) {
		m.size++
	}
	m.fresh = true
}

// Get returns the value offset steps in the past. Offsets beyond the
// capacity fail with *OutOfBoundsError; offsets within the capacity but
// beyond the written history yield None.
func (m *StreamMemory) Get(offset int) (ir.Value, error) {
	if offset < 0 || offset >= len(m.values) {
		return nil, &OutOfBoundsError{Offset: offset, Capacity: len(m.values)}
	}
	if offset >= m.size {
		return ir.None{}, nil
	}
	idx := (m.head - offset + len(m.values)) % len(m.values)
	return m.values[idx], nil
}

// IsFresh reports whether Push was called since the last ClearActivation.
func (m *StreamMemory) IsFresh() bool { return m.fresh }

// ClearActivation resets freshness at a cycle boundary.
func (m *StreamMemory) ClearActivation() { m.fresh = false }

// Reset drops the history while keeping the allocation.
func (m *StreamMemory) Reset() {
	clear(m.values)
	m.head = -1
	m.size = 0
	m.fresh = false
}
