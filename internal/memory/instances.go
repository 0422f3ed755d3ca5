package memory

import (
	"slices"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
)

// FreshValue is an instance that received a value in the current cycle.
// Value is captured at write time so it survives a Close later in the cycle.
type FreshValue struct {
	Params ir.Parameters
	Value  ir.Value
}

type instance struct {
	params ir.Parameters
	buf    *StreamMemory
}

// InstanceCollection maps Parameters to the buffer of one live instance and
// tracks the instances spawned, evaluated and closed in the current cycle.
//
// Unparameterized outputs use a collection with a single slot keyed by nil
// Parameters. That buffer is allocated once and survives Close; closing it
// only clears its history.
type InstanceCollection struct {
	capacity      int
	parameterized bool
	instances     map[string]*instance

	// singleton buffer and liveness for unparameterized outputs
	single      *StreamMemory
	singleAlive bool

	spawned    []ir.Parameters
	fresh      []FreshValue
	freshIndex map[string]int
	closed     []ir.Parameters
}

// NewInstanceCollection creates an empty collection. For unparameterized
// outputs the single buffer is allocated immediately but not alive.
func NewInstanceCollection(capacity int, parameterized bool) *InstanceCollection {
	c := &InstanceCollection{
		capacity:      capacity,
		parameterized: parameterized,
		freshIndex:    make(map[string]int),
	}
	if parameterized {
		c.instances = make(map[string]*instance)
	} else {
		c.single = NewStreamMemory(capacity)
	}
	return c
}

// Parameterized reports whether instances are keyed by Parameters.
func (c *InstanceCollection) Parameterized() bool { return c.parameterized }

// Spawn creates the instance for params if it does not exist.
// It reports whether a new instance was created.
func (c *InstanceCollection) Spawn(params ir.Parameters) bool {
	if !c.parameterized {
		if c.singleAlive {
			return false
		}
		c.singleAlive = true
		c.spawned = append(c.spawned, nil)
		return true
	}
	params = normalize(params)
	key := params.Key()
	if _, ok := c.instances[key]; ok {
		return false
	}
	c.instances[key] = &instance{params: params.Clone(), buf: NewStreamMemory(c.capacity)}
	c.spawned = append(c.spawned, params.Clone())
	return true
}

// Close destroys the instance for params. Closing an instance that is not
// alive fails with *InstanceNotFoundError.
func (c *InstanceCollection) Close(params ir.Parameters) error {
	if !c.parameterized {
		if !c.singleAlive {
			return &InstanceNotFoundError{}
		}
		c.singleAlive = false
		c.single.Reset()
		c.closed = append(c.closed, nil)
		return nil
	}
	params = normalize(params)
	key := params.Key()
	if _, ok := c.instances[key]; !ok {
		return &InstanceNotFoundError{Params: params}
	}
	delete(c.instances, key)
	c.closed = append(c.closed, params.Clone())
	return nil
}

// IsAlive reports whether the instance for params exists.
func (c *InstanceCollection) IsAlive(params ir.Parameters) bool {
	if !c.parameterized {
		return c.singleAlive
	}
	_, ok := c.instances[normalize(params).Key()]
	return ok
}

// Len returns the number of live instances.
func (c *InstanceCollection) Len() int {
	if !c.parameterized {
		if c.singleAlive {
			return 1
		}
		return 0
	}
	return len(c.instances)
}

// AliveParameters returns a snapshot of the live instances' parameters,
// sorted by ir.CompareParameters. The snapshot does not alias the collection.
func (c *InstanceCollection) AliveParameters() []ir.Parameters {
	if !c.parameterized {
		if c.singleAlive {
			return []ir.Parameters{nil}
		}
		return nil
	}
	out := make([]ir.Parameters, 0, len(c.instances))
	for _, inst := range c.instances {
		out = append(out, inst.params.Clone())
	}
	slices.SortFunc(out, ir.CompareParameters)
	return out
}

// Buffer returns the buffer of a live instance.
func (c *InstanceCollection) Buffer(params ir.Parameters) (*StreamMemory, error) {
	if !c.parameterized {
		if !c.singleAlive {
			return nil, &InstanceNotFoundError{}
		}
		return c.single, nil
	}
	params = normalize(params)
	inst, ok := c.instances[params.Key()]
	if !ok {
		return nil, &InstanceNotFoundError{Params: params}
	}
	return inst.buf, nil
}

// Get reads the instance for params at offset.
func (c *InstanceCollection) Get(params ir.Parameters, offset int) (ir.Value, error) {
	buf, err := c.Buffer(params)
	if err != nil {
		return nil, err
	}
	return buf.Get(offset)
}

// Push writes v to the instance for params and records it as fresh.
func (c *InstanceCollection) Push(params ir.Parameters, v ir.Value) error {
	buf, err := c.Buffer(params)
	if err != nil {
		return err
	}
	buf.Push(v)
	if !c.parameterized {
		params = nil
	} else {
		params = normalize(params).Clone()
	}
	key := params.Key()
	if i, ok := c.freshIndex[key]; ok {
		c.fresh[i].Value = v
		return nil
	}
	c.freshIndex[key] = len(c.fresh)
	c.fresh = append(c.fresh, FreshValue{Params: params, Value: v})
	return nil
}

// IsFresh reports whether the live instance for params was written this cycle.
func (c *InstanceCollection) IsFresh(params ir.Parameters) bool {
	buf, err := c.Buffer(params)
	if err != nil {
		return false
	}
	return buf.IsFresh()
}

// Spawned returns the instances created in the current cycle, in order.
// The returned slices of Spawned, Fresh and Closed are valid until ClearActivation.
func (c *InstanceCollection) Spawned() []ir.Parameters { return c.spawned }

// Fresh returns the instances written in the current cycle, in first-write order.
func (c *InstanceCollection) Fresh() []FreshValue { return c.fresh }

// Closed returns the instances destroyed in the current cycle, in order.
func (c *InstanceCollection) Closed() []ir.Parameters { return c.closed }

// ClearActivation resets the per-cycle tracking and the freshness of every
// live buffer.
func (c *InstanceCollection) ClearActivation() {
	c.spawned = c.spawned[:0]
	c.fresh = c.fresh[:0]
	c.closed = c.closed[:0]
	clear(c.freshIndex)
	if !c.parameterized {
		c.single.ClearActivation()
		return
	}
	for _, inst := range c.instances {
		inst.buf.ClearActivation()
	}
}

// normalize maps nil to the empty parameter list so parameterized lookups
// never collide with the unparameterized key.
func normalize(params ir.Parameters) ir.Parameters {
	if params == nil {
		return ir.Parameters{}
	}
	return params
}
