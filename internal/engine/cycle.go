package engine

import (
	"fmt"
	"slices"
	"time"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
	"github.com/reactive-systems/rtlola-streamir/internal/memory"
	"github.com/reactive-systems/rtlola-streamir/internal/schedule"
)

// cycle interprets the compiled statement once against memory.
//
// A cycle is either periodic (batch != nil) or event-driven. It owns the
// instance context: bound maps an output to the parameters of the instance
// currently addressed, current is the stack Param reads from. Spawn and
// Close requested while an Iterate is running are queued in pending and
// applied when the outermost Iterate returns, so the iterated instance set
// never changes under the loop.
type cycle struct {
	spec  *ir.StreamIR
	mem   *memory.Memory
	now   time.Duration
	batch *schedule.Batch

	bound     map[int]ir.Parameters
	current   []ir.Parameters
	iterDepth int
	pending   []lifecycleOp

	// deadline bookkeeping handed to the scheduler after the cycle
	newDeadlines  []schedule.Deadline
	closedTargets []schedule.Target
}

type lifecycleOp struct {
	close  bool
	output int
	params ir.Parameters
	freqs  []ir.FrequencyReference
}

func newCycle(spec *ir.StreamIR, mem *memory.Memory, now time.Duration, batch *schedule.Batch) *cycle {
	return &cycle{
		spec:  spec,
		mem:   mem,
		now:   now,
		batch: batch,
		bound: make(map[int]ir.Parameters),
	}
}

func (c *cycle) periodic() bool { return c.batch != nil }

func (c *cycle) exec(s ir.Stmt) error {
	switch n := s.(type) {
	case nil, ir.Skip:
		return nil

	case ir.Seq:
		for _, child := range n {
			if err := c.exec(child); err != nil {
				return err
			}
		}
		return nil

	case ir.If:
		ok, err := c.guard(n.Guard)
		if err != nil {
			return err
		}
		if ok {
			return c.exec(n.Then)
		}
		return c.exec(n.Else)

	case ir.Iterate:
		return c.iterate(n)

	case ir.Assign:
		return c.assign(n)

	case ir.Spawn:
		return c.spawn(n)

	case ir.Close:
		params, err := c.boundParams(n.Output)
		if err != nil {
			return err
		}
		return c.lifecycle(lifecycleOp{close: true, output: n.Output.Index, params: params})

	case ir.Bind:
		params, err := c.evalParams(n.Output, n.With)
		if err != nil {
			return err
		}
		return c.withInstance([]ir.OutputReference{n.Output}, params, func() error {
			return c.exec(n.Body)
		})

	default:
		return NewConfigurationError("unknown statement", map[string]string{"type": typeName(s)})
	}
}

func (c *cycle) iterate(n ir.Iterate) error {
	var instances []ir.Parameters
	for _, out := range n.Outputs {
		instances = append(instances, c.mem.Output(out.Index).AliveParameters()...)
	}
	slices.SortFunc(instances, ir.CompareParameters)
	instances = slices.CompactFunc(instances, ir.EqualParameters)

	c.iterDepth++
	for _, params := range instances {
		err := c.withInstance(n.Outputs, params, func() error {
			return c.exec(n.Body)
		})
		if err != nil {
			c.iterDepth--
			return err
		}
	}
	c.iterDepth--

	if c.iterDepth > 0 {
		return nil
	}
	pending := c.pending
	c.pending = nil
	for _, op := range pending {
		if err := c.apply(op); err != nil {
			return err
		}
	}
	return nil
}

// withInstance binds outputs to params for the duration of fn.
func (c *cycle) withInstance(outputs []ir.OutputReference, params ir.Parameters, fn func() error) error {
	saved := make(map[int]ir.Parameters, len(outputs))
	had := make(map[int]bool, len(outputs))
	for _, out := range outputs {
		prev, ok := c.bound[out.Index]
		saved[out.Index], had[out.Index] = prev, ok
		c.bound[out.Index] = params
	}
	c.current = append(c.current, params)

	err := fn()

	c.current = c.current[:len(c.current)-1]
	for _, out := range outputs {
		if had[out.Index] {
			c.bound[out.Index] = saved[out.Index]
		} else {
			delete(c.bound, out.Index)
		}
	}
	return err
}

func (c *cycle) assign(n ir.Assign) error {
	def := c.spec.Outputs[n.Output.Index]
	params, err := c.boundParams(n.Output)
	if err != nil {
		return err
	}
	v, err := c.eval(n.Expr)
	if err != nil {
		return err
	}
	if !def.Type.Admits(v) {
		return &RuntimeError{
			Code:    ErrCodeType,
			Message: fmt.Sprintf("%s value written to %s stream", kindOf(v), def.Type),
			Stream:  def.Name,
			Params:  params,
		}
	}
	if err := c.mem.WriteOutput(n.Output.Index, params, v, c.now); err != nil {
		return wrapMemoryError(err, def.Name)
	}
	return nil
}

func (c *cycle) spawn(n ir.Spawn) error {
	params, err := c.evalParams(n.Output, n.With)
	if err != nil {
		return err
	}
	return c.lifecycle(lifecycleOp{output: n.Output.Index, params: params, freqs: n.Frequencies})
}

// lifecycle applies op now, or defers it while an Iterate is running.
func (c *cycle) lifecycle(op lifecycleOp) error {
	if c.iterDepth > 0 {
		c.pending = append(c.pending, op)
		return nil
	}
	return c.apply(op)
}

func (c *cycle) apply(op lifecycleOp) error {
	def := c.spec.Outputs[op.output]
	target := schedule.Target{Output: op.output, Params: op.params}

	if op.close {
		if err := c.mem.Close(op.output, op.params); err != nil {
			return wrapMemoryError(err, def.Name)
		}
		c.closedTargets = append(c.closedTargets, target)
		c.dropNewDeadlines(target)
		return nil
	}

	if !c.mem.Spawn(op.output, op.params, c.now) {
		return nil
	}
	for _, f := range op.freqs {
		if int(f) < 0 || int(f) >= len(c.spec.Frequencies) {
			return NewConfigurationError("unknown frequency in spawn of "+def.Name, nil)
		}
		c.newDeadlines = append(c.newDeadlines, schedule.DynamicDeadline(c.spec.Frequencies[f].Period, target))
	}
	return nil
}

// dropNewDeadlines forgets deadlines created earlier in this cycle for an
// instance that has been closed again.
func (c *cycle) dropNewDeadlines(target schedule.Target) {
	kept := c.newDeadlines[:0]
	for _, d := range c.newDeadlines {
		d.Targets = slices.DeleteFunc(d.Targets, func(t schedule.Target) bool {
			return schedule.CompareTargets(t, target) == 0
		})
		if len(d.Targets) > 0 {
			kept = append(kept, d)
		}
	}
	c.newDeadlines = kept
}

// boundParams returns the instance of out addressed by the enclosing
// Iterate or Bind. Unparameterized outputs address their single instance.
func (c *cycle) boundParams(out ir.OutputReference) (ir.Parameters, error) {
	if !c.spec.Outputs[out.Index].IsParameterized() {
		return nil, nil
	}
	params, ok := c.bound[out.Index]
	if !ok {
		return nil, NewConfigurationError(
			"parameterized output accessed outside an instance context",
			map[string]string{"stream": c.spec.Outputs[out.Index].Name},
		)
	}
	return params, nil
}

// evalParams evaluates the parameter expressions of a Spawn or Bind and
// checks them against the output's declared parameters.
func (c *cycle) evalParams(out ir.OutputReference, with []ir.Expr) (ir.Parameters, error) {
	def := c.spec.Outputs[out.Index]
	if len(with) != len(def.Parameters) {
		return nil, NewConfigurationError(
			fmt.Sprintf("%s takes %d parameters, got %d", def.Name, len(def.Parameters), len(with)),
			nil,
		)
	}
	if len(with) == 0 {
		return nil, nil
	}
	params := make(ir.Parameters, len(with))
	for i, e := range with {
		v, err := c.eval(e)
		if err != nil {
			return nil, err
		}
		if ir.IsNone(v) || !def.Parameters[i].Type.Admits(v) {
			return nil, &RuntimeError{
				Code:    ErrCodeType,
				Message: fmt.Sprintf("parameter %s expects %s, got %s", def.Parameters[i].Name, def.Parameters[i].Type, kindOf(v)),
				Stream:  def.Name,
			}
		}
		params[i] = v
	}
	return params, nil
}

// instanceFor resolves the instance a Load reads. Explicit parameter
// expressions win over the bound instance.
func (c *cycle) instanceFor(ref ir.StreamReference, exprs []ir.Expr) (ir.Parameters, error) {
	if ref.IsInput() {
		return nil, nil
	}
	if len(exprs) > 0 {
		params := make(ir.Parameters, len(exprs))
		for i, e := range exprs {
			v, err := c.eval(e)
			if err != nil {
				return nil, err
			}
			params[i] = v
		}
		return params, nil
	}
	return c.boundParams(ir.OutputReference{Index: ref.Index})
}

func (c *cycle) guard(g ir.Guard) (bool, error) {
	switch n := g.(type) {
	case ir.GuardConst:
		return bool(n), nil

	case ir.GuardFresh:
		if n.Stream.IsInput() {
			return c.mem.IsFresh(n.Stream, nil), nil
		}
		if params, ok := c.instanceOf(n.Stream.Index); ok {
			return c.mem.IsFresh(n.Stream, params), nil
		}
		return len(c.mem.Output(n.Stream.Index).Fresh()) > 0, nil

	case ir.GuardAlive:
		if n.Stream.IsInput() {
			return true, nil
		}
		if params, ok := c.instanceOf(n.Stream.Index); ok {
			return c.mem.IsAlive(n.Stream, params), nil
		}
		return c.mem.Output(n.Stream.Index).Len() > 0, nil

	case ir.GuardGlobalFreq:
		if !c.periodic() {
			return false, nil
		}
		if int(n.Frequency) < 0 || int(n.Frequency) >= len(c.spec.Frequencies) {
			return false, NewConfigurationError("unknown frequency in guard", nil)
		}
		return c.batch.HasStatic(c.spec.Frequencies[n.Frequency].Period), nil

	case ir.GuardLocalFreq:
		if !c.periodic() {
			return false, nil
		}
		params, ok := c.instanceOf(n.Output.Index)
		if !ok {
			return false, NewConfigurationError(
				"local frequency guard outside an instance context",
				map[string]string{"stream": c.spec.Outputs[n.Output.Index].Name},
			)
		}
		return c.batch.HasTarget(n.Output.Index, params), nil

	case ir.GuardExpr:
		return c.evalBool(n.Expr)

	case ir.GuardAnd:
		for _, operand := range n {
			ok, err := c.guard(operand)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil

	case ir.GuardOr:
		for _, operand := range n {
			ok, err := c.guard(operand)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil

	default:
		return false, NewConfigurationError("unknown guard", map[string]string{"type": typeName(g)})
	}
}

// instanceOf returns the addressed instance of output i. The second result
// is false for a parameterized output without a bound instance.
func (c *cycle) instanceOf(i int) (ir.Parameters, bool) {
	if !c.spec.Outputs[i].IsParameterized() {
		return nil, true
	}
	params, ok := c.bound[i]
	return params, ok
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
