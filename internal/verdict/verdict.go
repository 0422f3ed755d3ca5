package verdict

import (
	"cmp"
	"slices"
	"time"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
)

// InputValue is a fresh input and the value it received.
type InputValue struct {
	Input int
	Value ir.Value
}

// OutputChanges groups the changes of one output in a cycle.
type OutputChanges struct {
	Output  int
	Changes []Change
}

// Incremental is the change set of one evaluation cycle. Outputs without
// activity are absent.
type Incremental struct {
	Inputs  []InputValue
	Outputs []OutputChanges
}

// IsEmpty reports whether the cycle produced no changes at all.
func (inc Incremental) IsEmpty() bool {
	return len(inc.Inputs) == 0 && len(inc.Outputs) == 0
}

// Canonical returns a sorted deep copy: inputs and outputs by index,
// changes by CompareChanges. Two incrementals are equal iff their canonical
// forms are identical.
func (inc Incremental) Canonical() Incremental {
	out := Incremental{}
	if len(inc.Inputs) > 0 {
		out.Inputs = slices.Clone(inc.Inputs)
		slices.SortStableFunc(out.Inputs, func(a, b InputValue) int {
			if c := cmp.Compare(a.Input, b.Input); c != 0 {
				return c
			}
			return ir.CompareValues(a.Value, b.Value)
		})
	}
	for _, oc := range inc.Outputs {
		changes := slices.Clone(oc.Changes)
		slices.SortFunc(changes, CompareChanges)
		out.Outputs = append(out.Outputs, OutputChanges{Output: oc.Output, Changes: changes})
	}
	slices.SortStableFunc(out.Outputs, func(a, b OutputChanges) int { return cmp.Compare(a.Output, b.Output) })
	return out
}

// Equal compares two incrementals after sorting each independently.
func (inc Incremental) Equal(other Incremental) bool {
	a, b := inc.Canonical(), other.Canonical()
	if len(a.Inputs) != len(b.Inputs) || len(a.Outputs) != len(b.Outputs) {
		return false
	}
	for i := range a.Inputs {
		if a.Inputs[i].Input != b.Inputs[i].Input || !ir.EqualValues(a.Inputs[i].Value, b.Inputs[i].Value) {
			return false
		}
	}
	for i := range a.Outputs {
		if a.Outputs[i].Output != b.Outputs[i].Output {
			return false
		}
		if !slices.EqualFunc(a.Outputs[i].Changes, b.Outputs[i].Changes, func(x, y Change) bool {
			return CompareChanges(x, y) == 0
		}) {
			return false
		}
	}
	return true
}

// Changes returns the changes of output, or nil if it had no activity.
func (inc Incremental) Changes(output int) []Change {
	for _, oc := range inc.Outputs {
		if oc.Output == output {
			return oc.Changes
		}
	}
	return nil
}

// Document returns the canonical JSON document of the incremental.
func (inc Incremental) Document() ir.Object {
	c := inc.Canonical()
	inputs := make([]any, len(c.Inputs))
	for i, in := range c.Inputs {
		inputs[i] = ir.Object{"input": in.Input, "value": in.Value}
	}
	outputs := make([]any, len(c.Outputs))
	for i, oc := range c.Outputs {
		changes := make([]any, len(oc.Changes))
		for j, ch := range oc.Changes {
			changes[j] = ch.document()
		}
		outputs[i] = ir.Object{"output": oc.Output, "changes": changes}
	}
	return ir.Object{"inputs": inputs, "outputs": outputs}
}

// OnlyValues drops Spawn and Close changes, keeping outputs that still have
// changes.
func (inc Incremental) OnlyValues() Incremental {
	out := Incremental{Inputs: slices.Clone(inc.Inputs)}
	for _, oc := range inc.Outputs {
		var values []Change
		for _, ch := range oc.Changes {
			if ch.Kind == Value {
				values = append(values, ch)
			}
		}
		if len(values) > 0 {
			out.Outputs = append(out.Outputs, OutputChanges{Output: oc.Output, Changes: values})
		}
	}
	return out
}

// Timed is the change set of one periodic cycle.
type Timed struct {
	TS time.Duration
	Incremental
}

// Verdict is the result of accepting one event: the periodic cycles fired
// since the previous event, followed by the event's own cycle.
type Verdict struct {
	Timed []Timed
	TS    time.Duration
	Event Incremental
}

// Equal compares two verdicts cycle by cycle using Incremental.Equal.
func (v Verdict) Equal(other Verdict) bool {
	if v.TS != other.TS || len(v.Timed) != len(other.Timed) || !v.Event.Equal(other.Event) {
		return false
	}
	for i := range v.Timed {
		if v.Timed[i].TS != other.Timed[i].TS || !v.Timed[i].Incremental.Equal(other.Timed[i].Incremental) {
			return false
		}
	}
	return true
}

// OnlyValues applies Incremental.OnlyValues to every cycle. Periodic
// cycles left without inputs and values are dropped; the event cycle is
// always kept.
func (v Verdict) OnlyValues() Verdict {
	out := Verdict{TS: v.TS, Event: v.Event.OnlyValues()}
	for _, t := range v.Timed {
		if inc := t.Incremental.OnlyValues(); !inc.IsEmpty() {
			out.Timed = append(out.Timed, Timed{TS: t.TS, Incremental: inc})
		}
	}
	return out
}

// Cycles flattens the verdict into its cycles in evaluation order. The
// event cycle comes last.
func (v Verdict) Cycles() []Timed {
	out := make([]Timed, 0, len(v.Timed)+1)
	out = append(out, v.Timed...)
	return append(out, Timed{TS: v.TS, Incremental: v.Event})
}

// Document returns the canonical JSON document of the cycle: the
// incremental's document plus its timestamp in nanoseconds.
func (t Timed) Document() ir.Object {
	doc := t.Incremental.Document()
	doc["ts"] = t.TS
	return doc
}

// Hash returns the content hash of the cycle's document. Two runs produced
// the same cycle iff the hashes match.
func (t Timed) Hash() (string, error) {
	return ir.VerdictHash(t.Document())
}
