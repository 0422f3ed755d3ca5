// Package verdict defines the change records produced by each evaluation
// cycle and their canonical, construction-order independent comparison.
package verdict

import (
	"cmp"
	"fmt"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
)

// ChangeKind is the variant of a Change. The numeric order is the first key
// of CompareChanges: Spawn < Value < Close.
type ChangeKind int

const (
	Spawn ChangeKind = iota
	Value
	Close
)

func (k ChangeKind) String() string {
	switch k {
	case Spawn:
		return "spawn"
	case Value:
		return "value"
	case Close:
		return "close"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Change is one observable effect on an output in a cycle.
// Params is nil for unparameterized outputs; Value is set for Value changes only.
type Change struct {
	Kind   ChangeKind
	Params ir.Parameters
	Value  ir.Value
}

// SpawnOf returns a Spawn change.
func SpawnOf(params ir.Parameters) Change { return Change{Kind: Spawn, Params: params} }

// ValueOf returns a Value change.
func ValueOf(params ir.Parameters, v ir.Value) Change {
	return Change{Kind: Value, Params: params, Value: v}
}

// CloseOf returns a Close change.
func CloseOf(params ir.Parameters) Change { return Change{Kind: Close, Params: params} }

// String renders the change as "Spawn<5>", "Instance<5> = 3", "Close<5>"
// or "Value = 3".
func (c Change) String() string {
	switch c.Kind {
	case Spawn:
		if c.Params == nil {
			return "Spawn"
		}
		return fmt.Sprintf("Spawn<%s>", c.Params)
	case Value:
		if c.Params == nil {
			return fmt.Sprintf("Value = %s", valueString(c.Value))
		}
		return fmt.Sprintf("Instance<%s> = %s", c.Params, valueString(c.Value))
	case Close:
		if c.Params == nil {
			return "Close"
		}
		return fmt.Sprintf("Close<%s>", c.Params)
	default:
		return c.Kind.String()
	}
}

func valueString(v ir.Value) string {
	if v == nil {
		return ir.None{}.String()
	}
	return v.String()
}

// CompareChanges is the canonical total order: kind, then parameters, then value.
func CompareChanges(a, b Change) int {
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	if c := ir.CompareParameters(a.Params, b.Params); c != 0 {
		return c
	}
	return ir.CompareValues(a.Value, b.Value)
}

func (c Change) document() ir.Object {
	doc := ir.Object{"kind": c.Kind.String(), "params": c.Params}
	if c.Kind == Value {
		doc["value"] = c.Value
	}
	return doc
}
