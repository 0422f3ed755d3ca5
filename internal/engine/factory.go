package engine

import (
	"slices"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
	"github.com/reactive-systems/rtlola-streamir/internal/memory"
	"github.com/reactive-systems/rtlola-streamir/internal/verdict"
)

// buildIncremental collects the activity of the cycle that just ran.
// It must be called before memory.ClearActivation.
//
// The same rule covers every output kind: one Spawn per instance created,
// one Value per instance written and one Close per instance destroyed.
// A static output is never spawned or closed after construction, so it
// reports a Value exactly when it is fresh.
func buildIncremental(spec *ir.StreamIR, mem *memory.Memory) verdict.Incremental {
	var inc verdict.Incremental
	for i := range spec.Inputs {
		buf := mem.Input(i)
		if !buf.IsFresh() {
			continue
		}
		v, err := buf.Get(0)
		if err != nil {
			continue
		}
		inc.Inputs = append(inc.Inputs, verdict.InputValue{Input: i, Value: v})
	}

	for i := range spec.Outputs {
		col := mem.Output(i)
		var changes []verdict.Change
		for _, params := range col.Spawned() {
			changes = append(changes, verdict.SpawnOf(params.Clone()))
		}
		for _, fv := range col.Fresh() {
			changes = append(changes, verdict.ValueOf(fv.Params.Clone(), fv.Value))
		}
		for _, params := range col.Closed() {
			changes = append(changes, verdict.CloseOf(params.Clone()))
		}
		if len(changes) == 0 {
			continue
		}
		slices.SortStableFunc(changes, verdict.CompareChanges)
		inc.Outputs = append(inc.Outputs, verdict.OutputChanges{Output: i, Changes: changes})
	}
	return inc
}
