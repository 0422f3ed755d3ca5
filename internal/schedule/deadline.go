// Package schedule implements the time-ordered queue of periodic evaluation
// points. It knows nothing about stream memory: static deadlines carry only
// their period, dynamic deadlines carry the spawned instances they serve.
package schedule

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
)

// Target names one spawned stream instance served by a dynamic deadline.
type Target struct {
	Output int
	Params ir.Parameters
}

func (t Target) String() string {
	if t.Params == nil {
		return fmt.Sprintf("out%d", t.Output)
	}
	return fmt.Sprintf("out%d(%s)", t.Output, t.Params)
}

func (t Target) key() string {
	return fmt.Sprintf("%d/%s", t.Output, t.Params.Key())
}

// CompareTargets orders targets by output index, then parameters.
func CompareTargets(a, b Target) int {
	if c := cmp.Compare(a.Output, b.Output); c != 0 {
		return c
	}
	return ir.CompareParameters(a.Params, b.Params)
}

// Deadline is a periodic timer. A static deadline fires for the monitor's
// whole lifetime; a dynamic deadline serves a changing set of targets and
// disappears when the last one is removed.
type Deadline struct {
	Period  time.Duration
	Static  bool
	Targets []Target
}

// StaticDeadline returns a fixed-period timer.
func StaticDeadline(period time.Duration) Deadline {
	return Deadline{Period: period, Static: true}
}

// DynamicDeadline returns a timer shared by targets.
func DynamicDeadline(period time.Duration, targets ...Target) Deadline {
	return Deadline{Period: period, Targets: targets}
}

// Batch is the merged payload of every deadline due at one timestamp.
type Batch struct {
	Due     time.Duration
	Static  []time.Duration // distinct periods, ascending
	Dynamic []Target        // distinct targets, sorted by CompareTargets
}

// HasStatic reports whether the static deadline with period fired.
func (b Batch) HasStatic(period time.Duration) bool {
	_, found := slices.BinarySearch(b.Static, period)
	return found
}

// HasTarget reports whether a dynamic deadline fired for the instance.
func (b Batch) HasTarget(output int, params ir.Parameters) bool {
	_, found := slices.BinarySearchFunc(b.Dynamic, Target{Output: output, Params: params}, CompareTargets)
	return found
}

// Empty reports whether nothing fired.
func (b Batch) Empty() bool { return len(b.Static) == 0 && len(b.Dynamic) == 0 }

func (b *Batch) merge(d Deadline) {
	if d.Static {
		b.Static = append(b.Static, d.Period)
		return
	}
	b.Dynamic = append(b.Dynamic, d.Targets...)
}

func (b *Batch) normalize() {
	slices.Sort(b.Static)
	b.Static = slices.Compact(b.Static)
	slices.SortFunc(b.Dynamic, CompareTargets)
	b.Dynamic = slices.CompactFunc(b.Dynamic, func(x, y Target) bool { return CompareTargets(x, y) == 0 })
}
