package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
	"github.com/reactive-systems/rtlola-streamir/internal/trace"
)

// RecordedCycle is the fingerprint of one cycle of a recorded run.
type RecordedCycle struct {
	TS   time.Duration
	Hash string
}

// ReplayMismatch is a cycle whose re-executed verdict differs from the
// recording. Index is the cycle's position in evaluation order.
type ReplayMismatch struct {
	Index    int
	TS       time.Duration
	Expected string
	Actual   string
}

// ReplayResult is the outcome of a determinism check.
type ReplayResult struct {
	Cycles     int
	Recorded   int
	Mismatches []ReplayMismatch
}

// Deterministic reports whether the re-execution reproduced the recording
// cycle for cycle.
func (r *ReplayResult) Deterministic() bool {
	return len(r.Mismatches) == 0 && r.Cycles == r.Recorded
}

// Replay re-executes spec over the recorded events with a fresh monitor and
// compares every cycle's verdict hash with the recording.
//
// Evaluation is deterministic: the same specification and events always
// produce the same cycles with the same changes. A mismatch means the
// recording was made by a different specification or engine version, or
// was tampered with.
func Replay(ctx context.Context, spec *ir.StreamIR, events []trace.Event, recorded []RecordedCycle, opts ...Option) (*ReplayResult, error) {
	m, err := Build(spec, opts...)
	if err != nil {
		return nil, err
	}
	collector := &trace.Collector{}
	if _, err := Run(ctx, m, trace.NewSliceSource(events), collector); err != nil {
		return nil, err
	}

	result := &ReplayResult{Cycles: len(collector.Cycles), Recorded: len(recorded)}
	for i, c := range collector.Cycles {
		actual, err := c.Hash()
		if err != nil {
			return nil, fmt.Errorf("hash cycle %d: %w", i, err)
		}
		if i >= len(recorded) {
			result.Mismatches = append(result.Mismatches, ReplayMismatch{Index: i, TS: c.TS, Actual: actual})
			continue
		}
		if recorded[i].TS != c.TS || recorded[i].Hash != actual {
			result.Mismatches = append(result.Mismatches, ReplayMismatch{
				Index:    i,
				TS:       c.TS,
				Expected: recorded[i].Hash,
				Actual:   actual,
			})
		}
	}
	for i := len(collector.Cycles); i < len(recorded); i++ {
		result.Mismatches = append(result.Mismatches, ReplayMismatch{Index: i, TS: recorded[i].TS, Expected: recorded[i].Hash})
	}
	return result, nil
}
