package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/reactive-systems/rtlola-streamir/internal/trace"
)

// RunStats summarises a driven run.
type RunStats struct {
	Events int
	Cycles int64
	LastTS time.Duration
}

// Run feeds every event of src to m, hands each cycle to sink in
// evaluation order and finishes the monitor at the last event's timestamp.
//
// Sinks that implement trace.EventRecorder also receive every accepted
// event before its cycles. Errors from src or sink are wrapped and
// returned; the sink is not closed.
func Run(ctx context.Context, m *Monitor, src trace.EventSource, sink trace.VerdictSink) (RunStats, error) {
	var stats RunStats
	recorder, _ := sink.(trace.EventRecorder)
	lastTS := m.Now()

	for {
		ev, ok, err := src.Next(ctx)
		if err != nil {
			return stats, fmt.Errorf("read event %d: %w", stats.Events+1, err)
		}
		if !ok {
			break
		}

		v, err := m.AcceptEvent(ctx, ev.Inputs, ev.TS)
		if err != nil {
			return stats, err
		}
		if recorder != nil {
			if err := recorder.RecordEvent(ev); err != nil {
				return stats, fmt.Errorf("record event %d: %w", stats.Events+1, err)
			}
		}
		for _, c := range v.Cycles() {
			if err := sink.Accept(c.TS, c.Incremental); err != nil {
				return stats, fmt.Errorf("sink verdict at %s: %w", c.TS, err)
			}
		}
		stats.Events++
		lastTS = ev.TS
	}

	timed, err := m.Finish(ctx, lastTS)
	if err != nil {
		return stats, err
	}
	for _, c := range timed {
		if err := sink.Accept(c.TS, c.Incremental); err != nil {
			return stats, fmt.Errorf("sink verdict at %s: %w", c.TS, err)
		}
	}
	stats.Cycles = m.Cycles()
	stats.LastTS = lastTS
	return stats, nil
}
