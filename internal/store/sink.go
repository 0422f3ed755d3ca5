package store

import (
	"context"
	"time"

	"github.com/reactive-systems/rtlola-streamir/internal/trace"
	"github.com/reactive-systems/rtlola-streamir/internal/verdict"
)

// Sink writes a run into the store. It implements trace.VerdictSink and
// trace.EventRecorder: every accepted event and every evaluated cycle is
// appended in order, and Close marks the run finished.
//
// Unlike the CSV and JSON sinks, Sink records empty cycles too, so a
// replay can compare cycle by cycle.
type Sink struct {
	ctx    context.Context
	store  *Store
	runID  string
	events int64
	cycles int64
	lastTS time.Duration
}

var (
	_ trace.VerdictSink   = (*Sink)(nil)
	_ trace.EventRecorder = (*Sink)(nil)
)

// NewSink creates the run header and returns a sink appending to it.
// ctx bounds every write the sink performs.
func NewSink(ctx context.Context, s *Store, run Run) (*Sink, error) {
	if err := s.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	return &Sink{ctx: ctx, store: s, runID: run.ID, lastTS: run.Start}, nil
}

// RunID returns the run being written.
func (k *Sink) RunID() string { return k.runID }

// RecordEvent appends an accepted event.
func (k *Sink) RecordEvent(ev trace.Event) error {
	if err := k.store.WriteEvent(k.ctx, k.runID, k.events, ev); err != nil {
		return err
	}
	k.events++
	return nil
}

// Accept appends one cycle.
func (k *Sink) Accept(ts time.Duration, inc verdict.Incremental) error {
	if err := k.store.WriteCycle(k.ctx, k.runID, k.cycles, verdict.Timed{TS: ts, Incremental: inc}); err != nil {
		return err
	}
	k.cycles++
	k.lastTS = ts
	return nil
}

// Close marks the run finished. The store itself stays open.
func (k *Sink) Close() error {
	return k.store.FinishRun(k.ctx, k.runID, k.lastTS, k.cycles)
}

// Abort records the progress of a run whose monitor failed and leaves it
// unfinished. It also runs after the sink's context was cancelled.
func (k *Sink) Abort() error {
	return k.store.AbortRun(context.WithoutCancel(k.ctx), k.runID, k.lastTS, k.cycles)
}
