// Package trace connects a monitor to the outside world: event sources
// feeding it, verdict sinks consuming its output and the projection that
// selects which streams a sink reports.
//
// Everything here is collaborator-side. The monitor never reads back what
// a sink wrote, and sink failures are returned to the caller unchanged.
package trace

import (
	"context"
	"errors"
	"time"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
	"github.com/reactive-systems/rtlola-streamir/internal/verdict"
)

// Event is one timestamped set of input values. Inputs maps input indices
// to values; absent inputs are not fresh.
type Event struct {
	TS     time.Duration
	Inputs map[int]ir.Value
}

// EventSource produces events in timestamp order. Next reports ok=false
// when the source is exhausted.
type EventSource interface {
	Next(ctx context.Context) (ev Event, ok bool, err error)
}

// VerdictSink consumes the change set of every cycle in evaluation order.
type VerdictSink interface {
	Accept(ts time.Duration, inc verdict.Incremental) error
	Close() error
}

// EventRecorder is implemented by sinks that also persist the events the
// monitor accepted, so the run can be replayed later.
type EventRecorder interface {
	RecordEvent(ev Event) error
}

// SliceSource replays a fixed list of events.
type SliceSource struct {
	events []Event
	pos    int
}

// NewSliceSource creates a source over events.
func NewSliceSource(events []Event) *SliceSource {
	return &SliceSource{events: events}
}

// Next returns the next event.
func (s *SliceSource) Next(ctx context.Context) (Event, bool, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, false, err
	}
	if s.pos >= len(s.events) {
		return Event{}, false, nil
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, true, nil
}

// Collector is a sink that keeps every cycle in memory.
type Collector struct {
	Cycles []verdict.Timed
	Events []Event
}

// Accept records the cycle.
func (c *Collector) Accept(ts time.Duration, inc verdict.Incremental) error {
	c.Cycles = append(c.Cycles, verdict.Timed{TS: ts, Incremental: inc})
	return nil
}

// RecordEvent records the event.
func (c *Collector) RecordEvent(ev Event) error {
	c.Events = append(c.Events, ev)
	return nil
}

// Close does nothing.
func (c *Collector) Close() error { return nil }

// MultiSink fans every cycle out to several sinks in order.
type MultiSink []VerdictSink

// Accept forwards the cycle to every sink and stops at the first failure.
func (m MultiSink) Accept(ts time.Duration, inc verdict.Incremental) error {
	for _, s := range m {
		if err := s.Accept(ts, inc); err != nil {
			return err
		}
	}
	return nil
}

// RecordEvent forwards the event to every sink that records events.
func (m MultiSink) RecordEvent(ev Event) error {
	for _, s := range m {
		if rec, ok := s.(EventRecorder); ok {
			if err := rec.RecordEvent(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
