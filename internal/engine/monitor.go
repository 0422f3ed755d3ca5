package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/reactive-systems/rtlola-streamir/internal/compiler"
	"github.com/reactive-systems/rtlola-streamir/internal/ir"
	"github.com/reactive-systems/rtlola-streamir/internal/memory"
	"github.com/reactive-systems/rtlola-streamir/internal/schedule"
	"github.com/reactive-systems/rtlola-streamir/internal/verdict"
)

// TieBreak orders a periodic deadline and an event carrying the same
// timestamp.
type TieBreak int

const (
	// PeriodicFirst evaluates deadlines due at the event's timestamp before
	// the event cycle.
	PeriodicFirst TieBreak = iota

	// EventFirst evaluates the event cycle first. Deadlines due at the same
	// timestamp fire with the next event or at Finish.
	EventFirst
)

// String returns the flag spelling of the tie-break policy.
func (t TieBreak) String() string {
	switch t {
	case PeriodicFirst:
		return "periodic-first"
	case EventFirst:
		return "event-first"
	default:
		return fmt.Sprintf("TieBreak(%d)", int(t))
	}
}

// ParseTieBreak parses "periodic-first" or "event-first".
func ParseTieBreak(s string) (TieBreak, error) {
	switch strings.ToLower(s) {
	case "periodic-first", "":
		return PeriodicFirst, nil
	case "event-first":
		return EventFirst, nil
	default:
		return 0, fmt.Errorf("invalid tie-break %q (expected periodic-first or event-first)", s)
	}
}

// Monitor evaluates a StreamIR specification over a timestamped event
// stream.
//
// A monitor is single-threaded and synchronous: AcceptEvent and Finish
// must not be called concurrently. Each call first runs every periodic
// cycle due before the event, then the event's own cycle, and returns
// their changes.
//
// Failures are fatal. After any error the monitor is poisoned and every
// later call returns the same error. After Finish, calls fail with
// MONITOR_FINISHED.
type Monitor struct {
	spec     *ir.StreamIR
	mem      *memory.Memory
	queue    *schedule.Queue
	clock    *Clock
	start    time.Duration
	now      time.Duration
	tieBreak TieBreak
	catchUp  int

	logger   *slog.Logger
	metrics  *Metrics
	runIDGen RunIDGenerator
	runID    string
	specHash string

	finished bool
	poisoned error
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithStartTime sets the monitor's time origin. Static deadlines first fire
// at start + period. Default: 0.
func WithStartTime(start time.Duration) Option {
	return func(m *Monitor) { m.start = start }
}

// WithTieBreak sets the ordering of same-timestamp deadlines and events.
// Default: PeriodicFirst.
func WithTieBreak(t TieBreak) Option {
	return func(m *Monitor) { m.tieBreak = t }
}

// WithMaxCatchUp limits the periodic cycles one AcceptEvent or Finish call
// may run. Exceeding it fails with QUOTA_EXCEEDED. Default: 0 (unlimited).
func WithMaxCatchUp(limit int) Option {
	return func(m *Monitor) { m.catchUp = limit }
}

// WithLogger sets the logger. Default: a logger that discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Monitor) { m.metrics = metrics }
}

// WithRunIDGenerator sets the source of the monitor's run id.
// Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(m *Monitor) { m.runIDGen = g }
}

// Build validates spec and allocates a monitor for it.
//
// Validation failures are returned as a CONFIGURATION_ERROR whose Details
// map each offending field to its message.
func Build(spec *ir.StreamIR, opts ...Option) (*Monitor, error) {
	if spec == nil {
		return nil, NewConfigurationError("nil specification", nil)
	}
	if errs := compiler.ValidateIR(spec); len(errs) > 0 {
		details := make(map[string]string, len(errs))
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			details[e.Field] = e.Message
			msgs = append(msgs, e.Error())
		}
		return nil, NewConfigurationError(strings.Join(msgs, "; "), details)
	}

	m := &Monitor{
		spec:     spec,
		queue:    schedule.New(),
		clock:    NewClock(),
		tieBreak: PeriodicFirst,
		runIDGen: UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	m.now = m.start
	m.mem = memory.New(spec, m.start)
	for _, period := range spec.StaticPeriods() {
		m.queue.Add(schedule.StaticDeadline(period), m.start+period)
	}
	m.runID = m.runIDGen.Generate()
	m.specHash = ir.SpecHash(spec)

	m.logger.Info("monitor built",
		"run_id", m.runID,
		"spec_hash", m.specHash,
		"inputs", len(spec.Inputs),
		"outputs", len(spec.Outputs),
		"deadlines", m.queue.Len(),
		"tie_break", m.tieBreak.String(),
	)
	return m, nil
}

// RunID returns the identifier generated for this monitor.
func (m *Monitor) RunID() string { return m.runID }

// SpecHash returns the content hash of the monitored specification.
func (m *Monitor) SpecHash() string { return m.specHash }

// Spec returns the monitored specification.
func (m *Monitor) Spec() *ir.StreamIR { return m.spec }

// Now returns the timestamp of the most recent cycle (or the start time).
func (m *Monitor) Now() time.Duration { return m.now }

// Cycles returns the number of cycles evaluated so far.
func (m *Monitor) Cycles() int64 { return m.clock.Current() }

// LiveInstances returns the number of live parameterized instances.
func (m *Monitor) LiveInstances() int { return m.mem.LiveInstances() }

// Finished reports whether Finish has completed.
func (m *Monitor) Finished() bool { return m.finished }

// AcceptEvent runs the periodic cycles due up to ts and then the event
// cycle for inputs at ts. inputs maps input indices to their new values;
// absent inputs and None values are not fresh in the event cycle.
func (m *Monitor) AcceptEvent(ctx context.Context, inputs map[int]ir.Value, ts time.Duration) (verdict.Verdict, error) {
	if err := m.ready(ctx, ts); err != nil {
		return verdict.Verdict{}, err
	}
	indices, err := m.checkInputs(inputs)
	if err != nil {
		return verdict.Verdict{}, m.fail(err)
	}

	timed, err := m.drain(ctx, ts, m.tieBreak == PeriodicFirst)
	if err != nil {
		return verdict.Verdict{}, m.fail(err)
	}

	m.now = ts
	c := newCycle(m.spec, m.mem, ts, nil)
	for _, i := range indices {
		m.mem.WriteInput(i, inputs[i], ts)
	}
	event, err := m.runCycle(c, CycleKindEvent)
	if err != nil {
		return verdict.Verdict{}, m.fail(err)
	}
	return verdict.Verdict{Timed: timed, TS: ts, Event: event}, nil
}

// Finish runs every periodic cycle due up to and including ts and retires
// the monitor. Later calls fail with MONITOR_FINISHED.
//
// There is no separate finalization step: spawn and close deadline
// bookkeeping is applied at the end of every cycle, so deadlines armed by
// the last event are already queued when Finish drains.
func (m *Monitor) Finish(ctx context.Context, ts time.Duration) ([]verdict.Timed, error) {
	if err := m.ready(ctx, ts); err != nil {
		return nil, err
	}
	timed, err := m.drain(ctx, ts, true)
	if err != nil {
		return nil, m.fail(err)
	}
	m.now = ts
	m.finished = true
	m.logger.Info("monitor finished",
		"run_id", m.runID,
		"ts", ts,
		"cycles", m.clock.Current(),
		"live_instances", m.mem.LiveInstances(),
	)
	return timed, nil
}

// ready rejects calls on a poisoned or finished monitor and timestamps
// older than the monitor's time.
func (m *Monitor) ready(ctx context.Context, ts time.Duration) error {
	if m.poisoned != nil {
		return m.poisoned
	}
	if m.finished {
		return &RuntimeError{Code: ErrCodeFinished, Message: "monitor already finished"}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if ts < m.now {
		return m.fail(&RuntimeError{
			Code:    ErrCodeTimeRegression,
			Message: fmt.Sprintf("timestamp %s precedes monitor time %s", ts, m.now),
			Details: map[string]string{"ts": ts.String(), "now": m.now.String()},
		})
	}
	return nil
}

// checkInputs validates an event's inputs and returns the indices of the
// non-None values in ascending order.
func (m *Monitor) checkInputs(inputs map[int]ir.Value) ([]int, error) {
	indices := make([]int, 0, len(inputs))
	for i, v := range inputs {
		if i < 0 || i >= len(m.spec.Inputs) {
			return nil, NewConfigurationError(fmt.Sprintf("event names unknown input %d", i), nil)
		}
		if ir.IsNone(v) {
			continue
		}
		def := m.spec.Inputs[i]
		if !def.Type.Admits(v) {
			return nil, &RuntimeError{
				Code:    ErrCodeType,
				Message: fmt.Sprintf("%s value for %s input", v.Kind(), def.Type),
				Stream:  def.Name,
			}
		}
		indices = append(indices, i)
	}
	slices.Sort(indices)
	return indices, nil
}

// drain runs one periodic cycle per distinct deadline timestamp before end
// (or at end when inclusive).
func (m *Monitor) drain(ctx context.Context, end time.Duration, inclusive bool) ([]verdict.Timed, error) {
	var timed []verdict.Timed
	quota := NewCatchUpQuota(m.catchUp)
	for {
		batch, ok := m.queue.Next(end, inclusive)
		if !ok {
			return timed, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := quota.Check(batch.Due); err != nil {
			return nil, err
		}
		m.now = batch.Due
		inc, err := m.runCycle(newCycle(m.spec, m.mem, batch.Due, &batch), CycleKindPeriodic)
		if err != nil {
			return nil, err
		}
		timed = append(timed, verdict.Timed{TS: batch.Due, Incremental: inc})
	}
}

// runCycle evaluates the compiled statement, hands the deadline bookkeeping
// to the scheduler and collects the verdict.
func (m *Monitor) runCycle(c *cycle, kind string) (verdict.Incremental, error) {
	seq := m.clock.Next()
	if err := c.exec(m.spec.Stmt); err != nil {
		m.logger.Debug("cycle failed", "seq", seq, "kind", kind, "ts", c.now, "error", err)
		return verdict.Incremental{}, err
	}

	m.queue.Remove(c.closedTargets)
	m.queue.CollectAndAdd(c.newDeadlines, c.now)

	inc := buildIncremental(m.spec, m.mem)
	m.mem.ClearActivation()

	live := m.mem.LiveInstances()
	m.metrics.observeCycle(kind, c.batch, inc, live)
	m.logger.Debug("cycle",
		"seq", seq,
		"kind", kind,
		"ts", c.now,
		"inputs", len(inc.Inputs),
		"outputs", len(inc.Outputs),
		"live_instances", live,
	)
	return inc, nil
}

// fail poisons the monitor with err and returns it.
func (m *Monitor) fail(err error) error {
	if m.poisoned == nil {
		m.poisoned = err
		m.logger.Error("monitor poisoned", "run_id", m.runID, "ts", m.now, "error", err)
	}
	return m.poisoned
}
