package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/reactive-systems/rtlola-streamir/internal/compiler"
	"github.com/reactive-systems/rtlola-streamir/internal/engine"
	"github.com/reactive-systems/rtlola-streamir/internal/ir"
	"github.com/reactive-systems/rtlola-streamir/internal/store"
	"github.com/reactive-systems/rtlola-streamir/internal/testutil"
	"github.com/reactive-systems/rtlola-streamir/internal/trace"
)

// Harness is the test execution engine.
// It runs scenarios with a fixed run id against an isolated in-memory store.
type Harness struct {
	store  *store.Store
	spec   *ir.StreamIR
	opts   []engine.Option
	runID  string
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Compile the scenario's specification
//  2. Build a monitor and feed it every event, recording the run
//  3. Replay the recording against a fresh monitor (determinism check)
//  4. Evaluate assertions against the collected cycles
//
// A runtime error of the monitor is part of the result, not a returned
// error; only infrastructure problems (unreadable spec, store failures)
// are returned.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	spec, err := compileScenarioSpec(scenario)
	if err != nil {
		return nil, err
	}
	events, err := scenarioEvents(spec, scenario.Events)
	if err != nil {
		return nil, err
	}

	// Create fresh in-memory SQLite database
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	tieBreak, err := engine.ParseTieBreak(scenario.TieBreak)
	if err != nil {
		return nil, err
	}
	runID := scenario.RunID
	if runID == "" {
		runID = scenario.Name
	}

	h := &Harness{
		store: st,
		spec:  spec,
		opts: []engine.Option{
			engine.WithTieBreak(tieBreak),
			engine.WithStartTime(scenario.Start.Duration()),
			engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(runID)),
		},
		runID:  runID,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	result := NewResult()
	result.RunID = runID
	result.spec = spec

	if err := h.execute(ctx, events, tieBreak, scenario.Start.Duration(), result); err != nil {
		return nil, err
	}

	if result.RuntimeError != nil && !expectsRuntimeError(scenario.Assertions) {
		result.AddError(fmt.Sprintf("monitor failed: %v", result.RuntimeError))
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

// execute runs the monitor over events, recording into the store, and then
// replays the recording.
func (h *Harness) execute(ctx context.Context, events []trace.Event, tieBreak engine.TieBreak, start time.Duration, result *Result) error {
	m, err := engine.Build(h.spec, append(h.opts, engine.WithLogger(h.logger))...)
	if err != nil {
		result.RuntimeError = err
		return nil
	}

	sink, err := store.NewSink(ctx, h.store, store.Run{
		ID:       m.RunID(),
		SpecHash: m.SpecHash(),
		TieBreak: tieBreak.String(),
		Start:    start,
		Source:   "scenario",
	})
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	collector := &trace.Collector{}
	stats, runErr := engine.Run(ctx, m, trace.NewSliceSource(events), trace.MultiSink{collector, sink})
	for _, c := range collector.Cycles {
		result.AddCycle(c)
	}
	if runErr != nil {
		result.RuntimeError = runErr
		h.logger.Info("monitor failed", "run_id", h.runID, "error", runErr)
		return nil
	}
	if err := sink.Close(); err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	h.logger.Info("monitor finished", "run_id", h.runID, "events", stats.Events, "cycles", stats.Cycles)

	return h.replay(ctx, result)
}

// replay re-executes the recorded run and records whether every cycle was
// reproduced.
func (h *Harness) replay(ctx context.Context, result *Result) error {
	events, err := h.store.ReadEvents(ctx, h.runID)
	if err != nil {
		return fmt.Errorf("failed to read recorded events: %w", err)
	}
	cycles, err := h.store.ReadCycles(ctx, h.runID)
	if err != nil {
		return fmt.Errorf("failed to read recorded cycles: %w", err)
	}
	recorded := make([]engine.RecordedCycle, len(cycles))
	for i, c := range cycles {
		recorded[i] = engine.RecordedCycle{TS: c.TS, Hash: c.Hash}
	}

	replayed, err := engine.Replay(ctx, h.spec, events, recorded, h.opts...)
	if err != nil {
		return fmt.Errorf("failed to replay run: %w", err)
	}
	result.Deterministic = replayed.Deterministic()
	if !result.Deterministic {
		result.AddError(fmt.Sprintf("replay diverged from recording in %d cycle(s)", len(replayed.Mismatches)))
	}
	return nil
}

// compileScenarioSpec compiles the scenario's spec file or inline source.
func compileScenarioSpec(s *Scenario) (*ir.StreamIR, error) {
	src := []byte(s.Source)
	filename := s.Name + ".cue"
	if s.Spec != "" {
		data, err := os.ReadFile(s.Spec)
		if err != nil {
			return nil, fmt.Errorf("failed to read spec: %w", err)
		}
		src, filename = data, s.Spec
	}

	value := cuecontext.New().CompileBytes(src, cue.Filename(filename))
	spec, err := compiler.CompileSpec(value)
	if err != nil {
		return nil, fmt.Errorf("failed to compile spec: %w", err)
	}
	return spec, nil
}

// scenarioEvents converts the scenario's events, resolving input names.
func scenarioEvents(spec *ir.StreamIR, steps []EventStep) ([]trace.Event, error) {
	events := make([]trace.Event, len(steps))
	for i, step := range steps {
		ev := trace.Event{TS: step.Time.Duration(), Inputs: make(map[int]ir.Value, len(step.Inputs))}
		for name, raw := range step.Inputs {
			idx := inputIndex(spec, name)
			if idx < 0 {
				return nil, fmt.Errorf("events[%d]: %q is not an input of the specification", i, name)
			}
			v, err := convertToValue(spec.Inputs[idx].Type, raw)
			if err != nil {
				return nil, fmt.Errorf("events[%d].inputs.%s: %w", i, name, err)
			}
			ev.Inputs[idx] = v
		}
		events[i] = ev
	}
	return events, nil
}

func inputIndex(spec *ir.StreamIR, name string) int {
	for i, in := range spec.Inputs {
		if in.Name == name {
			return i
		}
	}
	return -1
}

// convertToValue converts a YAML-parsed value to a Value of type ty.
// YAML integers written for a float stream are widened.
func convertToValue(ty ir.Type, raw any) (ir.Value, error) {
	v, err := ir.ValueFromAny(raw)
	if err != nil {
		return nil, err
	}
	if i, ok := v.(ir.Int); ok && ty == ir.TypeFloat {
		return ir.Float(float64(i)), nil
	}
	return v, nil
}

func expectsRuntimeError(assertions []Assertion) bool {
	for _, a := range assertions {
		if a.Type == AssertRuntimeError {
			return true
		}
	}
	return false
}
