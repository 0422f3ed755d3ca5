package harness

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/reactive-systems/rtlola-streamir/internal/engine"
	"github.com/reactive-systems/rtlola-streamir/internal/ir"
	"github.com/reactive-systems/rtlola-streamir/internal/trace"
	"github.com/reactive-systems/rtlola-streamir/internal/verdict"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Trace    []string // Rendered non-empty cycles for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	// Header with assertion type
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)

	// Expected vs Actual (most important info)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	// Full trace for context
	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, line := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s\n", i+1, line)
	}

	return buf.String()
}

// occurrence is one change of the asserted stream.
type occurrence struct {
	ts     time.Duration
	change verdict.Change
}

// matcher selects the changes an assertion talks about.
type matcher struct {
	ref      ir.StreamReference
	kind     verdict.ChangeKind
	params   ir.Parameters
	value    ir.Value
	hasValue bool
}

// newMatcher resolves the assertion's stream and decodes its filters.
func newMatcher(spec *ir.StreamIR, a Assertion) (*matcher, error) {
	ref, ok := spec.LookupStream(a.Stream)
	if !ok {
		return nil, fmt.Errorf("unknown stream %q", a.Stream)
	}
	m := &matcher{ref: ref, kind: verdict.Value}
	switch a.Kind {
	case "spawn":
		m.kind = verdict.Spawn
	case "close":
		m.kind = verdict.Close
	}
	if a.Params != nil {
		v, err := ir.ValueFromAny(a.Params)
		if err != nil {
			return nil, fmt.Errorf("params: %w", err)
		}
		m.params = ir.Parameters(v.(ir.Tuple))
	}
	if a.HasValue() {
		var raw any
		if err := a.Value.Decode(&raw); err != nil {
			return nil, fmt.Errorf("value: %w", err)
		}
		v, err := ir.ValueFromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("value: %w", err)
		}
		m.value, m.hasValue = v, true
	}
	return m, nil
}

// changesOf returns the changes of ref in one cycle. Fresh inputs appear as
// value changes without parameters.
func changesOf(ref ir.StreamReference, inc verdict.Incremental) []verdict.Change {
	if ref.IsOutput() {
		return inc.Changes(ref.Index)
	}
	for _, in := range inc.Inputs {
		if in.Input == ref.Index {
			return []verdict.Change{verdict.ValueOf(nil, in.Value)}
		}
	}
	return nil
}

// matches reports whether a change satisfies every filter. Values are only
// compared when the assertion names one.
func (m *matcher) matches(c verdict.Change) bool {
	if c.Kind != m.kind {
		return false
	}
	if m.params != nil && !tupleMatches(m.params, c.Params) {
		return false
	}
	if m.hasValue && m.kind == verdict.Value && !valueMatches(m.value, c.Value) {
		return false
	}
	return true
}

// collect returns every matching change of the trace in evaluation order.
func (m *matcher) collect(cycles []verdict.Timed) []occurrence {
	var out []occurrence
	for _, cycle := range cycles {
		for _, c := range changesOf(m.ref, cycle.Incremental) {
			if m.matches(c) {
				out = append(out, occurrence{ts: cycle.TS, change: c})
			}
		}
	}
	return out
}

// describe renders the filters for failure messages.
func (m *matcher) describe(stream string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s of %s", m.kind, stream)
	if m.params != nil {
		fmt.Fprintf(&b, "<%s>", m.params)
	}
	if m.hasValue && m.kind == verdict.Value {
		fmt.Fprintf(&b, " = %s", m.value)
	}
	return b.String()
}

// valueMatches compares an expected value against an actual one.
// Integers and floats compare numerically so that YAML "2" matches 2.0.
func valueMatches(expected, actual ir.Value) bool {
	if ef, ok := numeric(expected); ok {
		af, ok := numeric(actual)
		return ok && ef == af
	}
	if et, ok := expected.(ir.Tuple); ok {
		at, ok := actual.(ir.Tuple)
		return ok && tupleMatches(ir.Parameters(et), ir.Parameters(at))
	}
	return ir.EqualValues(expected, actual)
}

func tupleMatches(expected, actual ir.Parameters) bool {
	if len(expected) != len(actual) {
		return false
	}
	for i := range expected {
		if !valueMatches(expected[i], actual[i]) {
			return false
		}
	}
	return true
}

func numeric(v ir.Value) (float64, bool) {
	switch n := v.(type) {
	case ir.Int:
		return float64(n), true
	case ir.Float:
		return float64(n), true
	default:
		return 0, false
	}
}

// assertVerdictContains checks that some cycle (at the given time, if any)
// contains a matching change.
func assertVerdictContains(result *Result, a Assertion, m *matcher) error {
	for _, occ := range m.collect(result.Trace) {
		if a.At == nil || occ.ts == a.At.Duration() {
			return nil // Found matching change
		}
	}

	expected := m.describe(a.Stream)
	if a.At != nil {
		expected += " at " + a.At.String() + "s"
	}
	return &AssertionError{
		Type:     AssertVerdictContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    renderTrace(result),
	}
}

// assertVerdictTimes checks that matching changes happened exactly at the
// expected timestamps, in order.
func assertVerdictTimes(result *Result, a Assertion, m *matcher) error {
	var actual []time.Duration
	for _, occ := range m.collect(result.Trace) {
		actual = append(actual, occ.ts)
	}
	expected := make([]time.Duration, len(a.Times))
	for i, ts := range a.Times {
		expected[i] = ts.Duration()
	}

	if slices.Equal(expected, actual) {
		return nil
	}
	return &AssertionError{
		Type:     AssertVerdictTimes,
		Expected: fmt.Sprintf("%s at %s", m.describe(a.Stream), formatTimes(expected)),
		Actual:   formatTimes(actual),
		Trace:    renderTrace(result),
	}
}

// assertVerdictCount checks the number of matching changes.
func assertVerdictCount(result *Result, a Assertion, m *matcher) error {
	count := len(m.collect(result.Trace))
	if count == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertVerdictCount,
		Expected: fmt.Sprintf("%d x %s", *a.Count, m.describe(a.Stream)),
		Actual:   fmt.Sprintf("%d occurrence(s)", count),
		Trace:    renderTrace(result),
	}
}

// assertFinalValue checks the last value of the stream (or instance).
func assertFinalValue(result *Result, a Assertion, m *matcher) error {
	last := *m
	last.hasValue = false
	last.kind = verdict.Value
	occs := last.collect(result.Trace)

	actual := "no value"
	if len(occs) > 0 {
		final := occs[len(occs)-1].change.Value
		if valueMatches(m.value, final) {
			return nil
		}
		actual = final.String()
	}
	return &AssertionError{
		Type:     AssertFinalValue,
		Expected: fmt.Sprintf("final value of %s = %s", a.Stream, m.value),
		Actual:   actual,
		Trace:    renderTrace(result),
	}
}

// assertRuntimeError checks that the run failed with the given error code.
func assertRuntimeError(result *Result, a Assertion) error {
	actual := "run completed without error"
	if result.RuntimeError != nil {
		var re *engine.RuntimeError
		if errors.As(result.RuntimeError, &re) && string(re.Code) == a.Code {
			return nil
		}
		actual = result.RuntimeError.Error()
	}
	return &AssertionError{
		Type:     AssertRuntimeError,
		Expected: "runtime error " + a.Code,
		Actual:   actual,
		Trace:    renderTrace(result),
	}
}

// renderTrace renders every non-empty cycle as "ts: stream change, ...".
func renderTrace(result *Result) []string {
	var lines []string
	for _, cycle := range result.Trace {
		if cycle.IsEmpty() {
			continue
		}
		lines = append(lines, renderCycle(result.spec, cycle))
	}
	return lines
}

func renderCycle(spec *ir.StreamIR, cycle verdict.Timed) string {
	name := func(ref ir.StreamReference) string {
		if spec == nil {
			return ref.String()
		}
		return spec.StreamName(ref)
	}

	var parts []string
	for _, in := range cycle.Inputs {
		parts = append(parts, fmt.Sprintf("%s = %s", name(ir.InputRef(in.Input)), in.Value))
	}
	for _, out := range cycle.Outputs {
		for _, c := range out.Changes {
			parts = append(parts, fmt.Sprintf("%s %s", name(ir.OutputRef(out.Output)), c))
		}
	}
	return fmt.Sprintf("%ss: %s", trace.FormatTimestamp(cycle.TS), strings.Join(parts, ", "))
}

func formatTimes(ts []time.Duration) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = trace.FormatTimestamp(t)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a list of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		if assertion.Type == AssertRuntimeError {
			err = assertRuntimeError(result, assertion)
		} else if result.spec == nil {
			err = fmt.Errorf("assertion[%d]: %s requires a compiled specification", i, assertion.Type)
		} else {
			err = evaluateStreamAssertion(result, assertion)
			if err != nil {
				var ae *AssertionError
				if !errors.As(err, &ae) {
					err = fmt.Errorf("assertion[%d]: %w", i, err)
				}
			}
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}

func evaluateStreamAssertion(result *Result, a Assertion) error {
	m, err := newMatcher(result.spec, a)
	if err != nil {
		return err
	}
	switch a.Type {
	case AssertVerdictContains:
		return assertVerdictContains(result, a, m)
	case AssertVerdictTimes:
		return assertVerdictTimes(result, a, m)
	case AssertVerdictCount:
		return assertVerdictCount(result, a, m)
	case AssertFinalValue:
		return assertFinalValue(result, a, m)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}
