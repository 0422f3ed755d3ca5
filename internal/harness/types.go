package harness

import (
	"github.com/reactive-systems/rtlola-streamir/internal/ir"
	"github.com/reactive-systems/rtlola-streamir/internal/verdict"
)

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if the run is deterministic and all assertions hold.
	Pass bool `json:"pass"`

	// RunID is the run id the monitor was built with.
	RunID string `json:"run_id"`

	// Trace contains every evaluated cycle in evaluation order, including
	// cycles without changes.
	Trace []verdict.Timed `json:"-"`

	// RuntimeError is the error that stopped the monitor, if any.
	RuntimeError error `json:"-"`

	// Deterministic reports whether replaying the recorded run reproduced
	// every cycle. False when the run failed before it was recorded.
	Deterministic bool `json:"deterministic"`

	// Errors contains assertion failures and execution problems.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	spec *ir.StreamIR
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []verdict.Timed{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddCycle appends an evaluated cycle to the trace.
func (r *Result) AddCycle(cycle verdict.Timed) {
	r.Trace = append(r.Trace, cycle)
}

// Spec returns the compiled specification the scenario ran.
func (r *Result) Spec() *ir.StreamIR { return r.spec }
