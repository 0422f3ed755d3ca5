// Package engine evaluates a compiled StreamIR specification over a
// timestamped event stream.
//
// ARCHITECTURE:
//
// A Monitor owns the stream memory, the deadline scheduler and a logical
// clock. Each AcceptEvent call:
//  1. drains the scheduler up to the event's timestamp, running one
//     periodic cycle per distinct deadline timestamp
//  2. writes the event's inputs and runs the event cycle
//  3. returns the change set of every cycle as a verdict.Verdict
//
// A cycle walks the specification's single compiled statement exactly once
// in its fixed order. Guards decide which assignments, spawns and closes
// run; expressions are pure reads of memory. After the walk the scheduler
// learns which dynamic deadlines were created or closed, the verdict
// factory collects the cycle's activity and per-cycle activation state is
// cleared.
//
// Iterate nodes snapshot the live instances when they start. Spawn and
// Close requested inside an iteration are applied after the outermost
// Iterate completes, so the instance set never changes under a loop.
//
// DETERMINISM:
//
// Evaluation is single-threaded and synchronous. Instances iterate in
// ir.CompareParameters order, scheduler ties break by insertion order, and
// verdict changes are sorted by verdict.CompareChanges. The same
// specification and events always produce the same verdicts, which Replay
// checks hash by hash.
//
// ERRORS:
//
// Every failure is fatal. The cycle aborts, the monitor is poisoned and
// later calls return the same *RuntimeError. Use IsInstanceNotFound,
// IsOutOfBounds, IsTypeError, IsQuotaExceeded and IsConfigurationError to
// classify. WithMaxCatchUp bounds the periodic cycles a single call may run.
package engine
