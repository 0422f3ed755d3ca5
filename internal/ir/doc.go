// Package ir provides the compiled stream specification consumed by the
// monitor core, together with its value model.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This ensures IR remains the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Value is a sealed interface with a total order (CompareValues) so
//     verdicts can be canonicalised independent of construction order
//   - Parameters == nil means "unparameterized"; a non-nil, possibly empty
//     slice identifies one instance of a parameterized stream
//   - The evaluation order is the statement tree in StreamIR.Stmt and is
//     fixed by the producer of the IR; consumers never reorder it
//   - Time is a time.Duration offset from the monitor's start, never wall-clock
package ir
