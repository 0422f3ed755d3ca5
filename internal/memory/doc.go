// Package memory holds the monitor's stream state: bounded per-stream
// history, per-instance buffers for parameterized outputs, and window
// accumulators.
//
// Memory is owned by exactly one monitor and is not safe for concurrent use.
// Instance buffers and instanced window state are created by Spawn and
// destroyed by Close within the same call; there is no lazy creation and no
// deferred destruction. Per-cycle activation (spawned, fresh, closed) is
// tracked here and reset by ClearActivation.
package memory
