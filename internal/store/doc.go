// Package store provides SQLite-backed durable storage for monitor runs.
//
// The store implements an append-only log with:
//   - Runs: one row per monitor run (spec hash, versions, tie-break, start)
//   - Events: the input events a run accepted, in acceptance order
//   - Verdicts: the canonical document and hash of every evaluation cycle
//
// # Ordering
//
// Events and verdicts are keyed by (run_id, seq) where seq is the position
// in acceptance or evaluation order. Stream time is stored alongside but
// never used for ordering: several cycles may share one timestamp.
// All queries use ORDER BY seq ASC so results are identical across reads.
//
// # Replay
//
// ReadEvents and ReadCycles return exactly what a run consumed and
// produced. Feeding the events to a fresh monitor built from the same
// specification must reproduce the cycle hashes one by one.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Documents and hashes are computed via internal/ir canonical JSON and
// SHA-256 with domain separation.
package store
