package store

import (
	"context"
	"fmt"
	"time"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
	"github.com/reactive-systems/rtlola-streamir/internal/trace"
	"github.com/reactive-systems/rtlola-streamir/internal/verdict"
)

// Run is the header record of one monitor run.
type Run struct {
	ID            string
	SpecHash      string
	IRVersion     string
	EngineVersion string
	TieBreak      string
	Start         time.Duration
	Source        string // event source description, e.g. the CSV path

	Finished bool
	LastTS   time.Duration
	Cycles   int64
}

// CycleRecord is one stored evaluation cycle.
type CycleRecord struct {
	RunID    string
	Seq      int64
	TS       time.Duration
	Document string
	Hash     string
}

// CreateRun inserts a run header. Versions default to the current
// ir.IRVersion and ir.EngineVersion when empty.
// Returns an error if a run with the same ID already exists.
func (s *Store) CreateRun(ctx context.Context, run Run) error {
	if run.IRVersion == "" {
		run.IRVersion = ir.IRVersion
	}
	if run.EngineVersion == "" {
		run.EngineVersion = ir.EngineVersion
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, spec_hash, ir_version, engine_version, tie_break, start_ns, source)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.SpecHash,
		run.IRVersion,
		run.EngineVersion,
		run.TieBreak,
		int64(run.Start),
		run.Source,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun marks a run as finished and records its final time and cycle
// count.
func (s *Store) FinishRun(ctx context.Context, runID string, lastTS time.Duration, cycles int64) error {
	if err := s.updateRun(ctx, runID, true, lastTS, cycles); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// AbortRun records how far a failed run got. The run stays unfinished, so
// replay skips it.
func (s *Store) AbortRun(ctx context.Context, runID string, lastTS time.Duration, cycles int64) error {
	if err := s.updateRun(ctx, runID, false, lastTS, cycles); err != nil {
		return fmt.Errorf("abort run: %w", err)
	}
	return nil
}

func (s *Store) updateRun(ctx context.Context, runID string, finished bool, lastTS time.Duration, cycles int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET finished = ?, last_ts_ns = ?, cycles = ?
		WHERE id = ?
	`, finished, int64(lastTS), cycles, runID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &RunNotFoundError{ID: runID}
	}
	return nil
}

// WriteEvent appends an accepted event at position seq.
//
// Note: The run referenced by runID must exist (foreign key constraint).
func (s *Store) WriteEvent(ctx context.Context, runID string, seq int64, ev trace.Event) error {
	inputs, err := marshalInputs(ev.Inputs)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (run_id, seq, ts_ns, inputs)
		VALUES (?, ?, ?, ?)
	`, runID, seq, int64(ev.TS), inputs)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// WriteCycle appends the verdict of one evaluation cycle at position seq.
// The canonical document and its hash are computed here so every reader
// compares the same bytes.
//
// Note: The run referenced by runID must exist (foreign key constraint).
func (s *Store) WriteCycle(ctx context.Context, runID string, seq int64, cycle verdict.Timed) error {
	doc, err := ir.MarshalCanonical(cycle.Document())
	if err != nil {
		return fmt.Errorf("write cycle: %w", err)
	}
	hash, err := cycle.Hash()
	if err != nil {
		return fmt.Errorf("write cycle: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO verdicts (run_id, seq, ts_ns, document, hash)
		VALUES (?, ?, ?, ?, ?)
	`, runID, seq, int64(cycle.TS), string(doc), hash)
	if err != nil {
		return fmt.Errorf("write cycle: %w", err)
	}
	return nil
}

// RunNotFoundError is returned when a run ID does not exist.
type RunNotFoundError struct {
	ID string
}

func (e *RunNotFoundError) Error() string {
	return fmt.Sprintf("run %q not found", e.ID)
}
