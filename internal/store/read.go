package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/reactive-systems/rtlola-streamir/internal/trace"
)

// ReadRun returns the header of a run.
// Returns *RunNotFoundError if the run does not exist.
func (s *Store) ReadRun(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, spec_hash, ir_version, engine_version, tie_break, start_ns, source, finished, last_ts_ns, cycles
		FROM runs
		WHERE id = ?
	`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, &RunNotFoundError{ID: runID}
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run: %w", err)
	}
	return run, nil
}

// ListRuns returns every run ordered by ID. Run IDs are UUIDv7, so this
// is creation order.
//
// Returns empty slice (not nil) if the store holds no runs.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, spec_hash, ir_version, engine_version, tie_break, start_ns, source, finished, last_ts_ns, cycles
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadEvents returns the events of a run in acceptance order.
//
// Returns empty slice (not nil) if the run recorded no events.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]trace.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts_ns, inputs
		FROM events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []trace.Event{}
	for rows.Next() {
		var (
			ts     int64
			inputs string
		)
		if err := rows.Scan(&ts, &inputs); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		values, err := unmarshalInputs(inputs)
		if err != nil {
			return nil, err
		}
		events = append(events, trace.Event{TS: time.Duration(ts), Inputs: values})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ReadCycles returns the stored cycles of a run in evaluation order.
//
// Returns empty slice (not nil) if the run recorded no cycles.
func (s *Store) ReadCycles(ctx context.Context, runID string) ([]CycleRecord, error) {
	return s.queryCycles(ctx, `
		SELECT run_id, seq, ts_ns, document, hash
		FROM verdicts
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
}

// FindCycles returns every stored cycle with the given hash, across runs,
// ordered by run and position.
func (s *Store) FindCycles(ctx context.Context, hash string) ([]CycleRecord, error) {
	return s.queryCycles(ctx, `
		SELECT run_id, seq, ts_ns, document, hash
		FROM verdicts
		WHERE hash = ?
		ORDER BY run_id COLLATE BINARY ASC, seq ASC
	`, hash)
}

func (s *Store) queryCycles(ctx context.Context, query string, arg string) ([]CycleRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	cycles := []CycleRecord{}
	for rows.Next() {
		var (
			rec CycleRecord
			ts  int64
		)
		if err := rows.Scan(&rec.RunID, &rec.Seq, &ts, &rec.Document, &rec.Hash); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		rec.TS = time.Duration(ts)
		cycles = append(cycles, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}
	return cycles, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run      Run
		start    int64
		lastTS   int64
		finished int
	)
	err := row.Scan(
		&run.ID,
		&run.SpecHash,
		&run.IRVersion,
		&run.EngineVersion,
		&run.TieBreak,
		&start,
		&run.Source,
		&finished,
		&lastTS,
		&run.Cycles,
	)
	if err != nil {
		return Run{}, err
	}
	run.Start = time.Duration(start)
	run.LastTS = time.Duration(lastTS)
	run.Finished = finished != 0
	return run, nil
}
