package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reactive-systems/rtlola-streamir/internal/engine"
	"github.com/reactive-systems/rtlola-streamir/internal/ir"
	"github.com/reactive-systems/rtlola-streamir/internal/store"
	"github.com/reactive-systems/rtlola-streamir/internal/trace"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID         string                  `json:"run_id"`
	Events        int                     `json:"events"`
	Cycles        int                     `json:"cycles"`
	Recorded      int                     `json:"recorded"`
	Skipped       string                  `json:"skipped,omitempty"`
	Deterministic bool                    `json:"deterministic"`
	Mismatches    []engine.ReplayMismatch `json:"mismatches,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	SpecHash         string            `json:"spec_hash"`
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <spec>",
		Short: "Re-execute recorded runs and verify determinism",
		Long: `Re-execute runs recorded with "streamir run --db" and verify that the
specification reproduces every recorded cycle.

Each run is replayed with its recorded tie-break policy and start time
against a fresh monitor, and the hash of every cycle is compared with the
recording. Runs recorded with a different specification or not finished
are skipped, unless selected explicitly with --run.

Exit codes:
  0 - All replayed runs are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, etc.)

Examples:
  streamir replay ./specs/counter --db runs.db
  streamir replay ./specs/counter --db runs.db --run 0190f4c2-...
  streamir replay ./specs/counter --db runs.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, specPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := opts.logger()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	loadResult, err := LoadSpec(specPath)
	if err != nil {
		return formatter.loadFailure(err)
	}
	spec := loadResult.Spec
	specHash := ir.SpecHash(spec)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var runs []store.Run
	if opts.RunID != "" {
		run, err := st.ReadRun(ctx, opts.RunID)
		if err != nil {
			var notFound *store.RunNotFoundError
			if errors.As(err, &notFound) {
				return formatter.Fail(ExitCommandError, ErrCodeNotFound, err.Error(), nil)
			}
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		if run.SpecHash != specHash {
			return formatter.Fail(ExitFailure, ErrCodeGeneric,
				fmt.Sprintf("run %s was recorded with spec %s, not %s", run.ID, run.SpecHash, specHash), nil)
		}
		runs = []store.Run{run}
	} else {
		runs, err = st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
	}

	result := ReplayResult{
		SpecHash:         specHash,
		Runs:             make([]ReplayRunResult, 0, len(runs)),
		TotalRuns:        len(runs),
		AllDeterministic: true,
	}

	for _, run := range runs {
		runResult, err := replayRun(ctx, st, spec, specHash, run)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", run.ID), err)
		}
		logger.Debug("replayed run", "run_id", run.ID, "cycles", runResult.Cycles, "deterministic", runResult.Deterministic, "skipped", runResult.Skipped)
		if runResult.Skipped == "" && !runResult.Deterministic {
			result.AllDeterministic = false
		}
		result.Runs = append(result.Runs, runResult)
	}

	if formatter.JSON() {
		if err := outputReplayJSON(formatter, result); err != nil {
			return err
		}
	} else {
		outputReplayText(formatter, result)
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// replayRun re-executes one recorded run.
func replayRun(ctx context.Context, st *store.Store, spec *ir.StreamIR, specHash string, run store.Run) (ReplayRunResult, error) {
	out := ReplayRunResult{RunID: run.ID, Recorded: int(run.Cycles)}
	switch {
	case run.SpecHash != specHash:
		out.Skipped = "recorded with a different specification"
		return out, nil
	case !run.Finished:
		out.Skipped = "run not finished"
		return out, nil
	}

	tieBreak, err := engine.ParseTieBreak(run.TieBreak)
	if err != nil {
		return out, err
	}
	events, err := st.ReadEvents(ctx, run.ID)
	if err != nil {
		return out, err
	}
	cycles, err := st.ReadCycles(ctx, run.ID)
	if err != nil {
		return out, err
	}
	recorded := make([]engine.RecordedCycle, len(cycles))
	for i, c := range cycles {
		recorded[i] = engine.RecordedCycle{TS: c.TS, Hash: c.Hash}
	}

	replayed, err := engine.Replay(ctx, spec, events, recorded,
		engine.WithTieBreak(tieBreak),
		engine.WithStartTime(run.Start),
		engine.WithRunIDGenerator(engine.NewFixedGenerator(run.ID)),
	)
	if err != nil {
		return out, err
	}

	out.Events = len(events)
	out.Cycles = replayed.Cycles
	out.Recorded = replayed.Recorded
	out.Deterministic = replayed.Deterministic()
	out.Mismatches = replayed.Mismatches
	return out, nil
}

// outputReplayJSON outputs replay result in JSON format.
func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "NON_DETERMINISTIC",
			Message: "replayed cycles differ from the recording",
		}
	}

	encoder := json.NewEncoder(formatter.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputReplayText outputs replay result in human-readable text format.
func outputReplayText(formatter *OutputFormatter, result ReplayResult) {
	w := formatter.Writer
	if len(result.Runs) == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return
	}

	fmt.Fprintf(w, "Replaying %d run(s)...\n\n", result.TotalRuns)
	for _, r := range result.Runs {
		if r.Skipped != "" {
			fmt.Fprintf(w, "- %s: skipped (%s)\n", r.RunID, r.Skipped)
			continue
		}
		status := markOK
		if !r.Deterministic {
			status = markFail
		}
		fmt.Fprintf(w, "%s %s: %d event(s), %d/%d cycle(s)\n", status, r.RunID, r.Events, r.Cycles, r.Recorded)
		for _, mm := range r.Mismatches {
			fmt.Fprintf(w, "    cycle %d at %ss: expected %s, got %s\n",
				mm.Index, trace.FormatTimestamp(mm.TS), orNone(mm.Expected), orNone(mm.Actual))
		}
	}
	fmt.Fprintln(w)

	if result.AllDeterministic {
		fmt.Fprintf(w, "%s All runs verified deterministic\n", markOK)
		return
	}
	fmt.Fprintf(w, "%s Determinism verification failed\n", markFail)
}

func orNone(hash string) string {
	if hash == "" {
		return "<none>"
	}
	return hash
}
