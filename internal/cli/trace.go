package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reactive-systems/rtlola-streamir/internal/store"
	"github.com/reactive-systems/rtlola-streamir/internal/trace"
)

// emptyCyclePrefix starts the canonical document of a cycle without changes.
const emptyCyclePrefix = `{"inputs":[],"outputs":[],`

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - show the timeline of this run
	Hash     string // optional - find cycles with this verdict hash
	All      bool   // include cycles without changes
}

// TraceCycle is one cycle in a run timeline.
type TraceCycle struct {
	RunID    string          `json:"run_id"`
	Seq      int64           `json:"seq"`
	TS       string          `json:"ts"`
	Hash     string          `json:"hash"`
	Document json.RawMessage `json:"document"`
}

// TraceRun summarises one recorded run.
type TraceRun struct {
	ID            string `json:"id"`
	SpecHash      string `json:"spec_hash"`
	EngineVersion string `json:"engine_version"`
	TieBreak      string `json:"tie_break"`
	Source        string `json:"source,omitempty"`
	Finished      bool   `json:"finished"`
	LastTS        string `json:"last_ts"`
	Cycles        int64  `json:"cycles"`
}

// TraceResult holds the trace output.
type TraceResult struct {
	Runs   []TraceRun   `json:"runs,omitempty"`
	Events int          `json:"events,omitempty"`
	Cycles []TraceCycle `json:"cycles,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded runs",
		Long: `Inspect runs recorded with "streamir run --db".

Without flags, lists every recorded run. With --run, shows the run's
timeline: every cycle with its timestamp, verdict hash and canonical
document. With --hash, finds every cycle of any run whose verdict has
that hash.

Examples:
  streamir trace --db runs.db
  streamir trace --db runs.db --run 0190f4c2-...
  streamir trace --db runs.db --run 0190f4c2-... --all --format json
  streamir trace --db runs.db --hash 3f5a...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run to show")
	cmd.Flags().StringVar(&opts.Hash, "hash", "", "find cycles by verdict hash")
	cmd.Flags().BoolVar(&opts.All, "all", false, "include cycles without changes")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.RunID != "" && opts.Hash != "" {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--run and --hash are mutually exclusive", nil)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var result TraceResult
	switch {
	case opts.RunID != "":
		run, err := st.ReadRun(ctx, opts.RunID)
		if err != nil {
			var notFound *store.RunNotFoundError
			if errors.As(err, &notFound) {
				return formatter.Fail(ExitCommandError, ErrCodeNotFound, err.Error(), nil)
			}
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		events, err := st.ReadEvents(ctx, run.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read events", err)
		}
		cycles, err := st.ReadCycles(ctx, run.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read cycles", err)
		}
		result.Runs = []TraceRun{toTraceRun(run)}
		result.Events = len(events)
		result.Cycles = toTraceCycles(cycles, opts.All)

	case opts.Hash != "":
		cycles, err := st.FindCycles(ctx, opts.Hash)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find cycles", err)
		}
		result.Cycles = toTraceCycles(cycles, true)

	default:
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		for _, run := range runs {
			result.Runs = append(result.Runs, toTraceRun(run))
		}
	}

	if formatter.JSON() {
		return outputTraceJSON(formatter.Writer, result)
	}
	outputTraceText(formatter.Writer, opts, result)
	return nil
}

func toTraceRun(run store.Run) TraceRun {
	return TraceRun{
		ID:            run.ID,
		SpecHash:      run.SpecHash,
		EngineVersion: run.EngineVersion,
		TieBreak:      run.TieBreak,
		Source:        run.Source,
		Finished:      run.Finished,
		LastTS:        trace.FormatTimestamp(run.LastTS),
		Cycles:        run.Cycles,
	}
}

// toTraceCycles converts stored cycles, dropping empty ones unless all is set.
func toTraceCycles(cycles []store.CycleRecord, all bool) []TraceCycle {
	out := make([]TraceCycle, 0, len(cycles))
	for _, c := range cycles {
		if !all && isEmptyCycle(c.Document) {
			continue
		}
		out = append(out, TraceCycle{
			RunID:    c.RunID,
			Seq:      c.Seq,
			TS:       trace.FormatTimestamp(c.TS),
			Hash:     c.Hash,
			Document: json.RawMessage(c.Document),
		})
	}
	return out
}

// isEmptyCycle reports whether a canonical cycle document has no changes.
// Canonical keys are sorted, so an empty cycle always starts the same way.
func isEmptyCycle(doc string) bool {
	return strings.HasPrefix(doc, emptyCyclePrefix)
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(w io.Writer, result TraceResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(CLIResponse{Status: "ok", Data: result})
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, opts *TraceOptions, result TraceResult) {
	switch {
	case opts.RunID != "":
		run := result.Runs[0]
		fmt.Fprintf(w, "Run: %s\n", run.ID)
		fmt.Fprintf(w, "Spec: %s (engine %s, %s)\n", run.SpecHash, run.EngineVersion, run.TieBreak)
		fmt.Fprintf(w, "Status: %s\n", finishedStatus(run.Finished))
		fmt.Fprintf(w, "Events: %d, cycles: %d, last: %ss\n\n", result.Events, run.Cycles, run.LastTS)
		fmt.Fprintln(w, "=== Timeline ===")
		outputCyclesText(w, result.Cycles, opts.Verbose)

	case opts.Hash != "":
		fmt.Fprintf(w, "Cycles with hash %s:\n", opts.Hash)
		outputCyclesText(w, result.Cycles, true)

	default:
		if len(result.Runs) == 0 {
			fmt.Fprintln(w, "No runs found in database.")
			return
		}
		for _, run := range result.Runs {
			fmt.Fprintf(w, "%s  %s  %d cycle(s)  %s\n", run.ID, finishedStatus(run.Finished), run.Cycles, run.Source)
		}
	}
}

func outputCyclesText(w io.Writer, cycles []TraceCycle, showHash bool) {
	if len(cycles) == 0 {
		fmt.Fprintln(w, "  (no cycles)")
		return
	}
	for _, c := range cycles {
		if showHash {
			fmt.Fprintf(w, "  [%d] %ss %s %s\n", c.Seq, c.TS, c.Hash, c.RunID)
		} else {
			fmt.Fprintf(w, "  [%d] %ss\n", c.Seq, c.TS)
		}
		fmt.Fprintf(w, "      %s\n", c.Document)
	}
}

func finishedStatus(finished bool) string {
	if finished {
		return "finished"
	}
	return "incomplete"
}
