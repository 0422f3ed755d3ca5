package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/reactive-systems/rtlola-streamir/internal/engine"
	"github.com/reactive-systems/rtlola-streamir/internal/ir"
	"github.com/reactive-systems/rtlola-streamir/internal/store"
	"github.com/reactive-systems/rtlola-streamir/internal/trace"
)

// Verdict sink formats accepted by --sink.
const (
	SinkCSV  = "csv"
	SinkJSON = "json"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Verbosity     string
	OutputStreams []string
	Sink          string
	Output        string
	Database      string
	TieBreak      string
	StartTime     string
	MaxCatchUp    int
	MetricsAddr   string

	// RunIDGenerator allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDGenerator engine.RunIDGenerator
}

// RunSummary is reported after a successful run.
type RunSummary struct {
	RunID    string `json:"run_id"`
	SpecHash string `json:"spec_hash"`
	Events   int    `json:"events"`
	Cycles   int64  `json:"cycles"`
	LastTS   string `json:"last_ts"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <spec> <events.csv>",
		Short: "Evaluate a specification over a CSV trace",
		Long: `Evaluate a specification over a CSV event trace.

The trace header names a "time" column and any subset of the inputs.
Timestamps are seconds ("1.5") or durations ("1500ms"). Empty cells
leave the input absent. Use "-" to read the trace from stdin.

Every cycle with activity in a reported stream is written to the output.
With --db the run (events and every cycle) is also recorded in SQLite so
that it can be checked later with "streamir replay".

Examples:
  streamir run ./specs/counter events.csv
  streamir run ./specs/counter events.csv --verbosity streams --sink json
  streamir run ./specs/counter events.csv --output-streams b,c
  streamir run ./specs/counter events.csv --db runs.db --metrics-addr :9090`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Verbosity, "verbosity", string(trace.VerbosityOutputs), "reported streams when --output-streams is empty (silent|trigger|outputs|streams)")
	cmd.Flags().StringSliceVar(&opts.OutputStreams, "output-streams", nil, "comma separated list of streams to report")
	cmd.Flags().StringVar(&opts.Sink, "sink", SinkCSV, "verdict format (csv|json)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write verdicts to this file instead of stdout")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")
	cmd.Flags().StringVar(&opts.TieBreak, "tie-break", engine.PeriodicFirst.String(), "order of a deadline and an event at the same time (periodic-first|event-first)")
	cmd.Flags().StringVar(&opts.StartTime, "start-time", "0", "time origin of the monitor (seconds or duration)")
	cmd.Flags().IntVar(&opts.MaxCatchUp, "max-catch-up", 0, "fail when one event would trigger more periodic cycles than this (0 = unlimited)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	return cmd
}

func runMonitor(opts *RunOptions, specPath, eventsPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := opts.logger()

	loadResult, err := LoadSpec(specPath)
	if err != nil {
		return formatter.loadFailure(err)
	}
	spec := loadResult.Spec
	logger.Debug("spec loaded", specSummary(spec)...)

	tieBreak, err := engine.ParseTieBreak(opts.TieBreak)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	start, err := trace.ParseTimestamp(opts.StartTime)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("--start-time: %v", err), nil)
	}
	proj, err := trace.NewProjection(spec, trace.Verbosity(opts.Verbosity), opts.OutputStreams)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	// Setup signal handling for graceful shutdown.
	// Use command's context if available (for testing), otherwise create one.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runIDGen := opts.RunIDGenerator
	if runIDGen == nil {
		runIDGen = engine.UUIDv7Generator{}
	}
	monitorOpts := []engine.Option{
		engine.WithTieBreak(tieBreak),
		engine.WithStartTime(start),
		engine.WithLogger(logger),
		engine.WithRunIDGenerator(runIDGen),
		engine.WithMaxCatchUp(opts.MaxCatchUp),
	}
	var registry *prometheus.Registry
	if opts.MetricsAddr != "" {
		registry = prometheus.NewRegistry()
		monitorOpts = append(monitorOpts, engine.WithMetrics(engine.NewMetrics(registry)))
	}

	m, err := engine.Build(spec, monitorOpts...)
	if err != nil {
		return runtimeFailure(formatter, err)
	}

	events, closeEvents, err := openEvents(eventsPath, cmd.InOrStdin())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeOpenFailed, err.Error(), nil)
	}
	defer closeEvents()
	src, err := trace.NewCSVSource(events, spec)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeOpenFailed, err.Error(), nil)
	}

	out, closeOut, err := openOutput(opts.Output, cmd.OutOrStdout())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err.Error(), nil)
	}
	defer func() {
		if closeErr := closeOut(); closeErr != nil {
			logger.Error("error closing verdict output", "error", closeErr)
		}
	}()
	verdicts, err := newVerdictSink(opts.Sink, out, proj)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	sinks := trace.MultiSink{verdicts}

	var recorder *store.Sink
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeOpenFailed, fmt.Sprintf("failed to open database: %v", err), nil)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		recorder, err = store.NewSink(ctx, st, store.Run{
			ID:       m.RunID(),
			SpecHash: m.SpecHash(),
			TieBreak: tieBreak.String(),
			Start:    start,
			Source:   eventsPath,
		})
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("failed to record run: %v", err), nil)
		}
		sinks = append(sinks, recorder)
	}

	logger.Info("monitor starting", "run_id", m.RunID(), "spec_hash", m.SpecHash(), "events", eventsPath)
	stats, err := driveMonitor(ctx, logger, opts.MetricsAddr, registry, m, src, sinks)
	if err != nil {
		// keep what was reported before the failure
		if closeErr := verdicts.Close(); closeErr != nil {
			logger.Error("error closing verdict sink", "error", closeErr)
		}
		if recorder != nil {
			if abortErr := recorder.Abort(); abortErr != nil {
				logger.Error("error recording failed run", "run_id", m.RunID(), "error", abortErr)
			}
		}
		return runtimeFailure(formatter, err)
	}
	if err := sinks.Close(); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err.Error(), nil)
	}
	if err := closeOut(); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err.Error(), nil)
	}

	summary := RunSummary{
		RunID:    m.RunID(),
		SpecHash: m.SpecHash(),
		Events:   stats.Events,
		Cycles:   stats.Cycles,
		LastTS:   trace.FormatTimestamp(stats.LastTS),
	}
	logger.Info("monitor finished", "run_id", summary.RunID, "events", summary.Events, "cycles", summary.Cycles)
	formatter.VerboseLog("%s %d event(s), %d cycle(s), run %s", markOK, summary.Events, summary.Cycles, summary.RunID)
	return nil
}

// driveMonitor runs m to completion. When addr is set, the metrics of
// registry are served on addr until the run ends.
func driveMonitor(ctx context.Context, logger *slog.Logger, addr string, registry *prometheus.Registry, m *engine.Monitor, src trace.EventSource, sink trace.VerdictSink) (engine.RunStats, error) {
	if addr == "" {
		return engine.Run(ctx, m, src, sink)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	var stats engine.RunStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown", "error", err)
			}
		}()
		var err error
		stats, err = engine.Run(gctx, m, src, sink)
		return err
	})
	err := g.Wait()
	return stats, err
}

// runtimeFailure reports a monitor error. Runtime errors keep their code
// (TYPE_ERROR, INSTANCE_NOT_FOUND, ...) in the response.
func runtimeFailure(formatter *OutputFormatter, err error) error {
	var re *engine.RuntimeError
	if errors.As(err, &re) {
		details := map[string]string{}
		for k, v := range re.Details {
			details[k] = v
		}
		if re.Stream != "" {
			details["stream"] = re.Stream
		}
		if re.Params != nil {
			details["instance"] = re.Params.String()
		}
		_ = formatter.Error(string(re.Code), re.Error(), details)
		return WrapExitError(ExitCommandError, "monitor failed", err)
	}
	_ = formatter.Error(ErrCodeRuntime, err.Error(), nil)
	return WrapExitError(ExitCommandError, "monitor failed", err)
}

// newVerdictSink creates the sink selected by --sink.
func newVerdictSink(format string, w io.Writer, proj *trace.Projection) (trace.VerdictSink, error) {
	switch format {
	case SinkCSV:
		return trace.NewCSVSink(w, proj)
	case SinkJSON:
		return trace.NewJSONSink(w, proj), nil
	default:
		return nil, fmt.Errorf("invalid sink %q: must be one of [%s %s]", format, SinkCSV, SinkJSON)
	}
}

// openEvents opens the trace file, or stdin for "-".
func openEvents(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open events: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// openOutput creates the verdict file, or returns stdout when path is
// empty. The returned close function may be called more than once; only
// the first call closes the file.
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	var once sync.Once
	var closeErr error
	return f, func() error {
		once.Do(func() {
			if err := f.Close(); err != nil {
				closeErr = fmt.Errorf("close output: %w", err)
			}
		})
		return closeErr
	}, nil
}

// specSummary is logged at debug level by commands that load a spec.
func specSummary(spec *ir.StreamIR) []any {
	return []any{
		"inputs", len(spec.Inputs),
		"outputs", len(spec.Outputs),
		"windows", len(spec.Windows),
		"spec_hash", ir.SpecHash(spec),
	}
}
