package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reactive-systems/rtlola-streamir/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // only scenario files whose name contains this
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name          string   `json:"name"`
	Path          string   `json:"path"`
	Pass          bool     `json:"pass"`
	Deterministic bool     `json:"deterministic"`
	Golden        string   `json:"golden,omitempty"` // "match", "updated" or "missing"
	Errors        []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios>",
		Short: "Run conformance scenarios",
		Long: `Run conformance scenarios using the harness framework.

Each scenario file names a specification, a list of events and assertions
over the resulting verdicts. Every run is replayed to verify determinism.
When golden/<scenario>.golden exists next to a scenario file, the
canonical snapshot of every cycle must match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  streamir test ./scenarios
  streamir test ./scenarios --filter sampler
  streamir test ./scenarios --update
  streamir test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenario files whose name contains this")

	return cmd
}

func runTests(opts *TestOptions, scenariosPath string, cmd *cobra.Command) error {
	logger := opts.logger()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Find scenario files
	paths, err := harness.FindScenarios(scenariosPath, opts.Filter)
	if err != nil {
		var notFound *harness.ScenarioNotFoundError
		if errors.As(err, &notFound) {
			return NewExitError(ExitCommandError, fmt.Sprintf("scenarios not found: %s", scenariosPath))
		}
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	if len(paths) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd.OutOrStdout(), TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	suite, err := harness.RunSuite(ctx, paths)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenarios", err)
	}

	failures := make(map[string]string, len(suite.Failures))
	for _, f := range suite.Failures {
		failures[f.Path] = f.Error
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(suite.Scenarios)),
		Total:     suite.Total,
	}
	for _, outcome := range suite.Scenarios {
		scenResult := checkScenario(outcome, failures[outcome.Path], opts.Update)
		logger.Debug("scenario finished", "name", scenResult.Name, "pass", scenResult.Pass, "golden", scenResult.Golden)
		if opts.Format != "json" {
			outputScenarioText(cmd.OutOrStdout(), scenResult)
		}

		result.Scenarios = append(result.Scenarios, scenResult)
		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	// Output results
	if opts.Format == "json" {
		return outputTestJSON(cmd.OutOrStdout(), result)
	}
	return outputTestText(cmd.OutOrStdout(), result)
}

// checkScenario combines a suite outcome with the golden file comparison.
func checkScenario(outcome harness.ScenarioOutcome, failure string, update bool) ScenarioResult {
	res := ScenarioResult{Name: outcome.Name, Path: outcome.Path, Pass: outcome.Pass}
	if outcome.Result == nil {
		// Could not load or execute
		res.Errors = []string{failure}
		return res
	}
	res.Deterministic = outcome.Result.Deterministic
	res.Errors = outcome.Result.Errors

	snapshot, err := harness.Snapshot(outcome.Name, outcome.Result)
	if err != nil {
		res.Pass = false
		res.Errors = append(res.Errors, fmt.Sprintf("failed to build snapshot: %v", err))
		return res
	}

	goldenPath := goldenFilePath(outcome.Path)
	if update {
		if err := writeGoldenFile(goldenPath, snapshot); err != nil {
			res.Pass = false
			res.Errors = append(res.Errors, fmt.Sprintf("failed to update golden file: %v", err))
			return res
		}
		res.Golden = "updated"
		return res
	}

	golden, err := os.ReadFile(goldenPath)
	switch {
	case os.IsNotExist(err):
		// No golden file - use assertion-based validation only
		res.Golden = "missing"
	case err != nil:
		res.Pass = false
		res.Errors = append(res.Errors, fmt.Sprintf("golden comparison failed: %v", err))
	case !bytes.Equal(golden, snapshot):
		res.Pass = false
		res.Golden = "mismatch"
		res.Errors = append(res.Errors, "trace does not match golden file (run with --update to regenerate)")
	default:
		res.Golden = "match"
	}
	return res
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// writeGoldenFile writes the current snapshot as the golden file.
func writeGoldenFile(goldenPath string, snapshot []byte) error {
	if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(goldenPath, snapshot, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// outputScenarioText prints one scenario line and its errors.
func outputScenarioText(w io.Writer, r ScenarioResult) {
	if !r.Pass {
		fmt.Fprintf(w, "%s %s\n", markFail, r.Name)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(strings.TrimRight(e, "\n"), "\n", "\n  "))
		}
		return
	}
	if r.Golden == "updated" {
		fmt.Fprintf(w, "%s %s (golden updated)\n", markOK, r.Name)
		return
	}
	fmt.Fprintf(w, "%s %s\n", markOK, r.Name)
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(w io.Writer, result TestResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test summary as text.
func outputTestText(w io.Writer, result TestResult) error {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintf(w, "%s All scenarios passed\n", markOK)
	return nil
}
