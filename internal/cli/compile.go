package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reactive-systems/rtlola-streamir/internal/compiler"
	"github.com/reactive-systems/rtlola-streamir/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
	Debug  bool   // print the evaluation order listing
}

// CompilationResult describes a compiled specification.
type CompilationResult struct {
	SpecHash    string                  `json:"spec_hash"`
	IRVersion   string                  `json:"ir_version"`
	Inputs      []ir.InputStream        `json:"inputs"`
	Outputs     []ir.OutputStream       `json:"outputs"`
	Windows     []ir.Window             `json:"windows"`
	Frequencies []ir.Frequency          `json:"frequencies"`
	Warnings    []compiler.CycleWarning `json:"warnings,omitempty"`
	Listing     string                  `json:"listing"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	Inputs        int
	StaticOutputs int
	DynamicOutput int
	Parameterized int
	Triggers      int
	Windows       int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <spec>",
		Short: "Compile a CUE specification to StreamIR",
		Long: `Compile a CUE specification to StreamIR.

The compiler parses the CUE package (a directory or a single .cue file),
validates the resulting IR and reports same-cycle dependency cycles.

Examples:
  streamir compile ./specs/counter
  streamir compile ./specs/counter.cue --debug
  streamir compile ./specs/counter -o counter.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the compiled IR as JSON to this file")
	cmd.Flags().BoolVar(&opts.Debug, "debug", false, "print the evaluation order listing")

	return cmd
}

func runCompile(opts *CompileOptions, specPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := opts.logger()

	loadResult, err := LoadSpec(specPath)
	if err != nil {
		return formatter.loadFailure(err)
	}
	formatter.VerboseLog("Loaded %d CUE file(s) from %s", loadResult.FileCount, specPath)

	spec := loadResult.Spec
	if errs := compiler.ValidateIR(spec); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	warnings := compiler.AnalyzeCycles(spec)
	for _, w := range warnings {
		logger.Debug("dependency analysis", "level", w.Level, "message", w.Message)
	}

	result := &CompilationResult{
		SpecHash:    ir.SpecHash(spec),
		IRVersion:   ir.IRVersion,
		Inputs:      spec.Inputs,
		Outputs:     spec.Outputs,
		Windows:     spec.Windows,
		Frequencies: spec.Frequencies,
		Warnings:    warnings,
		Listing:     ir.Format(spec),
	}

	if opts.Output != "" {
		if err := writeIRToFile(result, opts.Output); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, spec, result, opts)
}

// calculateStats computes summary statistics of a compiled spec.
func calculateStats(spec *ir.StreamIR) CompilationStats {
	stats := CompilationStats{
		Inputs:        len(spec.Inputs),
		StaticOutputs: len(spec.StaticOutputs()),
		Parameterized: len(spec.ParameterizedOutputs()),
		Triggers:      len(spec.Triggers()),
		DynamicOutput: len(spec.DynamicOutputs()),
		Windows:       len(spec.Windows),
	}
	return stats
}

// outputKind names the lifecycle class of an output.
func outputKind(o ir.OutputStream) string {
	switch {
	case o.IsParameterized():
		return "parameterized"
	case o.Dynamic:
		return "dynamic"
	default:
		return "static"
	}
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, spec *ir.StreamIR, result *CompilationResult, opts *CompileOptions) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	stats := calculateStats(spec)
	fmt.Fprintf(w, "%s Compiled %d input(s), %d output(s), %d window(s)\n\n",
		markOK, stats.Inputs, len(spec.Outputs), stats.Windows)

	if len(spec.Outputs) > 0 {
		fmt.Fprintln(w, "Outputs:")
		for _, o := range spec.Outputs {
			suffix := ""
			if o.Trigger {
				suffix = " (trigger)"
			}
			fmt.Fprintf(w, "  %s: %s, %s, memory %d%s\n", o.Name, o.Type, outputKind(o), o.Memory, suffix)
		}
		fmt.Fprintln(w)
	}

	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "%s: %s\n", warning.Level, warning.Message)
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintln(w)
	}

	if opts.Debug {
		fmt.Fprintln(w, result.Listing)
	}

	fmt.Fprintf(w, "spec hash: %s\n", result.SpecHash)
	if opts.Output != "" {
		fmt.Fprintf(w, "Wrote compiled IR to %s\n", opts.Output)
	}
	return nil
}

// writeIRToFile writes the compilation result to a file as indented JSON.
func writeIRToFile(result *CompilationResult, filename string) error {
	// Indented for readability; canonical JSON is used only for hashing.
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
