package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reactive-systems/rtlola-streamir/internal/compiler"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool // treat dependency cycle warnings as errors
}

// ValidationResult holds the result of validation.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <spec>",
		Short: "Validate a specification without running it",
		Long: `Validate a CUE specification.

Every structural rule is checked and all violations are reported at once:
duplicate names, dangling references, offsets beyond the declared memory,
parameter arity, lifecycle statements on static outputs and instance-scoped
statements outside an iteration.

Same-cycle dependency cycles are reported as warnings. With --strict they
fail validation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail on dependency cycle warnings")

	return cmd
}

func runValidate(opts *ValidateOptions, specPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loadResult, err := LoadSpec(specPath)
	if err != nil {
		return formatter.loadFailure(err)
	}
	formatter.VerboseLog("Validating %d input(s), %d output(s)", len(loadResult.Spec.Inputs), len(loadResult.Spec.Outputs))

	errs := compiler.ValidateIR(loadResult.Spec)
	warnings := compiler.AnalyzeCycles(loadResult.Spec)

	if opts.Strict {
		for _, w := range warnings {
			if w.Level == "warning" {
				errs = append(errs, compiler.ValidationError{
					Field:   "eval",
					Message: w.Message,
					Code:    ErrCodeInvalidEval,
				})
			}
		}
	}

	if len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}
	return outputValidateSuccess(formatter, warnings)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, warnings []compiler.CycleWarning) error {
	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true, Warnings: warnings})
	}

	fmt.Fprintf(formatter.Writer, "%s Spec valid\n", markOK)
	for _, w := range warnings {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", w.Level, w.Message)
	}
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.JSON() {
		response := CLIResponse{
			Status: "error",
			Data: ValidationResult{
				Valid:  false,
				Errors: errs,
			},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (verification failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintf(formatter.Writer, "%s Validation failed\n", markFail)
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s %s: %s\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1 (verification failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
