package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/afairgiant/medikeep/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Views    []string                   `json:"views,omitempty"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []string                   `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Validate view specs",
		Long: `Validate the CUE view specs in a directory.

Compiles every view and checks it against the known sort types, date
range names and registered functions. Reports all errors, not just the
first, plus lint warnings for views that are valid but suspicious.

Exit codes:
  0 - All views valid
  1 - One or more views invalid
  2 - Command error (missing directory, CUE syntax error, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)

	// Nothing loadable: missing directory, no files, CUE syntax error.
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return formatter.Fail(ExitCommandError, loadErr.Code, loadErr.Message, nil)
		}
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)

	result := validateAll(loadResult.Defs, opts.registry(), formatter)

	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			result.Errors = append(result.Errors, compiler.ValidationError{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    lineOf(loadErr),
			})
		}
	}

	if len(result.Errors) > 0 {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// validateAll runs semantic validation and lint over every compiled view.
func validateAll(defs []*compiler.ViewDef, reg *compiler.Registry, formatter *OutputFormatter) ValidationResult {
	result := ValidationResult{Valid: true}
	for _, def := range defs {
		formatter.VerboseLog("Validating view: %s", def.Name)
		result.Views = append(result.Views, def.Name)

		errs := compiler.ValidateView(def, reg)
		for _, e := range errs {
			e.Field = def.Name + "." + e.Field
			result.Errors = append(result.Errors, e)
		}
		result.Warnings = append(result.Warnings, compiler.LintView(def)...)
	}
	result.Valid = len(result.Errors) == 0
	return result
}

func lineOf(e *LoadError) int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// outputValidateSuccess lists the validated views and any lint warnings.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	return formatter.Emit(result, func(w io.Writer) error {
		fmt.Fprintf(w, "✓ All views valid (%d)\n", len(result.Views))
		for _, warning := range result.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", warning)
		}
		return nil
	})
}

// outputValidationErrors reports every validation error and exits with
// ExitFailure. The first error becomes the response error.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	result.Valid = false
	errs := result.Errors
	first := CLIError{Code: errs[0].Code, Message: errs[0].Message}
	summary := fmt.Sprintf("validation failed with %d error(s)", len(errs))

	return formatter.Reject(ExitFailure, first, result, summary, func(w io.Writer) {
		fmt.Fprintln(w, "✗ Validation failed")
		fmt.Fprintln(w)
		for _, err := range errs {
			if err.Line > 0 {
				fmt.Fprintf(w, "line %d\n", err.Line)
			}
			fmt.Fprintf(w, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
		}
	})
}

// ValidateSpecsDir validates all view specs in a directory against reg.
// This is a helper function for external callers.
func ValidateSpecsDir(specsDir string, reg *compiler.Registry) ([]compiler.ValidationError, error) {
	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}

	result := validateAll(loadResult.Defs, reg, &OutputFormatter{Format: "text"})
	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			result.Errors = append(result.Errors, compiler.ValidationError{
				Field: "load", Message: loadErr.Message, Code: loadErr.Code, Line: lineOf(loadErr),
			})
		}
	}
	return result.Errors, nil
}
