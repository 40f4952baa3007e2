package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/afairgiant/medikeep/internal/compiler"
	"github.com/afairgiant/medikeep/internal/filter"
	"github.com/afairgiant/medikeep/internal/sorting"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// OptionSummary is one selectable value of a filter or sort control.
type OptionSummary struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Order string `json:"order,omitempty"`
}

// ViewSummary describes the controls a list page needs for one view.
type ViewSummary struct {
	Name          string                     `json:"name"`
	Description   string                     `json:"description,omitempty"`
	Filters       map[string][]OptionSummary `json:"filters"`
	CustomFilters []string                   `json:"custom_filters,omitempty"`
	SortOptions   []OptionSummary            `json:"sort_options"`
	DefaultSort   sorting.State              `json:"default_sort"`
	Warnings      []string                   `json:"warnings,omitempty"`
}

// CompilationResult holds the compiled view catalog.
type CompilationResult struct {
	Views []ViewSummary `json:"views"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <specs-dir>",
		Short: "Compile view specs to a control catalog",
		Long: `Compile CUE view specs and print the catalog of filter and sort
controls each view offers: filter keys with their selectable values,
sort options, and the default sort.

The catalog is what a list page renders its dropdowns from.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)

	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return formatter.Fail(ExitCommandError, loadErr.Code, loadErr.Message, nil)
		}
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)
	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors, ExitCommandError)
	}

	for _, def := range loadResult.Defs {
		formatter.VerboseLog("Building view: %s", def.Name)
	}
	views, buildErrs := compiler.BuildAll(loadResult.Defs, opts.registry())
	if len(buildErrs) > 0 {
		return outputCompileErrors(formatter, buildErrs, ExitFailure)
	}

	result := &CompilationResult{Views: make([]ViewSummary, 0, len(loadResult.Defs))}
	for _, def := range loadResult.Defs {
		result.Views = append(result.Views, summarizeView(views[def.Name]))
	}

	if opts.Output != "" {
		if err := writeCatalogToFile(result, opts.Output); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// summarizeView lists the controls of a built view.
func summarizeView(v *compiler.View) ViewSummary {
	s := ViewSummary{
		Name:        v.Name,
		Description: v.Description,
		Filters:     make(map[string][]OptionSummary),
		SortOptions: make([]OptionSummary, 0, len(v.Sort.SortOptions)),
		DefaultSort: sorting.DefaultState(v.Sort),
		Warnings:    v.Warnings,
	}

	for _, key := range filter.BuiltinKeys {
		opts := v.Filter.Options(key)
		if len(opts) == 0 {
			continue
		}
		out := make([]OptionSummary, len(opts))
		for i, o := range opts {
			out[i] = OptionSummary{Value: o.Value, Label: o.Label}
		}
		s.Filters[key] = out
	}
	for key := range v.Filter.CustomFilters {
		if !slices.Contains(filter.BuiltinKeys, key) {
			s.CustomFilters = append(s.CustomFilters, key)
		}
	}
	slices.Sort(s.CustomFilters)

	for _, o := range v.Sort.SortOptions {
		s.SortOptions = append(s.SortOptions, OptionSummary{Value: o.Value, Label: o.Label, Order: string(o.Order)})
	}
	return s
}

// outputCompileSuccess prints one control summary line per view.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	return formatter.Emit(result, func(w io.Writer) error {
		fmt.Fprintf(w, "✓ Compiled %d view(s)\n\n", len(result.Views))
		for _, v := range result.Views {
			fmt.Fprintf(w, "%s: %d filter key(s), %d sort option(s), default %s %s\n",
				v.Name, len(v.Filters)+len(v.CustomFilters), len(v.SortOptions), v.DefaultSort.SortBy, v.DefaultSort.SortOrder)
			for _, warning := range v.Warnings {
				fmt.Fprintf(w, "  warning: %s\n", warning)
			}
		}
		if outputFile != "" {
			fmt.Fprintf(w, "\nWrote view catalog to %s\n", outputFile)
		}
		return nil
	})
}

// outputCompileErrors reports every load or build error. All of them are
// returned as the response data; the first is the response error.
func outputCompileErrors(formatter *OutputFormatter, errs []error, exitCode int) error {
	cliErrors := make([]CLIError, len(errs))
	for i, err := range errs {
		code, message := parseCompileError(err)
		cliErrors[i] = CLIError{Code: code, Message: message}
	}
	summary := fmt.Sprintf("compilation failed with %d error(s)", len(errs))

	return formatter.Reject(exitCode, cliErrors[0], cliErrors, summary, func(w io.Writer) {
		fmt.Fprintln(w, "✗ Compilation failed")
		fmt.Fprintln(w)
		for i, err := range errs {
			var loadErr *LoadError
			if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
				fmt.Fprintf(w, "%s:%d:%d\n", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
			}
			fmt.Fprintf(w, "  %s: %s\n\n", cliErrors[i].Code, cliErrors[i].Message)
		}
	})
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return MapFieldToErrorCode(compileErr.Field), compileErr.Message
	}
	var verrs compiler.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Code, err.Error()
	}
	return ErrCodeGeneric, err.Error()
}

// writeCatalogToFile writes the catalog as indented JSON.
func writeCatalogToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling catalog: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
