package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/afairgiant/medikeep/internal/compiler"
	"github.com/afairgiant/medikeep/internal/harness"
)

// ErrCodeTestFailed is the response error code of a test run with failures.
const ErrCodeTestFailed = "E_TEST_FAILED"

// Golden file outcomes of a scenario.
const (
	GoldenNone     = "none"
	GoldenMatched  = "matched"
	GoldenMismatch = "mismatch"
	GoldenUpdated  = "updated"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // glob over scenario file names
}

// StepReport is the view state a scenario reached after one step.
// Step 0 is the view as opened.
type StepReport struct {
	Step      int      `json:"step"`
	Action    string   `json:"action"`
	Total     int      `json:"total"`
	Filtered  int      `json:"filtered"`
	Active    []string `json:"active,omitempty"`
	SortBy    string   `json:"sort_by,omitempty"`
	SortOrder string   `json:"sort_order,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	File        string       `json:"file"`
	Name        string       `json:"name"`
	View        string       `json:"view,omitempty"`
	Pass        bool         `json:"pass"`
	Steps       []StepReport `json:"steps,omitempty"`
	Golden      string       `json:"golden,omitempty"`
	Fingerprint string       `json:"fingerprint,omitempty"`
	Errors      []string     `json:"errors,omitempty"`
}

// final returns the last reported view state.
func (r ScenarioResult) final() (StepReport, bool) {
	if len(r.Steps) == 0 {
		return StepReport{}, false
	}
	return r.Steps[len(r.Steps)-1], true
}

// TestResult is the payload of the test command.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
	Steps     int              `json:"steps"` // user steps run, excluding the opening state
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <specs-dir> <scenarios-dir>",
		Short: "Run view scenarios",
		Long: `Run YAML scenarios against the views defined in a specs directory.

Each scenario opens one view over its records, applies its steps (filter
updates, sort changes, clock moves), checks the expected counts, ids and
sort after each step, then evaluates its assertions. When golden/<name>.golden
exists next to the scenario, the recorded view states must match it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, unreadable specs)

Examples:
  medikeep test ./specs ./scenarios
  medikeep test ./specs ./scenarios --filter "medication_*"
  medikeep test ./specs ./scenarios --update
  medikeep test ./specs ./scenarios --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenario files whose name matches this glob")

	return cmd
}

func runTests(opts *TestOptions, specsDir, scenariosDir string, cmd *cobra.Command) error {
	for _, dir := range []struct{ kind, path string }{{"specs", specsDir}, {"scenarios", scenariosDir}} {
		if _, err := os.Stat(dir.path); os.IsNotExist(err) {
			return NewExitError(ExitCommandError, fmt.Sprintf("%s directory not found: %s", dir.kind, dir.path))
		}
	}

	views, err := LoadViews(specsDir, opts.registry())
	if err != nil {
		return WrapExitError(loadExitCode(err), "loading views", err)
	}

	files, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "finding scenarios", err)
	}

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, file := range files {
		sr := runScenario(file, views, opts)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		if len(sr.Steps) > 1 {
			result.Steps += len(sr.Steps) - 1
		}
	}

	formatter := newFormatter(opts.RootOptions, cmd)
	if result.Failed > 0 {
		summary := fmt.Sprintf("%d scenario(s) failed", result.Failed)
		return formatter.Reject(ExitFailure, CLIError{Code: ErrCodeTestFailed, Message: summary}, result, summary,
			func(w io.Writer) { writeTestText(w, result, opts.Verbose) })
	}
	return formatter.Emit(result, func(w io.Writer) error {
		writeTestText(w, result, opts.Verbose)
		return nil
	})
}

// findScenarioFiles returns the .yaml and .yml files under dir, in lexical
// order, whose base name without extension matches pattern. Golden
// directories are skipped.
func findScenarioFiles(dir, pattern string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if pattern != "" {
			matched, err := filepath.Match(pattern, strings.TrimSuffix(d.Name(), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// runScenario loads and runs one scenario file. Every failure, including an
// unreadable file, is reported in the result rather than returned.
func runScenario(file string, views map[string]*compiler.View, opts *TestOptions) ScenarioResult {
	sr := ScenarioResult{File: file, Name: filepath.Base(file)}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("load error: %v", err)}
		return sr
	}
	sr.Name, sr.View = scenario.Name, scenario.View

	logger := opts.logger().With().Str("scenario_file", file).Logger()
	result, err := harness.Run(scenario, views, harness.WithLogger(logger))
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution error: %v", err)}
		return sr
	}

	sr.Steps = stepReports(result.Trace)
	sr.Fingerprint = result.Fingerprint
	sr.Errors = append(sr.Errors, result.Errors...)

	sr.Golden, err = checkGolden(file, scenario, result, opts.Update)
	switch {
	case err != nil:
		sr.Errors = append(sr.Errors, fmt.Sprintf("golden error: %v", err))
	case sr.Golden == GoldenMismatch:
		sr.Errors = append(sr.Errors, "golden file mismatch (run with --update to regenerate)")
	}

	sr.Pass = len(sr.Errors) == 0
	return sr
}

func stepReports(trace []harness.TraceEvent) []StepReport {
	out := make([]StepReport, len(trace))
	for i, e := range trace {
		out[i] = StepReport{
			Step:      e.Step,
			Action:    e.Action,
			Total:     e.Total,
			Filtered:  e.Filtered,
			Active:    e.Active,
			SortBy:    e.SortBy,
			SortOrder: e.SortOrder,
			Error:     e.Error,
		}
	}
	return out
}

// goldenFilePath returns golden/<name>.golden next to the scenario file.
func goldenFilePath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

// checkGolden compares the scenario's view states with its golden file, or
// rewrites the file when update is set. Trailing newlines in the golden file
// are ignored.
func checkGolden(scenarioFile string, scenario *harness.Scenario, result *harness.Result, update bool) (string, error) {
	current, err := harness.MarshalSnapshot(scenario, result)
	if err != nil {
		return "", fmt.Errorf("encoding view states: %w", err)
	}
	path := goldenFilePath(scenarioFile)

	if update {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return "", err
		}
		if err := os.WriteFile(path, current, 0644); err != nil {
			return "", err
		}
		return GoldenUpdated, nil
	}

	golden, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return GoldenNone, nil
	}
	if err != nil {
		return "", err
	}
	if strings.TrimRight(string(golden), "\n") != string(current) {
		return GoldenMismatch, nil
	}
	return GoldenMatched, nil
}

// writeTestText prints one line per scenario, its errors, and its step
// states when it failed or verbose is set.
func writeTestText(w io.Writer, result TestResult, verbose bool) {
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}

	for _, sr := range result.Scenarios {
		mark := "✓"
		if !sr.Pass {
			mark = "✗"
		}
		line := mark + " " + sr.Name
		if sr.View != "" {
			line += fmt.Sprintf(" [%s]", sr.View)
		}
		if final, ok := sr.final(); ok {
			line += fmt.Sprintf(" %d step(s), %d of %d shown", len(sr.Steps)-1, final.Filtered, final.Total)
		}
		if sr.Golden != "" && sr.Golden != GoldenNone {
			line += ", golden " + sr.Golden
		}
		fmt.Fprintln(w, line)

		if !sr.Pass || verbose {
			for _, st := range sr.Steps {
				writeStep(w, st)
			}
		}
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d passed, %d failed, %d total, %d step(s)\n", result.Passed, result.Failed, result.Total, result.Steps)
	if result.Failed == 0 {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
}

func writeStep(w io.Writer, st StepReport) {
	fmt.Fprintf(w, "    %d %s: %d of %d shown", st.Step, st.Action, st.Filtered, st.Total)
	if len(st.Active) > 0 {
		fmt.Fprintf(w, ", filters %s", strings.Join(st.Active, ","))
	}
	if st.SortBy != "" {
		fmt.Fprintf(w, ", sorted by %s %s", st.SortBy, st.SortOrder)
	}
	if st.Error != "" {
		fmt.Fprintf(w, ", error: %s", st.Error)
	}
	fmt.Fprintln(w)
}
