package harness

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/afairgiant/medikeep/internal/compiler"
	"github.com/afairgiant/medikeep/internal/filter"
	"github.com/afairgiant/medikeep/internal/record"
	"github.com/afairgiant/medikeep/internal/sorting"
	"github.com/afairgiant/medikeep/internal/testutil"
	"github.com/afairgiant/medikeep/internal/view"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %v -> %v\n", event.Step, event.Action, event.Args, event.IDs)
		}
	}

	return buf.String()
}

// AssertionContext provides the final view state for evaluating assertions.
type AssertionContext struct {
	View    *compiler.View
	Manager *view.Manager

	// Records is the record set the manager currently holds.
	Records []record.Record

	// Inputs are all record sets handed to the manager.
	Inputs []Input

	Additional any
	Now        time.Time
	IDField    string
}

func (c *AssertionContext) env() filter.Env {
	return filter.Env{Now: c.Now, Additional: c.Additional}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		if actx == nil || actx.Manager == nil {
			err = fmt.Errorf("assertion[%d]: %s requires a view context", i, assertion.Type)
		} else {
			switch assertion.Type {
			case AssertIdentityFilter:
				err = assertIdentityFilter(actx)
			case AssertSubset:
				err = assertSubset(actx)
			case AssertStableSort:
				err = assertStableSort(actx)
			case AssertDeterministic:
				err = assertDeterministic(actx)
			case AssertNoMutation:
				err = assertNoMutation(actx)
			case AssertFinalIDs:
				err = assertFinalIDs(actx, assertion)
			case AssertCounts:
				err = assertCounts(actx, assertion)
			default:
				err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
			}
		}

		if ae, ok := err.(*AssertionError); ok {
			ae.Trace = result.Trace
		}
		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// assertIdentityFilter checks that the all-sentinel state keeps every record
// in input order.
func assertIdentityFilter(actx *AssertionContext) error {
	got, err := filter.Apply(actx.Records, filter.DefaultState(), actx.View.Filter, actx.env())
	if err != nil {
		return fmt.Errorf("identity_filter: %w", err)
	}

	want, gotIDs := testutil.IDs(actx.Records, actx.IDField), testutil.IDs(got, actx.IDField)
	if !slices.Equal(want, gotIDs) {
		return &AssertionError{
			Type:     AssertIdentityFilter,
			Expected: fmt.Sprintf("all records in input order: %v", want),
			Actual:   fmt.Sprint(gotIDs),
		}
	}
	return nil
}

// assertSubset checks that the filtered records are a subsequence of the
// input records.
func assertSubset(actx *AssertionContext) error {
	in, err := fingerprints(actx.Records)
	if err != nil {
		return err
	}
	filtered, err := fingerprints(actx.Manager.FilteredData())
	if err != nil {
		return err
	}

	j := 0
	for i, fp := range filtered {
		for j < len(in) && in[j] != fp {
			j++
		}
		if j == len(in) {
			return &AssertionError{
				Type:     AssertSubset,
				Expected: "filtered records appear in the input, in input order",
				Actual:   fmt.Sprintf("filtered record %d is out of order or not in the input", i),
			}
		}
		j++
	}
	return nil
}

// assertStableSort checks that the final data is a permutation of the
// filtered data and that sorting it again changes nothing.
func assertStableSort(actx *AssertionContext) error {
	m := actx.Manager
	final := m.FinalData()

	filtered, err := fingerprints(m.FilteredData())
	if err != nil {
		return err
	}
	sorted, err := fingerprints(final)
	if err != nil {
		return err
	}
	a, b := slices.Clone(filtered), slices.Clone(sorted)
	slices.Sort(a)
	slices.Sort(b)
	if !slices.Equal(a, b) {
		return &AssertionError{
			Type:     AssertStableSort,
			Expected: "sorted data is a permutation of the filtered data",
			Actual:   fmt.Sprintf("%d filtered, %d sorted, contents differ", len(filtered), len(sorted)),
		}
	}

	ss := m.SortState()
	again, err := fingerprints(sorting.Apply(final, ss.SortBy, ss.SortOrder, actx.View.Sort, actx.Additional))
	if err != nil {
		return err
	}
	if !slices.Equal(sorted, again) {
		return &AssertionError{
			Type:     AssertStableSort,
			Expected: "re-sorting sorted data preserves its order",
			Actual:   "order changed on second sort",
		}
	}
	return nil
}

// assertDeterministic re-derives the final view from scratch twice and
// compares fingerprints with the manager's.
func assertDeterministic(actx *AssertionContext) error {
	m := actx.Manager
	want, err := record.ViewFingerprint(m.FinalData())
	if err != nil {
		return err
	}

	fs, ss := m.FilterState(), m.SortState()
	for run := 1; run <= 2; run++ {
		filtered, err := filter.Apply(actx.Records, fs, actx.View.Filter, actx.env())
		if err != nil {
			return fmt.Errorf("deterministic: %w", err)
		}
		got, err := record.ViewFingerprint(sorting.Apply(filtered, ss.SortBy, ss.SortOrder, actx.View.Sort, actx.Additional))
		if err != nil {
			return err
		}
		if got != want {
			return &AssertionError{
				Type:     AssertDeterministic,
				Expected: fmt.Sprintf("fingerprint %s", want),
				Actual:   fmt.Sprintf("fingerprint %s on run %d", got, run),
			}
		}
	}
	return nil
}

// assertNoMutation checks that no record set handed to the manager changed.
func assertNoMutation(actx *AssertionContext) error {
	for i, in := range actx.Inputs {
		got, err := record.ViewFingerprint(in.Records)
		if err != nil {
			return err
		}
		if got != in.Fingerprint {
			return &AssertionError{
				Type:     AssertNoMutation,
				Expected: fmt.Sprintf("input set %d unchanged", i),
				Actual:   "records were modified",
			}
		}
	}
	return nil
}

// assertFinalIDs checks the final display order.
func assertFinalIDs(actx *AssertionContext, assertion Assertion) error {
	got := testutil.IDs(actx.Manager.FinalData(), actx.IDField)
	if !slices.Equal(assertion.IDs, got) {
		return &AssertionError{
			Type:     AssertFinalIDs,
			Expected: fmt.Sprint(assertion.IDs),
			Actual:   fmt.Sprint(got),
		}
	}
	return nil
}

// assertCounts checks the total and filtered counts.
func assertCounts(actx *AssertionContext, assertion Assertion) error {
	d := actx.Manager.Derived()
	if assertion.Total != nil && *assertion.Total != d.TotalCount {
		return &AssertionError{
			Type:     AssertCounts,
			Expected: fmt.Sprintf("total %d", *assertion.Total),
			Actual:   fmt.Sprintf("total %d", d.TotalCount),
		}
	}
	if assertion.Filtered != nil && *assertion.Filtered != d.FilteredCount {
		return &AssertionError{
			Type:     AssertCounts,
			Expected: fmt.Sprintf("filtered %d", *assertion.Filtered),
			Actual:   fmt.Sprintf("filtered %d", d.FilteredCount),
		}
	}
	return nil
}

func fingerprints(records []record.Record) ([]string, error) {
	out := make([]string, len(records))
	for i, r := range records {
		fp, err := record.Fingerprint(r)
		if err != nil {
			return nil, err
		}
		out[i] = fp
	}
	return out, nil
}
