package harness

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/afairgiant/medikeep/internal/clock"
	"github.com/afairgiant/medikeep/internal/compiler"
	"github.com/afairgiant/medikeep/internal/record"
	"github.com/afairgiant/medikeep/internal/sorting"
	"github.com/afairgiant/medikeep/internal/store"
	"github.com/afairgiant/medikeep/internal/testutil"
	"github.com/afairgiant/medikeep/internal/view"
)

// scenarioCollection is the store collection each scenario imports into.
const scenarioCollection = "scenario"

// Harness is the test execution engine.
// It runs one scenario against a fresh in-memory store with a pinned clock.
type Harness struct {
	store   *store.Store
	view    *compiler.View
	manager *view.Manager
	clock   *clock.Fixed
	ids     *testutil.IDSequence
	idField string
	logger  zerolog.Logger

	// inputs are the record sets handed to the manager, with their view
	// fingerprints at hand-off time.
	inputs     []Input
	records    []record.Record
	additional any
}

// Input is a record set handed to the view manager, with its view
// fingerprint at hand-off time.
type Input struct {
	Records     []record.Record
	Fingerprint string
}

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	logger zerolog.Logger
}

// WithLogger sets the logger passed to the view manager. Defaults to
// zerolog.Nop().
func WithLogger(l zerolog.Logger) Option {
	return func(c *runConfig) {
		c.logger = l
	}
}

// Run executes a scenario against the named view from views.
//
// Each scenario runs in a fresh in-memory store for isolation. Records are
// imported and loaded back, so they carry the same shapes the CLI sees
// (numbers as float64, generated ids from a deterministic sequence).
//
// Execution flow:
//  1. Import the scenario records into an in-memory store
//  2. Open a view.Manager with the clock pinned at scenario.Now
//  3. Execute steps, tracing and validating each one
//  4. Evaluate assertions against the final state
//
// The returned error covers setup failures only. Expectation and assertion
// failures are reported in Result.Errors.
func Run(scenario *Scenario, views map[string]*compiler.View, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	v, ok := views[scenario.View]
	if !ok || v == nil {
		return nil, fmt.Errorf("unknown view %q", scenario.View)
	}

	now, err := time.Parse(time.RFC3339, scenario.Now)
	if err != nil {
		return nil, fmt.Errorf("invalid now: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	idField := scenario.IDField
	if idField == "" {
		idField = store.DefaultIDField
	}

	h := &Harness{
		store:      st,
		view:       v,
		clock:      clock.NewFixed(now),
		ids:        testutil.NewIDSequence("rec"),
		idField:    idField,
		logger:     cfg.logger.With().Str("component", "harness").Str("scenario", scenario.Name).Logger(),
		additional: scenario.Additional,
	}

	ctx := context.Background()

	raw, err := scenarioRecords(scenario)
	if err != nil {
		return nil, err
	}
	records, err := h.importRecords(ctx, raw, false)
	if err != nil {
		return nil, fmt.Errorf("failed to import records: %w", err)
	}

	h.manager, err = view.New(records, v.Filter, v.Sort,
		view.WithClock(h.clock),
		view.WithAdditionalData(scenario.Additional),
		view.WithLogger(cfg.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open view %q: %w", v.Name, err)
	}

	result := NewResult()
	result.AddTrace(h.snapshot(0, "init", nil, nil))

	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	actx := &AssertionContext{
		View:       v,
		Manager:    h.manager,
		Records:    h.records,
		Inputs:     h.inputs,
		Additional: h.additional,
		Now:        h.manager.Derived().ComputedAt,
		IDField:    idField,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	fp, err := record.ViewFingerprint(h.manager.FinalData())
	if err != nil {
		return nil, err
	}
	result.Fingerprint = fp

	h.logger.Debug().Bool("pass", result.Pass).Int("errors", len(result.Errors)).Msg("scenario finished")
	return result, nil
}

// scenarioRecords returns the inline records or reads records_file.
func scenarioRecords(s *Scenario) ([]record.Record, error) {
	if s.RecordsFile != "" {
		records, err := record.Load(s.RecordsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load records: %w", err)
		}
		return records, nil
	}
	return record.FromMaps(s.Records), nil
}

// importRecords stores records and loads the collection back in import
// order. replace clears the collection first.
func (h *Harness) importRecords(ctx context.Context, records []record.Record, replace bool) ([]record.Record, error) {
	res, err := h.store.Import(ctx, scenarioCollection, records, store.ImportOptions{
		IDField: h.idField,
		NewID:   h.ids.Next,
		Replace: replace,
	})
	if err != nil {
		return nil, err
	}
	loaded, err := h.store.Load(ctx, scenarioCollection)
	if err != nil {
		return nil, err
	}

	fp, err := record.ViewFingerprint(loaded)
	if err != nil {
		return nil, err
	}
	h.inputs = append(h.inputs, Input{Records: loaded, Fingerprint: fp})
	h.records = loaded

	h.logger.Debug().
		Int("inserted", res.Inserted).
		Int("updated", res.Updated).
		Int("skipped", res.Skipped).
		Msg("records imported")
	return loaded, nil
}

// executeSteps runs all steps and validates expect clauses.
//
// Each step:
//  1. Applies the action to the view manager
//  2. Snapshots the derived state into the trace
//  3. Validates the expect clause against the snapshot
//
// A step error is traced and checked against expect.error; it never aborts
// the scenario. Store failures do.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		stepErr := h.apply(ctx, step)
		var fatal *harnessError
		if errors.As(stepErr, &fatal) {
			return fmt.Errorf("steps[%d]: %w", i, fatal.err)
		}

		event := h.snapshot(i+1, step.Action, stepArgs(step), stepErr)
		result.AddTrace(event)

		for _, msg := range checkExpect(i, step, event, stepErr) {
			result.AddError(msg)
		}

		h.logger.Debug().
			Int("step", i+1).
			Str("action", step.Action).
			Int("filtered", event.Filtered).
			AnErr("step_error", stepErr).
			Msg("step completed")
	}
	return nil
}

// harnessError marks a step failure caused by the harness itself rather
// than the view.
type harnessError struct {
	err error
}

func (e *harnessError) Error() string { return e.err.Error() }

// apply runs one step and returns the view's error for it. Harness failures
// come back as *harnessError.
func (h *Harness) apply(ctx context.Context, step Step) error {
	m := h.manager
	switch step.Action {
	case ActionUpdateFilter:
		return m.UpdateFilter(step.Key, step.Value)
	case ActionUpdateFilters:
		return m.UpdateFilters(step.Values)
	case ActionClearFilters:
		return m.ClearFilters()
	case ActionSortChange:
		return m.HandleSortChange(step.Field)
	case ActionSetSort:
		dir, err := sorting.ParseDirection(step.Order)
		if err != nil {
			return &harnessError{err}
		}
		return m.SetSortWithOrder(step.Field, dir)
	case ActionSetAdditional:
		if err := m.SetAdditionalData(step.Data); err != nil {
			return err
		}
		h.additional = step.Data
		return nil
	case ActionSetRecords:
		prev := h.records
		records, err := h.importRecords(ctx, record.FromMaps(step.Records), true)
		if err != nil {
			return &harnessError{err}
		}
		if err := m.SetRecords(records); err != nil {
			h.records = prev
			return err
		}
		return nil
	case ActionAdvanceClock:
		d, err := time.ParseDuration(step.Duration)
		if err != nil {
			return &harnessError{err}
		}
		h.clock.Advance(d)
		return m.Refresh()
	case ActionRefresh:
		return m.Refresh()
	default:
		return &harnessError{fmt.Errorf("unknown action %q", step.Action)}
	}
}

// snapshot captures the manager's derived state.
func (h *Harness) snapshot(step int, action string, args map[string]any, stepErr error) TraceEvent {
	d := h.manager.Derived()
	ss := h.manager.SortState()
	event := TraceEvent{
		Step:      step,
		Action:    action,
		Args:      args,
		Total:     d.TotalCount,
		Filtered:  d.FilteredCount,
		Active:    h.manager.ActiveFilters(),
		SortBy:    ss.SortBy,
		SortOrder: string(ss.SortOrder),
		IDs:       testutil.IDs(d.FinalData, h.idField),
	}
	if stepErr != nil {
		event.Error = stepErr.Error()
	}
	return event
}

// stepArgs returns the arguments worth recording for a step.
func stepArgs(step Step) map[string]any {
	switch step.Action {
	case ActionUpdateFilter:
		return map[string]any{"key": step.Key, "value": step.Value}
	case ActionUpdateFilters:
		values := make(map[string]any, len(step.Values))
		for k, v := range step.Values {
			values[k] = v
		}
		return map[string]any{"values": values}
	case ActionSortChange:
		return map[string]any{"field": step.Field}
	case ActionSetSort:
		return map[string]any{"field": step.Field, "order": step.Order}
	case ActionSetAdditional:
		return map[string]any{"data": step.Data}
	case ActionSetRecords:
		return map[string]any{"count": len(step.Records)}
	case ActionAdvanceClock:
		return map[string]any{"duration": step.Duration}
	default:
		return nil
	}
}

// checkExpect compares a step's snapshot with its expect clause.
func checkExpect(index int, step Step, event TraceEvent, stepErr error) []string {
	var errs []string
	fail := func(field, expected, actual string) {
		errs = append(errs, (&AssertionError{
			Type:     fmt.Sprintf("steps[%d] (%s) %s", index, step.Action, field),
			Expected: expected,
			Actual:   actual,
		}).Error())
	}

	exp := step.Expect
	if exp == nil {
		if stepErr != nil {
			fail("error", "no error", stepErr.Error())
		}
		return errs
	}

	switch {
	case exp.Error == "" && stepErr != nil:
		fail("error", "no error", stepErr.Error())
	case exp.Error != "" && stepErr == nil:
		fail("error", fmt.Sprintf("error containing %q", exp.Error), "no error")
	case exp.Error != "" && !strings.Contains(stepErr.Error(), exp.Error):
		fail("error", fmt.Sprintf("error containing %q", exp.Error), stepErr.Error())
	}

	if exp.Total != nil && *exp.Total != event.Total {
		fail("total", fmt.Sprint(*exp.Total), fmt.Sprint(event.Total))
	}
	if exp.Filtered != nil && *exp.Filtered != event.Filtered {
		fail("filtered", fmt.Sprint(*exp.Filtered), fmt.Sprint(event.Filtered))
	}
	if exp.Active != nil && *exp.Active != (len(event.Active) > 0) {
		fail("active", fmt.Sprint(*exp.Active), fmt.Sprint(len(event.Active) > 0))
	}
	if exp.ActiveKeys != nil && !slices.Equal(exp.ActiveKeys, event.Active) {
		fail("active_keys", fmt.Sprint(exp.ActiveKeys), fmt.Sprint(event.Active))
	}
	if exp.IDs != nil && !slices.Equal(exp.IDs, event.IDs) {
		fail("ids", fmt.Sprint(exp.IDs), fmt.Sprint(event.IDs))
	}
	if exp.SortBy != "" && exp.SortBy != event.SortBy {
		fail("sort_by", exp.SortBy, event.SortBy)
	}
	if exp.SortOrder != "" {
		want, _ := sorting.ParseDirection(exp.SortOrder)
		if string(want) != event.SortOrder {
			fail("sort_order", string(want), event.SortOrder)
		}
	}
	return errs
}
