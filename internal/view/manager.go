package view

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/afairgiant/medikeep/internal/clock"
	"github.com/afairgiant/medikeep/internal/filter"
	"github.com/afairgiant/medikeep/internal/record"
	"github.com/afairgiant/medikeep/internal/sorting"
)

// Sort indicators returned by SortIndicator.
const (
	IndicatorAsc  = "↑"
	IndicatorDesc = "↓"
)

// Derived is the state a list page renders.
type Derived struct {
	FilteredData     []record.Record
	FinalData        []record.Record
	TotalCount       int
	FilteredCount    int
	HasActiveFilters bool

	// ComputedAt is the clock reading the date ranges were evaluated against.
	ComputedAt time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock used for date ranges. Defaults to clock.System.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithAdditionalData sets the side-channel value passed to custom predicates
// and comparators.
func WithAdditionalData(v any) Option {
	return func(m *Manager) {
		m.additional = v
	}
}

// WithLogger sets the logger. Defaults to zerolog.Nop().
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// Manager owns the filter and sort state of one list view.
//
// Thread-safety: all methods are safe for concurrent use. Slices returned by
// readers are shared with the Manager and must not be modified.
type Manager struct {
	mu sync.RWMutex

	records    []record.Record
	generation uint64
	additional any

	filterCfg *filter.Config
	sortCfg   *sorting.Config

	filterState filter.State
	sortState   sorting.State

	clock  clock.Clock
	logger zerolog.Logger

	derived Derived
	memo    string
}

// New creates a Manager with the configured default filter and sort state
// and computes the initial derived state.
func New(records []record.Record, filterCfg *filter.Config, sortCfg *sorting.Config, opts ...Option) (*Manager, error) {
	if filterCfg == nil {
		filterCfg = &filter.Config{}
	}
	if sortCfg == nil {
		sortCfg = &sorting.Config{}
	}

	m := &Manager{
		records:     slices.Clone(records),
		filterCfg:   filterCfg,
		sortCfg:     sortCfg,
		filterState: filter.NewState(filterCfg),
		sortState:   sorting.DefaultState(sortCfg),
		clock:       clock.System{},
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With().Str("component", "view-manager").Logger()

	if err := m.recompute(m.filterState, m.sortState); err != nil {
		return nil, err
	}
	return m, nil
}

// UpdateFilter sets one filter dimension.
func (m *Manager) UpdateFilter(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recompute(m.filterState.With(key, value), m.sortState)
}

// UpdateFilters sets several filter dimensions in one recomputation.
func (m *Manager) UpdateFilters(values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.filterState.Clone()
	for k, v := range values {
		next[k] = v
	}
	return m.recompute(next, m.sortState)
}

// ClearFilters resets the filter state to the initial filters merged over
// the sentinel defaults.
func (m *Manager) ClearFilters() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recompute(filter.NewState(m.filterCfg), m.sortState)
}

// SetSortWithOrder selects a sort field and direction. dir must be asc or
// desc; anything else is rejected and the state is left unchanged.
func (m *Manager) SetSortWithOrder(field string, dir sorting.Direction) error {
	parsed, err := sorting.ParseDirection(string(dir))
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recompute(m.filterState, sorting.State{SortBy: field, SortOrder: parsed})
}

// HandleSortChange toggles the direction when field is already the sort
// field, otherwise selects field with its configured direction.
func (m *Manager) HandleSortChange(field string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := sorting.State{SortBy: field, SortOrder: m.sortCfg.DirectionFor(field)}
	if field == m.sortState.SortBy {
		next.SortOrder = m.sortState.SortOrder.Toggle()
	}
	return m.recompute(m.filterState, next)
}

// SetRecords replaces the record collection.
func (m *Manager) SetRecords(records []record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prevRecords, prevGen := m.records, m.generation
	m.records = slices.Clone(records)
	m.generation++
	if err := m.recompute(m.filterState, m.sortState); err != nil {
		m.records, m.generation = prevRecords, prevGen
		return err
	}
	return nil
}

// SetAdditionalData replaces the side-channel value.
func (m *Manager) SetAdditionalData(v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prevAdditional, prevGen := m.additional, m.generation
	m.additional = v
	m.generation++
	if err := m.recompute(m.filterState, m.sortState); err != nil {
		m.additional, m.generation = prevAdditional, prevGen
		return err
	}
	return nil
}

// Refresh re-evaluates against the current clock reading. Date ranges are
// the only input that changes with time.
func (m *Manager) Refresh() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recompute(m.filterState, m.sortState)
}

// recompute derives state for fs/ss and commits it. On error nothing changes.
// Callers must hold mu.
func (m *Manager) recompute(fs filter.State, ss sorting.State) error {
	now := m.clock.Now()

	key, err := m.memoKey(fs, ss, now)
	if err != nil {
		return err
	}
	if key == m.memo {
		m.filterState, m.sortState = fs, ss
		m.logger.Debug().Str("memo", "hit").Msg("derived state reused")
		return nil
	}

	filtered, err := filter.Apply(m.records, fs, m.filterCfg, filter.Env{Now: now, Additional: m.additional})
	if err != nil {
		return fmt.Errorf("apply filters: %w", err)
	}
	final := sorting.Apply(filtered, ss.SortBy, ss.SortOrder, m.sortCfg, m.additional)

	m.filterState, m.sortState = fs, ss
	m.derived = Derived{
		FilteredData:     filtered,
		FinalData:        final,
		TotalCount:       len(m.records),
		FilteredCount:    len(filtered),
		HasActiveFilters: fs.HasActive(m.filterCfg),
		ComputedAt:       now,
	}
	m.memo = key

	m.logger.Debug().
		Int("total", m.derived.TotalCount).
		Int("filtered", m.derived.FilteredCount).
		Strs("active", fs.ActiveKeys(m.filterCfg)).
		Str("sort_by", ss.SortBy).
		Str("sort_order", string(ss.SortOrder)).
		Msg("derived state recomputed")
	return nil
}

// memoKey encodes every input of recompute as canonical JSON, so distinct
// inputs never share a key.
func (m *Manager) memoKey(fs filter.State, ss sorting.State, now time.Time) (string, error) {
	key, err := record.MarshalCanonical(map[string]any{
		"generation": m.generation,
		"filters":    map[string]string(fs),
		"sort_by":    ss.SortBy,
		"sort_order": string(ss.SortOrder),
		"now":        now.Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("encode memo key: %w", err)
	}
	return string(key), nil
}

// Derived returns the current derived state.
func (m *Manager) Derived() Derived {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.derived
}

// FilteredData returns the records passing the current filters, in input order.
func (m *Manager) FilteredData() []record.Record {
	return m.Derived().FilteredData
}

// FinalData returns the filtered records in sort order.
func (m *Manager) FinalData() []record.Record {
	return m.Derived().FinalData
}

// TotalCount returns the number of records before filtering.
func (m *Manager) TotalCount() int {
	return m.Derived().TotalCount
}

// FilteredCount returns the number of records after filtering.
func (m *Manager) FilteredCount() int {
	return m.Derived().FilteredCount
}

// HasActiveFilters reports whether any dimension differs from its sentinel.
func (m *Manager) HasActiveFilters() bool {
	return m.Derived().HasActiveFilters
}

// FilterState returns a copy of the current filter state.
func (m *Manager) FilterState() filter.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterState.Clone()
}

// SortState returns the current sort state.
func (m *Manager) SortState() sorting.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortState
}

// ActiveFilters returns the active filter keys, sorted.
func (m *Manager) ActiveFilters() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterState.ActiveKeys(m.filterCfg)
}

// SortIndicator returns ↑ or ↓ for the active sort field and "" otherwise.
func (m *Manager) SortIndicator(field string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if field == "" || field != m.sortState.SortBy {
		return ""
	}
	if m.sortState.SortOrder == sorting.Desc {
		return IndicatorDesc
	}
	return IndicatorAsc
}

// SortOptions returns the selectable sort fields.
func (m *Manager) SortOptions() []sorting.Option {
	return slices.Clone(m.sortCfg.SortOptions)
}

// FilterOptions returns the selectable values per filter key. Keys without
// options (search, custom keys, inert dimensions) are omitted.
func (m *Manager) FilterOptions() map[string][]filter.Option {
	out := make(map[string][]filter.Option)
	for _, key := range filter.BuiltinKeys {
		if opts := m.filterCfg.Options(key); len(opts) > 0 {
			out[key] = opts
		}
	}
	return out
}
