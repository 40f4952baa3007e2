// Package view composes filtering and sorting into a stateful list view.
//
// A Manager owns one record collection, its filter.State and sorting.State,
// and the derived state a list page renders: the filtered records, the final
// (filtered then sorted) records, both counts and whether any filter is
// active. Every mutator recomputes the derived state synchronously:
//
//	filtered = filter.Apply(records, filterState, filterConfig)
//	final    = sorting.Apply(filtered, sortBy, sortOrder, sortConfig)
//
// Sorting is never applied before filtering.
//
// # Memoization
//
// Recomputation is skipped when nothing that affects the result changed. The
// memo key combines the record generation (bumped by SetRecords and
// SetAdditionalData), the canonical JSON of the filter state, the sort state
// and the clock reading truncated to the second.
//
// # Failure Semantics
//
// A custom predicate that errors makes the mutator return the error and
// leaves the previous state and derived data in place. A panicking custom
// comparator is not recovered.
package view
