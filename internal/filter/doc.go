// Package filter implements the declarative record filter.
//
// Apply turns a record collection, a State (the current value of every filter
// dimension) and a page-specific Config into the subset of records that pass
// every active dimension. It is a pure function: input records and the input
// slice are never mutated, relative order is preserved, and identical inputs
// always produce identical output.
//
// # Dimensions
//
// Dimensions are AND-combined and evaluated in a fixed order:
//
//  1. search        - case-insensitive substring over SearchFields and tags
//  2. status        - exact equality against Config.Status
//  3. category      - exact equality against Config.Category
//  4. result        - exact equality against Config.Result
//  5. type          - exact equality against Config.Type
//  6. dateRange     - named range over DateField / StartDateField+EndDateField
//  7. orderedDate   - named range over OrderedDateField
//  8. completedDate - named range over CompletedDateField
//  9. custom keys   - remaining CustomFilters, in sorted key order
//
// A dimension is active when its State value is not the sentinel: All for
// every key except search, which is active when non-empty after trimming.
// A Predicate registered in CustomFilters under any key replaces the built-in
// behavior for that key.
//
// # Date Ranges
//
// Records are either point records (one timestamp) or interval records
// (start plus optional end, ongoing when the end is absent). Bounded ranges
// (today, week, month) use the interval-overlap test for interval records:
//
//	itemStart <= rangeEnd && itemEnd >= rangeStart
//
// Relative ranges (quarter, year, past_month, past_3_months, past_6_months)
// compare a single point against now minus the range length. The interval
// ranges current, past and future read the start/end fields directly; a
// record carrying neither passes through rather than being excluded.
//
// # Error Handling
//
// Missing fields and unparseable dates never error: the record simply does
// not match that dimension. Malformed config (a dimension with a field but no
// options, an unknown range name) leaves the dimension inert. A Predicate or
// SearchFunc that returns an error aborts Apply with a *PredicateError; that
// is a caller bug and is never swallowed.
package filter
