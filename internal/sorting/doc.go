// Package sorting implements the type-aware, stable record sort.
//
// Apply orders a record collection by one field. The comparator is chosen by
// the field's SortType:
//
//	string   - locale-aware, case-insensitive collation (golang.org/x/text/collate)
//	date     - parsed timestamps; missing or unparseable dates always sort last
//	number   - numeric compare; non-numeric values always sort last
//	boolean  - false before true ascending (TrueFirst reverses)
//	status   - rank from Config.StatusOrder, default 0
//	severity - rank from Config.SeverityOrder, default 0
//	custom   - Config.CustomSortFunctions[field], result used as-is
//
// Direction is applied outside the comparator: Asc multiplies by +1, Desc by
// -1. Custom comparators receive the direction and own their result.
//
// Apply is stable by construction (decorate-sort-undecorate): every record is
// paired with its input index and a precomputed key, and the index is the
// final tiebreaker. Records with equal keys keep their input order in both
// directions.
package sorting
