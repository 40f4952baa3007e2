// Package predicate provides a declarative expression language for custom
// filter dimensions.
//
// Custom filters are normally Go functions registered in filter.Config. View
// specs written in CUE or YAML cannot carry Go code, so they describe custom
// filters as predicate expressions instead, which Compile turns into
// filter.Predicate values.
//
// ARCHITECTURE:
//
//	[view spec] → Parse → [Expr] → Compile → filter.Predicate → filter.Apply
//
// EXPRESSIONS:
//
// Every expression is evaluated against one record and the current filter
// value for its key (the "bound" value):
//
//   - Equals{Field, Value}     field equals a literal
//   - MatchesFilter{Field}     field equals the filter value
//   - Contains{Field}          string field contains, or array field holds,
//     the filter value (case-insensitive)
//   - In{Field, Values}        field is one of a literal set
//   - Present{Field}           field is present and non-null
//   - Lookup{Field}            additional[field value] equals the filter value
//   - Registered{Name}         a Go predicate registered under Name
//   - And{Exprs}               all must hold (empty = always true)
//   - Any{Exprs}               at least one must hold (empty = never)
//
// SEALED INTERFACES:
//
// Expr is a sealed interface using the marker method pattern. Only types in
// this package implement it, so Compile and Validate switch exhaustively.
//
// Scalars are compared through record.String, so the literal 500 equals the
// record value 500.0 and the string "500".
package predicate
