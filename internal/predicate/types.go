package predicate

// Expr is a declarative filter expression.
//
// This is a sealed interface - only types in this package implement it.
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// Equals holds when the field's scalar value equals Value.
//
// Example:
//
//	Equals{Field: "route", Value: "oral"}
type Equals struct {
	Field string
	Value any
}

func (Equals) exprNode() {}

// MatchesFilter holds when the field equals the current filter value. It is
// the built-in exact-equality dimension expressed declaratively, useful when
// the field differs from the filter key.
type MatchesFilter struct {
	Field string
}

func (MatchesFilter) exprNode() {}

// Contains holds when a string field contains the filter value, or an array
// field has an element equal to it. Both comparisons ignore case.
//
// Example (allergy list filtered by allergen):
//
//	Contains{Field: "allergens"}
type Contains struct {
	Field string
}

func (Contains) exprNode() {}

// In holds when the field's scalar value is one of Values.
type In struct {
	Field  string
	Values []string
}

func (In) exprNode() {}

// Present holds when the field is present and not null.
type Present struct {
	Field string
}

func (Present) exprNode() {}

// Lookup cross-references the caller's additional data: the field's value is
// used as a key into additional (map[string]any or map[string]string) and
// the looked-up value must equal the filter value.
//
// Example (filter medications by prescriber name, records carry an id):
//
//	Lookup{Field: "prescriber_id"}
//
// with additional = map[string]string{"p1": "Dr. Chen"}.
type Lookup struct {
	Field string
}

func (Lookup) exprNode() {}

// Registered refers to a Go predicate registered with a Resolver.
type Registered struct {
	Name string
}

func (Registered) exprNode() {}

// And holds when every expression holds. Empty And is always true.
type And struct {
	Exprs []Expr
}

func (And) exprNode() {}

// Any holds when at least one expression holds. Empty Any is never true.
type Any struct {
	Exprs []Expr
}

func (Any) exprNode() {}
