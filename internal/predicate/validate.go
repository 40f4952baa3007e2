package predicate

import (
	"fmt"

	"github.com/afairgiant/medikeep/internal/record"
)

// ValidationResult contains lint findings for an expression.
//
// Warnings flag expressions that compile but are almost certainly mistakes,
// such as an In with no values (never matches) or an empty Any.
type ValidationResult struct {
	// Clean is true when there are no warnings.
	Clean bool

	// Warnings lists suspicious constructs. Empty when Clean is true.
	Warnings []string
}

// Validate lints an expression. It never fails; structural errors are
// reported by Compile.
//
// Validate is a pure function with no side effects.
func Validate(expr Expr) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	v.validate(expr, "")

	return ValidationResult{
		Clean:    len(v.warnings) == 0,
		Warnings: v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validate(expr Expr, path string) {
	at := pathOrRoot(path)
	switch e := expr.(type) {
	case nil:
		v.addWarning("%s: nil expression", at)
	case Equals:
		v.validateEquals(e, at)
	case *Equals:
		v.validateEquals(*e, at)
	case In:
		v.validateIn(e, at)
	case *In:
		v.validateIn(*e, at)
	case And:
		v.validateList(e.Exprs, path, OpAll)
	case *And:
		v.validateList(e.Exprs, path, OpAll)
	case Any:
		v.validateList(e.Exprs, path, OpAny)
	case *Any:
		v.validateList(e.Exprs, path, OpAny)
	case MatchesFilter, *MatchesFilter, Contains, *Contains, Present, *Present,
		Lookup, *Lookup, Registered, *Registered:
		// Leaf nodes carry only a field or name; Compile checks those.
	default:
		v.addWarning("%s: unknown expression type %T", at, expr)
	}
}

func (v *validator) validateEquals(e Equals, at string) {
	if e.Value == nil {
		v.addWarning("%s: field %q compared to null never matches (use present)", at, e.Field)
		return
	}
	if _, ok := record.String(e.Value); !ok {
		v.addWarning("%s: field %q compared to a non-scalar value", at, e.Field)
	}
}

func (v *validator) validateIn(e In, at string) {
	if len(e.Values) == 0 {
		v.addWarning("%s: field %q checked against an empty set never matches", at, e.Field)
	}
	seen := make(map[string]bool, len(e.Values))
	for _, val := range e.Values {
		if seen[val] {
			v.addWarning("%s: duplicate value %q", at, val)
		}
		seen[val] = true
	}
}

func (v *validator) validateList(exprs []Expr, path, op string) {
	if len(exprs) == 0 {
		if op == OpAny {
			v.addWarning("%s: empty any never matches", pathOrRoot(path))
		} else {
			v.addWarning("%s: empty all always matches", pathOrRoot(path))
		}
	}
	if len(exprs) == 1 {
		v.addWarning("%s: %s with a single expression is redundant", pathOrRoot(path), op)
	}
	for i, sub := range exprs {
		v.validate(sub, fmt.Sprintf("%s%s[%d]", prefix(path), op, i))
	}
}

// RegisteredNames returns the names of every Registered node in expr, in
// traversal order, without duplicates.
func RegisteredNames(expr Expr) []string {
	var names []string
	seen := make(map[string]bool)
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case Registered:
			if !seen[n.Name] {
				seen[n.Name] = true
				names = append(names, n.Name)
			}
		case *Registered:
			walk(*n)
		case And:
			for _, sub := range n.Exprs {
				walk(sub)
			}
		case *And:
			walk(*n)
		case Any:
			for _, sub := range n.Exprs {
				walk(sub)
			}
		case *Any:
			walk(*n)
		}
	}
	walk(expr)
	return names
}
