package predicate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/afairgiant/medikeep/internal/filter"
	"github.com/afairgiant/medikeep/internal/record"
)

// Resolver supplies Go predicates referenced by Registered expressions.
type Resolver interface {
	Predicate(name string) (filter.Predicate, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(name string) (filter.Predicate, bool)

// Predicate calls f.
func (f ResolverFunc) Predicate(name string) (filter.Predicate, bool) {
	return f(name)
}

// ErrAdditionalType is returned when a Lookup runs against additional data
// that is not a string-keyed map.
var ErrAdditionalType = errors.New("additional data is not a string-keyed map")

// evalFunc is a compiled expression.
type evalFunc func(r record.Record, value string, additional any) (bool, error)

// Compile turns an expression into a filter.Predicate. Field paths are
// compiled once. resolver may be nil when expr has no Registered nodes.
func Compile(expr Expr, resolver Resolver) (filter.Predicate, error) {
	fn, err := compile(expr, resolver, "")
	if err != nil {
		return nil, err
	}
	return filter.Predicate(fn), nil
}

func compile(expr Expr, resolver Resolver, path string) (evalFunc, error) {
	switch e := expr.(type) {
	case nil:
		return nil, fmt.Errorf("%s: nil expression", pathOrRoot(path))
	case Equals:
		return compileEquals(e, path)
	case *Equals:
		return compileEquals(*e, path)
	case MatchesFilter:
		return compileMatches(e, path)
	case *MatchesFilter:
		return compileMatches(*e, path)
	case Contains:
		return compileContains(e, path)
	case *Contains:
		return compileContains(*e, path)
	case In:
		return compileIn(e, path)
	case *In:
		return compileIn(*e, path)
	case Present:
		return compilePresent(e, path)
	case *Present:
		return compilePresent(*e, path)
	case Lookup:
		return compileLookup(e, path)
	case *Lookup:
		return compileLookup(*e, path)
	case Registered:
		return compileRegistered(e, resolver, path)
	case *Registered:
		return compileRegistered(*e, resolver, path)
	case And:
		return compileAnd(e.Exprs, resolver, path)
	case *And:
		return compileAnd(e.Exprs, resolver, path)
	case Any:
		return compileAny(e.Exprs, resolver, path)
	case *Any:
		return compileAny(e.Exprs, resolver, path)
	default:
		return nil, fmt.Errorf("%s: unknown expression type %T", pathOrRoot(path), expr)
	}
}

func field(name, path string) (record.Field, error) {
	f := record.F(name)
	if f.IsZero() {
		return record.Field{}, fmt.Errorf("%s: field is required", pathOrRoot(path))
	}
	return f, nil
}

func compileEquals(e Equals, path string) (evalFunc, error) {
	f, err := field(e.Field, path)
	if err != nil {
		return nil, err
	}
	want, ok := record.String(e.Value)
	if !ok {
		return nil, fmt.Errorf("%s: equals value must be a scalar, got %T", pathOrRoot(path), e.Value)
	}
	return func(r record.Record, _ string, _ any) (bool, error) {
		return scalarEquals(f, r, want), nil
	}, nil
}

func compileMatches(e MatchesFilter, path string) (evalFunc, error) {
	f, err := field(e.Field, path)
	if err != nil {
		return nil, err
	}
	return func(r record.Record, value string, _ any) (bool, error) {
		return scalarEquals(f, r, value), nil
	}, nil
}

func compileContains(e Contains, path string) (evalFunc, error) {
	f, err := field(e.Field, path)
	if err != nil {
		return nil, err
	}
	return func(r record.Record, value string, _ any) (bool, error) {
		v, ok := f.Get(r)
		if !ok {
			return false, nil
		}
		needle := strings.ToLower(value)
		if elems, ok := v.([]any); ok {
			for _, elem := range elems {
				if s, ok := record.String(elem); ok && strings.ToLower(s) == needle {
					return true, nil
				}
			}
			return false, nil
		}
		if elems, ok := v.([]string); ok {
			for _, s := range elems {
				if strings.ToLower(s) == needle {
					return true, nil
				}
			}
			return false, nil
		}
		s, ok := record.String(v)
		return ok && strings.Contains(strings.ToLower(s), needle), nil
	}, nil
}

func compileIn(e In, path string) (evalFunc, error) {
	f, err := field(e.Field, path)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(e.Values))
	for _, v := range e.Values {
		set[v] = struct{}{}
	}
	return func(r record.Record, _ string, _ any) (bool, error) {
		v, ok := f.Get(r)
		if !ok {
			return false, nil
		}
		s, ok := record.String(v)
		if !ok {
			return false, nil
		}
		_, found := set[s]
		return found, nil
	}, nil
}

func compilePresent(e Present, path string) (evalFunc, error) {
	f, err := field(e.Field, path)
	if err != nil {
		return nil, err
	}
	return func(r record.Record, _ string, _ any) (bool, error) {
		_, ok := f.Get(r)
		return ok, nil
	}, nil
}

func compileLookup(e Lookup, path string) (evalFunc, error) {
	f, err := field(e.Field, path)
	if err != nil {
		return nil, err
	}
	return func(r record.Record, value string, additional any) (bool, error) {
		v, ok := f.Get(r)
		if !ok {
			return false, nil
		}
		key, ok := record.String(v)
		if !ok {
			return false, nil
		}
		var found any
		switch table := additional.(type) {
		case map[string]string:
			s, ok := table[key]
			if !ok {
				return false, nil
			}
			found = s
		case map[string]any:
			found, ok = table[key]
			if !ok {
				return false, nil
			}
		case record.Record:
			found, ok = table[key]
			if !ok {
				return false, nil
			}
		default:
			return false, fmt.Errorf("lookup %q: %w (got %T)", e.Field, ErrAdditionalType, additional)
		}
		s, ok := record.String(found)
		return ok && s == value, nil
	}, nil
}

func compileRegistered(e Registered, resolver Resolver, path string) (evalFunc, error) {
	if e.Name == "" {
		return nil, fmt.Errorf("%s: registered predicate name is required", pathOrRoot(path))
	}
	if resolver == nil {
		return nil, fmt.Errorf("%s: no resolver for registered predicate %q", pathOrRoot(path), e.Name)
	}
	pred, ok := resolver.Predicate(e.Name)
	if !ok || pred == nil {
		return nil, fmt.Errorf("%s: unknown registered predicate %q", pathOrRoot(path), e.Name)
	}
	return evalFunc(pred), nil
}

func compileAnd(exprs []Expr, resolver Resolver, path string) (evalFunc, error) {
	fns, err := compileAll(exprs, resolver, path, OpAll)
	if err != nil {
		return nil, err
	}
	return func(r record.Record, value string, additional any) (bool, error) {
		for _, fn := range fns {
			ok, err := fn(r, value, additional)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}, nil
}

func compileAny(exprs []Expr, resolver Resolver, path string) (evalFunc, error) {
	fns, err := compileAll(exprs, resolver, path, OpAny)
	if err != nil {
		return nil, err
	}
	return func(r record.Record, value string, additional any) (bool, error) {
		for _, fn := range fns {
			ok, err := fn(r, value, additional)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}, nil
}

func compileAll(exprs []Expr, resolver Resolver, path, op string) ([]evalFunc, error) {
	fns := make([]evalFunc, 0, len(exprs))
	for i, sub := range exprs {
		fn, err := compile(sub, resolver, fmt.Sprintf("%s%s[%d]", prefix(path), op, i))
		if err != nil {
			return nil, err
		}
		fns = append(fns, fn)
	}
	return fns, nil
}

func scalarEquals(f record.Field, r record.Record, want string) bool {
	v, ok := f.Get(r)
	if !ok {
		return false
	}
	s, ok := record.String(v)
	return ok && s == want
}

func prefix(path string) string {
	if path == "" {
		return ""
	}
	return path + "."
}

func pathOrRoot(path string) string {
	if path == "" {
		return "expression"
	}
	return path
}
