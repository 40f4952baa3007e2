package predicate

import (
	"fmt"
	"slices"
	"strings"

	"github.com/afairgiant/medikeep/internal/record"
)

// Operators accepted by Parse.
const (
	OpEquals     = "equals"
	OpMatches    = "matches"
	OpContains   = "contains"
	OpIn         = "in"
	OpPresent    = "present"
	OpLookup     = "lookup"
	OpRegistered = "registered"
	OpAll        = "all"
	OpAny        = "any"
)

// Parse builds an expression from its generic decoded form, as produced by
// CUE's Value.Decode or yaml.v3. Each node is a single-key object:
//
//	{contains: "allergens"}
//	{equals: {field: "route", value: "oral"}}
//	{in: {field: "status", values: ["active", "on-hold"]}}
//	{all: [{present: "end_date"}, {matches: "status"}]}
func Parse(v any) (Expr, error) {
	return parse(v, "")
}

func parse(v any, path string) (Expr, error) {
	obj, ok := asObject(v)
	if !ok {
		return nil, fmt.Errorf("%s: expected an object, got %T", pathOrRoot(path), v)
	}
	if len(obj) != 1 {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		return nil, fmt.Errorf("%s: expected exactly one operator, got [%s]", pathOrRoot(path), strings.Join(keys, ", "))
	}

	for op, arg := range obj {
		here := prefix(path) + op
		switch op {
		case OpMatches, OpContains, OpPresent, OpLookup, OpRegistered:
			s, ok := arg.(string)
			if !ok || s == "" {
				return nil, fmt.Errorf("%s: expected a non-empty string", here)
			}
			switch op {
			case OpMatches:
				return MatchesFilter{Field: s}, nil
			case OpContains:
				return Contains{Field: s}, nil
			case OpPresent:
				return Present{Field: s}, nil
			case OpLookup:
				return Lookup{Field: s}, nil
			default:
				return Registered{Name: s}, nil
			}

		case OpEquals:
			args, ok := asObject(arg)
			if !ok {
				return nil, fmt.Errorf("%s: expected {field, value}", here)
			}
			f, _ := args["field"].(string)
			if f == "" {
				return nil, fmt.Errorf("%s.field: expected a non-empty string", here)
			}
			val, ok := args["value"]
			if !ok {
				return nil, fmt.Errorf("%s.value: required", here)
			}
			return Equals{Field: f, Value: val}, nil

		case OpIn:
			args, ok := asObject(arg)
			if !ok {
				return nil, fmt.Errorf("%s: expected {field, values}", here)
			}
			f, _ := args["field"].(string)
			if f == "" {
				return nil, fmt.Errorf("%s.field: expected a non-empty string", here)
			}
			raw, ok := args["values"].([]any)
			if !ok {
				return nil, fmt.Errorf("%s.values: expected a list", here)
			}
			values := make([]string, 0, len(raw))
			for i, elem := range raw {
				s, ok := record.String(elem)
				if !ok {
					return nil, fmt.Errorf("%s.values[%d]: expected a scalar, got %T", here, i, elem)
				}
				values = append(values, s)
			}
			return In{Field: f, Values: values}, nil

		case OpAll, OpAny:
			list, ok := arg.([]any)
			if !ok {
				return nil, fmt.Errorf("%s: expected a list of expressions", here)
			}
			exprs := make([]Expr, 0, len(list))
			for i, elem := range list {
				sub, err := parse(elem, fmt.Sprintf("%s[%d]", here, i))
				if err != nil {
					return nil, err
				}
				exprs = append(exprs, sub)
			}
			if op == OpAll {
				return And{Exprs: exprs}, nil
			}
			return Any{Exprs: exprs}, nil

		default:
			return nil, fmt.Errorf("%s: unknown operator %q", pathOrRoot(path), op)
		}
	}
	panic("unreachable")
}

func asObject(v any) (map[string]any, bool) {
	switch obj := v.(type) {
	case map[string]any:
		return obj, true
	case record.Record:
		return obj, true
	default:
		return nil, false
	}
}
