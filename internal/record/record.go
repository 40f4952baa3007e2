package record

import (
	"strconv"
	"strings"
)

// Record is a single opaque entity. Nested objects may be Record or
// map[string]any; arrays are []any.
type Record map[string]any

// Accessor reads a value from a record. ok is false when the value is absent.
type Accessor func(Record) (any, bool)

// Field is a named accessor. The zero Field means "not configured".
type Field struct {
	name string
	get  Accessor
}

// F builds a Field from a dot-separated path. An empty path yields the zero Field.
// Numeric segments index into arrays ("codes.0.display").
func F(path string) Field {
	path = strings.TrimSpace(path)
	if path == "" {
		return Field{}
	}
	segments := strings.Split(path, ".")
	return Field{
		name: path,
		get: func(r Record) (any, bool) {
			return lookup(r, segments)
		},
	}
}

// FieldFunc wraps a caller-supplied accessor.
func FieldFunc(name string, fn Accessor) Field {
	if fn == nil {
		return Field{}
	}
	return Field{name: name, get: fn}
}

// Fields builds one Field per path, skipping empty paths.
func Fields(paths ...string) []Field {
	fields := make([]Field, 0, len(paths))
	for _, p := range paths {
		if f := F(p); !f.IsZero() {
			fields = append(fields, f)
		}
	}
	return fields
}

// Name returns the path or name the field was built from.
func (f Field) Name() string {
	return f.name
}

// IsZero reports whether the field is unconfigured.
func (f Field) IsZero() bool {
	return f.get == nil
}

// Get reads the field from r. A nil value is reported as absent.
func (f Field) Get(r Record) (any, bool) {
	if f.get == nil || r == nil {
		return nil, false
	}
	v, ok := f.get(r)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Get is shorthand for F(path).Get(r). Prefer a prebuilt Field in loops.
func (r Record) Get(path string) (any, bool) {
	return F(path).Get(r)
}

func lookup(r Record, segments []string) (any, bool) {
	var cur any = r
	for _, seg := range segments {
		switch node := cur.(type) {
		case Record:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
		if cur == nil {
			return nil, false
		}
	}
	return cur, true
}
