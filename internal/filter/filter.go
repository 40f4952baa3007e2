package filter

import (
	"slices"
	"strings"
	"time"

	"github.com/afairgiant/medikeep/internal/record"
)

// check evaluates one active dimension against a record.
type check struct {
	key string
	fn  func(r record.Record) (bool, error)
}

// Apply returns the records that pass every active dimension of state.
//
// The result is a new slice holding the same record values in their original
// relative order. A nil cfg filters nothing. The only error Apply returns is
// a *PredicateError from a custom predicate or search function.
func Apply(records []record.Record, state State, cfg *Config, env Env) ([]record.Record, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if env.Now.IsZero() {
		env.Now = time.Now()
	}

	checks := plan(state, cfg, env)
	out := make([]record.Record, 0, len(records))

	if len(checks) == 0 {
		return append(out, records...), nil
	}

	for i, r := range records {
		keep := true
		for _, c := range checks {
			ok, err := c.fn(r)
			if err != nil {
				return nil, &PredicateError{Key: c.key, Index: i, Err: err}
			}
			if !ok {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, r)
		}
	}
	return out, nil
}

// Match reports whether a single record passes every active dimension.
func Match(r record.Record, state State, cfg *Config, env Env) (bool, error) {
	out, err := Apply([]record.Record{r}, state, cfg, env)
	if err != nil {
		return false, err
	}
	return len(out) == 1, nil
}

// plan builds the checks for the active dimensions, in evaluation order.
// Inert dimensions produce no check.
func plan(state State, cfg *Config, env Env) []check {
	var checks []check

	for _, key := range BuiltinKeys {
		value := state.Get(key)
		if !IsActive(key, value) {
			continue
		}
		if pred, ok := cfg.CustomFilters[key]; ok && pred != nil {
			checks = append(checks, customCheck(key, value, pred, env.Additional))
			continue
		}
		if c, ok := builtinCheck(key, value, cfg, env); ok {
			checks = append(checks, c)
		}
	}

	var custom []string
	for key := range cfg.CustomFilters {
		if !slices.Contains(BuiltinKeys, key) {
			custom = append(custom, key)
		}
	}
	slices.Sort(custom)
	for _, key := range custom {
		pred := cfg.CustomFilters[key]
		value := state.Get(key)
		if pred == nil || !IsActive(key, value) {
			continue
		}
		checks = append(checks, customCheck(key, value, pred, env.Additional))
	}

	return checks
}

func customCheck(key, value string, pred Predicate, additional any) check {
	return check{
		key: key,
		fn: func(r record.Record) (bool, error) {
			return pred(r, value, additional)
		},
	}
}

func builtinCheck(key, value string, cfg *Config, env Env) (check, bool) {
	switch key {
	case KeySearch:
		term := strings.TrimSpace(value)
		if cfg.CustomSearch != nil {
			search := cfg.CustomSearch
			return check{key: key, fn: func(r record.Record) (bool, error) {
				return search(r, term, env.Additional)
			}}, true
		}
		lowered := strings.ToLower(term)
		fields := cfg.SearchFields
		tags := cfg.tagsField()
		return check{key: key, fn: func(r record.Record) (bool, error) {
			return searchMatch(r, lowered, fields, tags), nil
		}}, true

	case KeyStatus, KeyCategory, KeyResult, KeyType:
		d, _ := cfg.dimension(key)
		if !d.configured() {
			return check{}, false
		}
		field := d.Field
		return check{key: key, fn: func(r record.Record) (bool, error) {
			v, ok := field.Get(r)
			if !ok {
				return false, nil
			}
			s, ok := record.String(v)
			return ok && s == value, nil
		}}, true

	case KeyDateRange, KeyOrderedDate, KeyCompletedDate:
		return dateCheck(key, RangeName(value), cfg, env)
	}
	return check{}, false
}

func dateCheck(key string, name RangeName, cfg *Config, env Env) (check, bool) {
	if !cfg.rangeAccepted(name) {
		return check{}, false
	}

	var spec dateSpec
	switch key {
	case KeyDateRange:
		spec = dateSpec{point: cfg.DateField, start: cfg.StartDateField, end: cfg.EndDateField}
	case KeyOrderedDate:
		spec = dateSpec{point: cfg.OrderedDateField}
	case KeyCompletedDate:
		spec = dateSpec{point: cfg.CompletedDateField}
	}

	if isIntervalRange(name) {
		if spec.start.IsZero() && spec.end.IsZero() {
			return check{}, false
		}
	} else if spec.point.IsZero() && spec.start.IsZero() {
		return check{}, false
	}

	loc := cfg.Location
	if loc == nil {
		loc = env.Now.Location()
	}
	m := newRangeMatcher(name, env.Now.In(loc), loc, spec)
	return check{key: key, fn: func(r record.Record) (bool, error) {
		return m.match(r), nil
	}}, true
}
