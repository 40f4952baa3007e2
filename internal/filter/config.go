package filter

import (
	"time"

	"github.com/afairgiant/medikeep/internal/record"
)

// Predicate decides whether a record passes a filter dimension. value is the
// current State value for the dimension; additional is the caller's
// side-channel data. A non-nil error aborts filtering.
type Predicate func(r record.Record, value string, additional any) (bool, error)

// SearchFunc replaces the default search logic entirely. term is the search
// value with surrounding whitespace removed.
type SearchFunc func(r record.Record, term string, additional any) (bool, error)

// Option is one selectable value of a filter dimension.
type Option struct {
	Value string
	Label string
}

// Dimension is an exact-equality filter over one field.
//
// A dimension with no field or no options is inert.
type Dimension struct {
	Field   record.Field
	Options []Option
}

func (d Dimension) configured() bool {
	return !d.Field.IsZero() && len(d.Options) > 0
}

// Config describes how to filter one record collection.
type Config struct {
	// SearchFields are searched as case-insensitive substrings, in order.
	SearchFields []record.Field

	// TagsField names the tag array searched alongside SearchFields.
	// Zero means "tags".
	TagsField record.Field

	// CustomSearch, when set, replaces the default search.
	CustomSearch SearchFunc

	Status   Dimension
	Category Dimension
	Result   Dimension
	Type     Dimension

	// DateField is the point-in-time field for the dateRange dimension.
	DateField record.Field

	// StartDateField and EndDateField describe interval records.
	StartDateField record.Field
	EndDateField   record.Field

	OrderedDateField   record.Field
	CompletedDateField record.Field

	// DateRangeOptions restricts the accepted range names. Empty accepts all.
	DateRangeOptions []RangeName

	// CustomFilters maps a filter key to a predicate. A predicate registered
	// under a built-in key replaces that dimension's default behavior.
	CustomFilters map[string]Predicate

	// InitialFilters are merged over the sentinel defaults by NewState.
	InitialFilters State

	// Location is used for date values without a zone. Nil means the
	// location of Env.Now.
	Location *time.Location
}

// Env carries per-evaluation inputs that are not part of the filter state.
type Env struct {
	// Now anchors date ranges. Zero means time.Now().
	Now time.Time

	// Additional is passed through to custom predicates.
	Additional any
}

var defaultTagsField = record.F("tags")

func (c *Config) tagsField() record.Field {
	if c.TagsField.IsZero() {
		return defaultTagsField
	}
	return c.TagsField
}

// dimension returns the equality dimension for a built-in key.
func (c *Config) dimension(key string) (Dimension, bool) {
	switch key {
	case KeyStatus:
		return c.Status, true
	case KeyCategory:
		return c.Category, true
	case KeyResult:
		return c.Result, true
	case KeyType:
		return c.Type, true
	default:
		return Dimension{}, false
	}
}

// Options lists the selectable values for a filter key, led by the "all"
// sentinel. Date keys list their accepted range names. Keys with nothing to
// select (search, custom keys, inert dimensions) return nil.
func (c *Config) Options(key string) []Option {
	if c == nil {
		return nil
	}
	if d, ok := c.dimension(key); ok {
		if !d.configured() {
			return nil
		}
		out := make([]Option, 0, len(d.Options)+1)
		out = append(out, Option{Value: All, Label: "All"})
		return append(out, d.Options...)
	}
	switch key {
	case KeyDateRange, KeyOrderedDate, KeyCompletedDate:
		if !c.dateDimensionConfigured(key) {
			return nil
		}
		names := c.DateRangeOptions
		if len(names) == 0 {
			names = allRangeNames
		}
		out := make([]Option, 0, len(names)+1)
		out = append(out, Option{Value: All, Label: RangeAll.Label()})
		for _, n := range names {
			if n == RangeAll {
				continue
			}
			out = append(out, Option{Value: string(n), Label: n.Label()})
		}
		return out
	}
	return nil
}

func (c *Config) dateDimensionConfigured(key string) bool {
	switch key {
	case KeyDateRange:
		return !c.DateField.IsZero() || !c.StartDateField.IsZero() || !c.EndDateField.IsZero()
	case KeyOrderedDate:
		return !c.OrderedDateField.IsZero()
	case KeyCompletedDate:
		return !c.CompletedDateField.IsZero()
	default:
		return false
	}
}

// rangeAccepted reports whether name is known and allowed by DateRangeOptions.
func (c *Config) rangeAccepted(name RangeName) bool {
	if !name.Known() || name == RangeAll {
		return false
	}
	if len(c.DateRangeOptions) == 0 {
		return true
	}
	for _, allowed := range c.DateRangeOptions {
		if allowed == name {
			return true
		}
	}
	return false
}
