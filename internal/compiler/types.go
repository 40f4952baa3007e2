// Package compiler turns CUE view specs into filter and sort configs.
package compiler

import (
	"cuelang.org/go/cue/token"

	"github.com/afairgiant/medikeep/internal/filter"
	"github.com/afairgiant/medikeep/internal/predicate"
)

// ViewDef is a view spec as written, before names are resolved against a
// Registry. All field references are dot paths.
type ViewDef struct {
	Name        string
	Description string

	// Timezone is an IANA zone name applied to zone-less dates. Empty means
	// the zone of the evaluation clock.
	Timezone string

	Filter FilterDef
	Sort   SortDef

	Pos token.Pos
}

// DimensionDef is an equality dimension.
type DimensionDef struct {
	Field   string
	Options []filter.Option
}

// DateRangeDef configures the dateRange dimension.
type DateRangeDef struct {
	Field   string
	Start   string
	End     string
	Options []string
}

// CustomDef is one declarative custom filter.
type CustomDef struct {
	Expr predicate.Expr
	Pos  token.Pos
}

// FilterDef is the filter section of a view.
type FilterDef struct {
	Search     []string
	SearchFunc string
	Tags       string

	Status   DimensionDef
	Category DimensionDef
	Result   DimensionDef
	Type     DimensionDef

	DateRange     DateRangeDef
	OrderedDate   string
	CompletedDate string

	Initial map[string]string
	Custom  map[string]CustomDef
}

// SortOptionDef is one selectable sort field.
type SortOptionDef struct {
	Value string
	Label string
	Order string
}

// SortDef is the sort section of a view.
type SortDef struct {
	DefaultBy    string
	DefaultOrder string

	Options []SortOptionDef

	// Types maps a sort field to a sort type name.
	Types map[string]string

	StatusOrder   map[string]int
	SeverityOrder map[string]int

	// Custom maps a sort field to a registered comparator name.
	Custom map[string]string

	// Fields maps a sort field to the dot path it reads.
	Fields map[string]string

	TrueFirst bool
	Locale    string
}
