package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afairgiant/medikeep/internal/filter"
	"github.com/afairgiant/medikeep/internal/predicate"
	"github.com/afairgiant/medikeep/internal/record"
	"github.com/afairgiant/medikeep/internal/sorting"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.RegisterPredicate("prescriberLookup", func(r record.Record, value string, additional any) (bool, error) {
		names, _ := additional.(map[string]string)
		id, _ := record.String(r["prescriber_id"])
		return names[id] == value, nil
	}))
	require.NoError(t, reg.RegisterComparator("priorityComparator", func(a, b record.Record, dir sorting.Direction, _ any) int {
		pa, _ := record.Number(a["priority"])
		pb, _ := record.Number(b["priority"])
		switch {
		case pa < pb:
			return -1
		case pa > pb:
			return 1
		}
		return 0
	}))
	require.NoError(t, reg.RegisterSearch("idSearch", func(r record.Record, term string, _ any) (bool, error) {
		id, _ := record.String(r["id"])
		return id == term, nil
	}))
	return reg
}

func opts(values ...string) []filter.Option {
	out := make([]filter.Option, len(values))
	for i, v := range values {
		out[i] = filter.Option{Value: v, Label: v}
	}
	return out
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateViewValid(t *testing.T) {
	def, err := compileOne(t, medicationsCUE, "medications")
	require.NoError(t, err)

	errs := ValidateView(def, testRegistry(t))
	assert.Empty(t, errs, "valid view should have no errors")
}

func TestValidateViewErrors(t *testing.T) {
	tests := []struct {
		name  string
		def   ViewDef
		codes []string
		field string
	}{
		{
			name:  "options without field",
			def:   ViewDef{Filter: FilterDef{Status: DimensionDef{Options: opts("active")}}},
			codes: []string{ErrDimensionIncomplete},
			field: "filter.status",
		},
		{
			name:  "field without options",
			def:   ViewDef{Filter: FilterDef{Category: DimensionDef{Field: "category"}}},
			codes: []string{ErrDimensionIncomplete},
			field: "filter.category",
		},
		{
			name:  "reserved and duplicate options",
			def:   ViewDef{Filter: FilterDef{Result: DimensionDef{Field: "result", Options: opts("all", "normal", "normal")}}},
			codes: []string{ErrReservedOption, ErrDuplicateOption},
			field: "filter.result.options[0]",
		},
		{
			name:  "unknown date range",
			def:   ViewDef{Filter: FilterDef{DateRange: DateRangeDef{Field: "date", Options: []string{"week", "fortnight"}}}},
			codes: []string{ErrUnknownDateRange},
			field: "filter.dateRange.options[1]",
		},
		{
			name:  "date range without fields",
			def:   ViewDef{Filter: FilterDef{DateRange: DateRangeDef{Options: []string{"week"}}}},
			codes: []string{ErrDateRangeNoFields},
			field: "filter.dateRange",
		},
		{
			name:  "unknown registered predicate",
			def:   ViewDef{Filter: FilterDef{Custom: map[string]CustomDef{"x": {Expr: predicate.Registered{Name: "nope"}}}}},
			codes: []string{ErrUnknownPredicate},
			field: "filter.custom.x",
		},
		{
			name:  "expression does not compile",
			def:   ViewDef{Filter: FilterDef{Custom: map[string]CustomDef{"x": {Expr: predicate.Equals{Field: "a", Value: []any{1}}}}}},
			codes: []string{ErrInvalidExpression},
			field: "filter.custom.x",
		},
		{
			name:  "unknown search function",
			def:   ViewDef{Filter: FilterDef{SearchFunc: "fuzzy"}},
			codes: []string{ErrUnknownSearchFunc},
			field: "filter.searchFunc",
		},
		{
			name:  "initial unknown key",
			def:   ViewDef{Filter: FilterDef{Initial: map[string]string{"colour": "red"}}},
			codes: []string{ErrInvalidInitial},
			field: "filter.initial.colour",
		},
		{
			name: "initial value not an option",
			def: ViewDef{Filter: FilterDef{
				Status:  DimensionDef{Field: "status", Options: opts("active")},
				Initial: map[string]string{"status": "stopped"},
			}},
			codes: []string{ErrInvalidInitial},
			field: "filter.initial.status",
		},
		{
			name: "initial range not accepted",
			def: ViewDef{Filter: FilterDef{
				DateRange: DateRangeDef{Field: "d", Options: []string{"week"}},
				Initial:   map[string]string{"dateRange": "year"},
			}},
			codes: []string{ErrInvalidInitial},
			field: "filter.initial.dateRange",
		},
		{
			name:  "unknown sort type",
			def:   ViewDef{Sort: SortDef{Types: map[string]string{"name": "alpha"}}},
			codes: []string{ErrUnknownSortType},
			field: "sort.types.name",
		},
		{
			name:  "custom type without comparator",
			def:   ViewDef{Sort: SortDef{Types: map[string]string{"priority": "custom"}}},
			codes: []string{ErrMissingComparator},
			field: "sort.types.priority",
		},
		{
			name:  "unknown comparator",
			def:   ViewDef{Sort: SortDef{Custom: map[string]string{"priority": "byWeight"}}},
			codes: []string{ErrUnknownComparator},
			field: "sort.custom.priority",
		},
		{
			name:  "comparator on non-custom type",
			def:   ViewDef{Sort: SortDef{Types: map[string]string{"priority": "number"}, Custom: map[string]string{"priority": "priorityComparator"}}},
			codes: []string{ErrUnknownSortType},
			field: "sort.custom.priority",
		},
		{
			name:  "bad default order",
			def:   ViewDef{Sort: SortDef{DefaultOrder: "up"}},
			codes: []string{ErrInvalidDirection},
			field: "sort.default.order",
		},
		{
			name:  "bad option order",
			def:   ViewDef{Sort: SortDef{Options: []SortOptionDef{{Value: "a", Label: "A", Order: "sideways"}}}},
			codes: []string{ErrInvalidDirection},
			field: "sort.options[0].order",
		},
		{
			name:  "duplicate sort option",
			def:   ViewDef{Sort: SortDef{Options: []SortOptionDef{{Value: "a"}, {Value: "a"}}}},
			codes: []string{ErrDuplicateOption},
			field: "sort.options[1]",
		},
		{
			name:  "default not an option",
			def:   ViewDef{Sort: SortDef{DefaultBy: "b", Options: []SortOptionDef{{Value: "a"}}}},
			codes: []string{ErrDefaultNotAnOption},
			field: "sort.default.by",
		},
		{
			name:  "bad locale",
			def:   ViewDef{Sort: SortDef{Locale: "not_a-locale-!"}},
			codes: []string{ErrInvalidLocale},
			field: "sort.locale",
		},
		{
			name:  "bad timezone",
			def:   ViewDef{Timezone: "Mars/Olympus_Mons"},
			codes: []string{ErrInvalidTimezone},
			field: "timezone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateView(&tt.def, testRegistry(t))
			require.NotEmpty(t, errs)
			assert.Equal(t, tt.codes, codes(errs))
			assert.Equal(t, tt.field, errs[0].Field)
		})
	}
}

func TestValidateViewCustomKeyCoversDimension(t *testing.T) {
	// A custom filter on a built-in key makes an option-less dimension valid.
	def := &ViewDef{Filter: FilterDef{
		Status: DimensionDef{Field: "status"},
		Custom: map[string]CustomDef{"status": {Expr: predicate.MatchesFilter{Field: "status"}}},
		Initial: map[string]string{
			"status": "anything",
		},
	}}
	assert.Empty(t, ValidateView(def, nil))
}

func TestValidateViewPrefixesName(t *testing.T) {
	def, err := compileOne(t, `view: meds: {filter: {searchFunc: "fuzzy"}}`, "meds")
	require.NoError(t, err)

	errs := ValidateView(def, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, "meds.filter.searchFunc", errs[0].Field)
	assert.Positive(t, errs[0].Line)
	assert.Contains(t, errs[0].Error(), "[E206] line ")
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Field: "meds.sort.locale", Message: "bad", Code: ErrInvalidLocale}
	assert.Equal(t, "[E215] meds.sort.locale: bad", err.Error())

	err.Line = 7
	assert.Equal(t, "[E215] line 7: meds.sort.locale: bad", err.Error())

	errs := ValidationErrors{err, {Field: "f", Message: "m", Code: "E201"}}
	assert.Equal(t, "[E215] line 7: meds.sort.locale: bad; [E201] f: m", errs.Error())
}

func TestLintView(t *testing.T) {
	def := &ViewDef{
		Name: "meds",
		Filter: FilterDef{
			Custom: map[string]CustomDef{
				"grade": {Expr: predicate.In{Field: "grade"}},
			},
		},
		Sort: SortDef{Types: map[string]string{"status": "status", "severity": "severity"}},
	}

	assert.Equal(t, []string{
		`meds: filter.custom.grade: expression: field "grade" checked against an empty set never matches`,
		"meds: filter.search: no search fields; search matches tags only",
		"meds: sort.types.severity: severity sort without severityOrder keeps input order",
		"meds: sort.types.status: status sort without statusOrder keeps input order",
	}, LintView(def))

	clean, err := compileOne(t, medicationsCUE, "medications")
	require.NoError(t, err)
	assert.Empty(t, LintView(clean))
}
