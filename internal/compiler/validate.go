package compiler

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/afairgiant/medikeep/internal/filter"
	"github.com/afairgiant/medikeep/internal/predicate"
	"github.com/afairgiant/medikeep/internal/sorting"
)

// Validation error codes (E200-E299)
const (
	// Filter errors (E201-E209)
	ErrDimensionIncomplete = "E201" // dimension has a field but no options, or options but no field
	ErrUnknownDateRange    = "E202" // unknown date range name
	ErrDateRangeNoFields   = "E203" // date range options without any date field
	ErrUnknownPredicate    = "E204" // registered predicate not found
	ErrInvalidExpression   = "E205" // custom filter expression does not compile
	ErrUnknownSearchFunc   = "E206" // registered search function not found
	ErrInvalidInitial      = "E207" // initial filter key or value not selectable
	ErrDuplicateOption     = "E208" // duplicate option value
	ErrReservedOption      = "E209" // option value collides with the "all" sentinel

	// Sort errors (E210-E219)
	ErrUnknownSortType    = "E210" // unknown sort type
	ErrUnknownComparator  = "E211" // registered comparator not found
	ErrMissingComparator  = "E212" // custom sort type without a comparator
	ErrInvalidDirection   = "E213" // direction is not asc or desc
	ErrDefaultNotAnOption = "E214" // default sort field missing from options
	ErrInvalidLocale      = "E215" // unparseable locale tag

	// View errors (E220-E229)
	ErrInvalidTimezone = "E220" // unknown IANA zone
)

// ValidationError represents a view spec validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is a non-empty list of validation errors.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// ValidateView checks a view against the registry and the sets of known
// sort types and range names. Returns all errors found (does not
// fail-fast). A nil registry has no entries.
func ValidateView(def *ViewDef, reg *Registry) []ValidationError {
	v := &viewValidator{def: def, reg: reg}
	if def.Pos.IsValid() {
		v.line = def.Pos.Line()
	}
	v.validateFilter()
	v.validateSort()

	if def.Timezone != "" {
		if _, err := time.LoadLocation(def.Timezone); err != nil {
			v.add("timezone", ErrInvalidTimezone, "unknown time zone %q", def.Timezone)
		}
	}
	return v.errs
}

// LintView returns warnings for constructs that compile but are almost
// certainly mistakes. Warnings never block Build.
func LintView(def *ViewDef) []string {
	var warnings []string
	for _, key := range sortedKeys(def.Filter.Custom) {
		result := predicate.Validate(def.Filter.Custom[key].Expr)
		for _, w := range result.Warnings {
			warnings = append(warnings, fmt.Sprintf("%s: filter.custom.%s: %s", def.Name, key, w))
		}
	}
	if len(def.Filter.Search) == 0 && def.Filter.SearchFunc == "" {
		warnings = append(warnings, fmt.Sprintf("%s: filter.search: no search fields; search matches tags only", def.Name))
	}
	for _, field := range sortedKeys(def.Sort.Types) {
		switch sorting.SortType(def.Sort.Types[field]) {
		case sorting.TypeStatus:
			if len(def.Sort.StatusOrder) == 0 {
				warnings = append(warnings, fmt.Sprintf("%s: sort.types.%s: status sort without statusOrder keeps input order", def.Name, field))
			}
		case sorting.TypeSeverity:
			if len(def.Sort.SeverityOrder) == 0 {
				warnings = append(warnings, fmt.Sprintf("%s: sort.types.%s: severity sort without severityOrder keeps input order", def.Name, field))
			}
		}
	}
	return warnings
}

// viewValidator accumulates errors for one view.
type viewValidator struct {
	def  *ViewDef
	reg  *Registry
	line int
	errs []ValidationError
}

func (v *viewValidator) add(field, code, format string, args ...any) {
	v.addAt(field, code, v.line, format, args...)
}

func (v *viewValidator) addAt(field, code string, line int, format string, args ...any) {
	if v.def.Name != "" {
		field = v.def.Name + "." + field
	}
	v.errs = append(v.errs, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
		Line:    line,
	})
}

func (v *viewValidator) validateFilter() {
	f := v.def.Filter

	if f.SearchFunc != "" {
		if _, ok := v.reg.Search(f.SearchFunc); !ok {
			v.add("filter.searchFunc", ErrUnknownSearchFunc, "unknown search function %q", f.SearchFunc)
		}
	}

	for _, d := range v.dimensions() {
		v.validateDimension(d.key, d.def)
	}

	dr := f.DateRange
	for i, name := range dr.Options {
		rn := filter.RangeName(name)
		if rn == filter.RangeAll || !rn.Known() {
			v.add(fmt.Sprintf("filter.dateRange.options[%d]", i), ErrUnknownDateRange, "unknown date range %q", name)
		}
	}
	if len(dr.Options) > 0 && dr.Field == "" && dr.Start == "" && dr.End == "" {
		v.add("filter.dateRange", ErrDateRangeNoFields, "date range options given without field, start or end")
	}

	for _, key := range sortedKeys(f.Custom) {
		custom := f.Custom[key]
		line := v.line
		if custom.Pos.IsValid() {
			line = custom.Pos.Line()
		}
		missing := false
		for _, name := range predicate.RegisteredNames(custom.Expr) {
			if _, ok := v.reg.Predicate(name); !ok {
				v.addAt("filter.custom."+key, ErrUnknownPredicate, line, "unknown registered predicate %q", name)
				missing = true
			}
		}
		if missing {
			continue
		}
		if _, err := predicate.Compile(custom.Expr, v.reg); err != nil {
			v.addAt("filter.custom."+key, ErrInvalidExpression, line, "%v", err)
		}
	}

	v.validateInitial()
}

type namedDimension struct {
	key string
	def DimensionDef
}

func (v *viewValidator) dimensions() []namedDimension {
	f := v.def.Filter
	return []namedDimension{
		{filter.KeyStatus, f.Status},
		{filter.KeyCategory, f.Category},
		{filter.KeyResult, f.Result},
		{filter.KeyType, f.Type},
	}
}

func (v *viewValidator) validateDimension(key string, d DimensionDef) {
	field := "filter." + key
	switch {
	case d.Field == "" && len(d.Options) == 0:
		return
	case d.Field == "":
		v.add(field, ErrDimensionIncomplete, "options given without a field")
	case len(d.Options) == 0:
		if _, custom := v.def.Filter.Custom[key]; !custom {
			v.add(field, ErrDimensionIncomplete, "field %q has no options", d.Field)
		}
	}

	seen := make(map[string]bool, len(d.Options))
	for i, opt := range d.Options {
		if opt.Value == filter.All {
			v.add(fmt.Sprintf("%s.options[%d]", field, i), ErrReservedOption, "%q is reserved for the inactive sentinel", filter.All)
		}
		if seen[opt.Value] {
			v.add(fmt.Sprintf("%s.options[%d]", field, i), ErrDuplicateOption, "duplicate option %q", opt.Value)
		}
		seen[opt.Value] = true
	}
}

// validateInitial checks that every initial filter names a known key and,
// for built-in dimensions, a selectable value.
func (v *viewValidator) validateInitial() {
	f := v.def.Filter
	for _, key := range sortedKeys(f.Initial) {
		value := f.Initial[key]
		field := "filter.initial." + key
		_, custom := f.Custom[key]

		if !slices.Contains(filter.BuiltinKeys, key) && !custom {
			v.add(field, ErrInvalidInitial, "unknown filter key %q", key)
			continue
		}
		if custom || !filter.IsActive(key, value) {
			continue
		}

		switch key {
		case filter.KeyStatus, filter.KeyCategory, filter.KeyResult, filter.KeyType:
			var d DimensionDef
			for _, nd := range v.dimensions() {
				if nd.key == key {
					d = nd.def
				}
			}
			if !slices.ContainsFunc(d.Options, func(o filter.Option) bool { return o.Value == value }) {
				v.add(field, ErrInvalidInitial, "value %q is not one of the %s options", value, key)
			}
		case filter.KeyDateRange, filter.KeyOrderedDate, filter.KeyCompletedDate:
			rn := filter.RangeName(value)
			if !rn.Known() {
				v.add(field, ErrInvalidInitial, "unknown date range %q", value)
			} else if key == filter.KeyDateRange && len(f.DateRange.Options) > 0 && !slices.Contains(f.DateRange.Options, value) {
				v.add(field, ErrInvalidInitial, "date range %q is not one of the dateRange options", value)
			}
		}
	}
}

func (v *viewValidator) validateSort() {
	s := v.def.Sort

	if s.DefaultOrder != "" {
		if _, err := sorting.ParseDirection(s.DefaultOrder); err != nil {
			v.add("sort.default.order", ErrInvalidDirection, "%v", err)
		}
	}

	seen := make(map[string]bool, len(s.Options))
	for i, opt := range s.Options {
		if seen[opt.Value] {
			v.add(fmt.Sprintf("sort.options[%d]", i), ErrDuplicateOption, "duplicate option %q", opt.Value)
		}
		seen[opt.Value] = true
		if opt.Order != "" {
			if _, err := sorting.ParseDirection(opt.Order); err != nil {
				v.add(fmt.Sprintf("sort.options[%d].order", i), ErrInvalidDirection, "%v", err)
			}
		}
	}
	if s.DefaultBy != "" && len(s.Options) > 0 && !seen[s.DefaultBy] {
		v.add("sort.default.by", ErrDefaultNotAnOption, "default sort field %q is not one of the sort options", s.DefaultBy)
	}

	for _, field := range sortedKeys(s.Types) {
		t := sorting.SortType(s.Types[field])
		if !t.Known() {
			v.add("sort.types."+field, ErrUnknownSortType, "unknown sort type %q", t)
			continue
		}
		if t == sorting.TypeCustom {
			if _, ok := s.Custom[field]; !ok {
				v.add("sort.types."+field, ErrMissingComparator, "custom sort type has no comparator in sort.custom")
			}
		}
	}

	for _, field := range sortedKeys(s.Custom) {
		name := s.Custom[field]
		if _, ok := v.reg.Comparator(name); !ok {
			v.add("sort.custom."+field, ErrUnknownComparator, "unknown comparator %q", name)
		}
		if t, ok := s.Types[field]; ok && t != string(sorting.TypeCustom) {
			v.add("sort.custom."+field, ErrUnknownSortType, "field has sort type %q; comparators require type custom", t)
		}
	}

	if s.Locale != "" {
		if _, err := language.Parse(s.Locale); err != nil {
			v.add("sort.locale", ErrInvalidLocale, "invalid locale %q: %v", s.Locale, err)
		}
	}
}
