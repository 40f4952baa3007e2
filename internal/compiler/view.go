package compiler

import (
	"fmt"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/afairgiant/medikeep/internal/predicate"
)

var (
	viewFields      = []string{"description", "timezone", "filter", "sort"}
	filterFields    = []string{"search", "searchFunc", "tags", "status", "category", "result", "type", "dateRange", "orderedDate", "completedDate", "initial", "custom"}
	dimensionFields = []string{"field", "options"}
	dateRangeFields = []string{"field", "start", "end", "options"}
	sortFields      = []string{"default", "options", "types", "statusOrder", "severityOrder", "custom", "fields", "trueFirst", "locale"}
	defaultFields   = []string{"by", "order"}
	optionFields    = []string{"value", "label", "order"}
)

// CompileView parses a CUE value into a ViewDef.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the view struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`view: medications: { ... }`)
//	def, err := CompileView(v.LookupPath(cue.ParsePath("view.medications")))
//
// CompileView checks structure only. Names of registered functions, sort
// types and date ranges are checked by ValidateView.
func CompileView(v cue.Value) (*ViewDef, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := checkFields(v, "view", viewFields); err != nil {
		return nil, err
	}

	def := &ViewDef{Pos: v.Pos()}

	// Parse view name from struct label (the path selector)
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		sel := labels[len(labels)-1]
		if sel.LabelType() == cue.StringLabel {
			def.Name = sel.Unquoted()
		} else {
			def.Name = sel.String()
		}
	}

	var err error
	if def.Description, err = optString(v, "description"); err != nil {
		return nil, err
	}
	if def.Timezone, err = optString(v, "timezone"); err != nil {
		return nil, err
	}

	filterVal := v.LookupPath(cue.ParsePath("filter"))
	if filterVal.Exists() {
		if def.Filter, err = parseFilter(filterVal); err != nil {
			return nil, err
		}
	}

	sortVal := v.LookupPath(cue.ParsePath("sort"))
	if sortVal.Exists() {
		if def.Sort, err = parseSort(sortVal); err != nil {
			return nil, err
		}
	}

	return def, nil
}

// parseFilter extracts the filter section.
func parseFilter(v cue.Value) (FilterDef, error) {
	var def FilterDef
	if err := checkFields(v, "filter", filterFields); err != nil {
		return def, err
	}

	var err error
	if def.Search, err = optStringList(v, "search", "filter.search"); err != nil {
		return def, err
	}
	if def.SearchFunc, err = optString(v, "searchFunc", "filter.searchFunc"); err != nil {
		return def, err
	}
	if def.Tags, err = optString(v, "tags", "filter.tags"); err != nil {
		return def, err
	}

	dims := []struct {
		key string
		dst *DimensionDef
	}{
		{"status", &def.Status},
		{"category", &def.Category},
		{"result", &def.Result},
		{"type", &def.Type},
	}
	for _, d := range dims {
		dv := v.LookupPath(cue.MakePath(cue.Str(d.key)))
		if !dv.Exists() {
			continue
		}
		if *d.dst, err = parseDimension(dv, "filter."+d.key); err != nil {
			return def, err
		}
	}

	drVal := v.LookupPath(cue.ParsePath("dateRange"))
	if drVal.Exists() {
		if def.DateRange, err = parseDateRange(drVal); err != nil {
			return def, err
		}
	}
	if def.OrderedDate, err = optString(v, "orderedDate", "filter.orderedDate"); err != nil {
		return def, err
	}
	if def.CompletedDate, err = optString(v, "completedDate", "filter.completedDate"); err != nil {
		return def, err
	}

	if def.Initial, err = optStringMap(v, "initial", "filter.initial"); err != nil {
		return def, err
	}

	customVal := v.LookupPath(cue.ParsePath("custom"))
	if customVal.Exists() {
		if def.Custom, err = parseCustomFilters(customVal); err != nil {
			return def, err
		}
	}

	return def, nil
}

// parseDimension accepts options as plain strings or {value, label} structs.
// A plain string is its own label.
func parseDimension(v cue.Value, field string) (DimensionDef, error) {
	var def DimensionDef
	if err := checkFields(v, field, dimensionFields); err != nil {
		return def, err
	}

	var err error
	if def.Field, err = optString(v, "field", field+".field"); err != nil {
		return def, err
	}

	optsVal := v.LookupPath(cue.ParsePath("options"))
	if !optsVal.Exists() {
		return def, nil
	}
	iter, err := optsVal.List()
	if err != nil {
		return def, &CompileError{Field: field + ".options", Message: "must be a list", Pos: optsVal.Pos()}
	}
	for i := 0; iter.Next(); i++ {
		opt, err := parseOption(iter.Value(), fmt.Sprintf("%s.options[%d]", field, i))
		if err != nil {
			return def, err
		}
		def.Options = append(def.Options, filterOption(opt))
	}
	return def, nil
}

func parseDateRange(v cue.Value) (DateRangeDef, error) {
	var def DateRangeDef
	if err := checkFields(v, "filter.dateRange", dateRangeFields); err != nil {
		return def, err
	}

	var err error
	if def.Field, err = optString(v, "field", "filter.dateRange.field"); err != nil {
		return def, err
	}
	if def.Start, err = optString(v, "start", "filter.dateRange.start"); err != nil {
		return def, err
	}
	if def.End, err = optString(v, "end", "filter.dateRange.end"); err != nil {
		return def, err
	}
	if def.Options, err = optStringList(v, "options", "filter.dateRange.options"); err != nil {
		return def, err
	}
	return def, nil
}

// parseCustomFilters decodes each custom filter into a predicate expression.
func parseCustomFilters(v cue.Value) (map[string]CustomDef, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, &CompileError{Field: "filter.custom", Message: "must be a struct", Pos: v.Pos()}
	}

	custom := make(map[string]CustomDef)
	for iter.Next() {
		key := iter.Label()
		val := iter.Value()

		var raw any
		if err := val.Decode(&raw); err != nil {
			return nil, formatCUEError(err)
		}
		expr, err := predicate.Parse(raw)
		if err != nil {
			return nil, &CompileError{
				Field:   "filter.custom." + key,
				Message: err.Error(),
				Pos:     val.Pos(),
			}
		}
		custom[key] = CustomDef{Expr: expr, Pos: val.Pos()}
	}
	return custom, nil
}

// parseSort extracts the sort section.
func parseSort(v cue.Value) (SortDef, error) {
	var def SortDef
	if err := checkFields(v, "sort", sortFields); err != nil {
		return def, err
	}

	var err error
	defVal := v.LookupPath(cue.MakePath(cue.Str("default")))
	if defVal.Exists() {
		if err := checkFields(defVal, "sort.default", defaultFields); err != nil {
			return def, err
		}
		if def.DefaultBy, err = optString(defVal, "by", "sort.default.by"); err != nil {
			return def, err
		}
		if def.DefaultOrder, err = optString(defVal, "order", "sort.default.order"); err != nil {
			return def, err
		}
	}

	optsVal := v.LookupPath(cue.ParsePath("options"))
	if optsVal.Exists() {
		iter, err := optsVal.List()
		if err != nil {
			return def, &CompileError{Field: "sort.options", Message: "must be a list", Pos: optsVal.Pos()}
		}
		for i := 0; iter.Next(); i++ {
			opt, err := parseOption(iter.Value(), fmt.Sprintf("sort.options[%d]", i))
			if err != nil {
				return def, err
			}
			def.Options = append(def.Options, opt)
		}
	}

	if def.Types, err = optStringMap(v, "types", "sort.types"); err != nil {
		return def, err
	}
	if def.StatusOrder, err = optIntMap(v, "statusOrder", "sort.statusOrder"); err != nil {
		return def, err
	}
	if def.SeverityOrder, err = optIntMap(v, "severityOrder", "sort.severityOrder"); err != nil {
		return def, err
	}
	if def.Custom, err = optStringMap(v, "custom", "sort.custom"); err != nil {
		return def, err
	}
	if def.Fields, err = optStringMap(v, "fields", "sort.fields"); err != nil {
		return def, err
	}

	tfVal := v.LookupPath(cue.ParsePath("trueFirst"))
	if tfVal.Exists() {
		b, err := tfVal.Bool()
		if err != nil {
			return def, &CompileError{Field: "sort.trueFirst", Message: "must be a bool", Pos: tfVal.Pos()}
		}
		def.TrueFirst = b
	}

	if def.Locale, err = optString(v, "locale", "sort.locale"); err != nil {
		return def, err
	}
	return def, nil
}

// parseOption parses a string or a {value, label, order} struct.
func parseOption(v cue.Value, field string) (SortOptionDef, error) {
	if s, err := v.String(); err == nil {
		return SortOptionDef{Value: s, Label: s}, nil
	}
	if v.IncompleteKind() != cue.StructKind {
		return SortOptionDef{}, &CompileError{
			Field:   field,
			Message: "must be a string or a struct with value and label",
			Pos:     v.Pos(),
		}
	}
	if err := checkFields(v, field, optionFields); err != nil {
		return SortOptionDef{}, err
	}

	var opt SortOptionDef
	var err error
	if opt.Value, err = optString(v, "value", field+".value"); err != nil {
		return opt, err
	}
	if opt.Value == "" {
		return opt, &CompileError{Field: field + ".value", Message: "value is required", Pos: v.Pos()}
	}
	if opt.Label, err = optString(v, "label", field+".label"); err != nil {
		return opt, err
	}
	if opt.Label == "" {
		opt.Label = opt.Value
	}
	if opt.Order, err = optString(v, "order", field+".order"); err != nil {
		return opt, err
	}
	return opt, nil
}

// checkFields rejects struct fields outside allowed.
func checkFields(v cue.Value, field string, allowed []string) error {
	iter, err := v.Fields()
	if err != nil {
		return &CompileError{Field: field, Message: "must be a struct", Pos: v.Pos()}
	}
	for iter.Next() {
		if !slices.Contains(allowed, iter.Label()) {
			return &CompileError{
				Field:   field + "." + iter.Label(),
				Message: "unknown field",
				Pos:     iter.Value().Pos(),
			}
		}
	}
	return nil
}

// optString reads an optional string at key. field names the value in
// errors and defaults to key.
func optString(v cue.Value, key string, field ...string) (string, error) {
	name := key
	if len(field) > 0 {
		name = field[0]
	}
	sv := v.LookupPath(cue.MakePath(cue.Str(key)))
	if !sv.Exists() {
		return "", nil
	}
	s, err := sv.String()
	if err != nil {
		return "", &CompileError{Field: name, Message: "must be a string", Pos: sv.Pos()}
	}
	return s, nil
}

func optStringList(v cue.Value, key, field string) ([]string, error) {
	lv := v.LookupPath(cue.MakePath(cue.Str(key)))
	if !lv.Exists() {
		return nil, nil
	}
	iter, err := lv.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a list of strings", Pos: lv.Pos()}
	}
	var out []string
	for i := 0; iter.Next(); i++ {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: "must be a string",
				Pos:     iter.Value().Pos(),
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func optStringMap(v cue.Value, key, field string) (map[string]string, error) {
	mv := v.LookupPath(cue.MakePath(cue.Str(key)))
	if !mv.Exists() {
		return nil, nil
	}
	iter, err := mv.Fields()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a struct of strings", Pos: mv.Pos()}
	}
	out := make(map[string]string)
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   field + "." + iter.Label(),
				Message: "must be a string",
				Pos:     iter.Value().Pos(),
			}
		}
		out[iter.Label()] = s
	}
	return out, nil
}

func optIntMap(v cue.Value, key, field string) (map[string]int, error) {
	mv := v.LookupPath(cue.MakePath(cue.Str(key)))
	if !mv.Exists() {
		return nil, nil
	}
	iter, err := mv.Fields()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a struct of ints", Pos: mv.Pos()}
	}
	out := make(map[string]int)
	for iter.Next() {
		n, err := iter.Value().Int64()
		if err != nil {
			return nil, &CompileError{
				Field:   field + "." + iter.Label(),
				Message: "must be an int",
				Pos:     iter.Value().Pos(),
			}
		}
		out[iter.Label()] = int(n)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
