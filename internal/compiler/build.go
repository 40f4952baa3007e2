package compiler

import (
	"fmt"
	"maps"
	"time"

	"golang.org/x/text/language"

	"github.com/afairgiant/medikeep/internal/filter"
	"github.com/afairgiant/medikeep/internal/predicate"
	"github.com/afairgiant/medikeep/internal/record"
	"github.com/afairgiant/medikeep/internal/sorting"
)

// View is a compiled view: engine configs ready for filter.Apply,
// sorting.Apply or view.New.
type View struct {
	Name        string
	Description string
	Filter      *filter.Config
	Sort        *sorting.Config

	// Warnings are LintView findings.
	Warnings []string
}

// Build validates def against reg and resolves it into engine configs.
// Validation failures are returned as ValidationErrors.
func Build(def *ViewDef, reg *Registry) (*View, error) {
	if errs := ValidateView(def, reg); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	var loc *time.Location
	if def.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(def.Timezone); err != nil {
			return nil, fmt.Errorf("view %s: %w", def.Name, err)
		}
	}

	fc, err := buildFilter(def.Filter, reg, loc)
	if err != nil {
		return nil, fmt.Errorf("view %s: %w", def.Name, err)
	}
	sc, err := buildSort(def.Sort, reg, loc)
	if err != nil {
		return nil, fmt.Errorf("view %s: %w", def.Name, err)
	}

	return &View{
		Name:        def.Name,
		Description: def.Description,
		Filter:      fc,
		Sort:        sc,
		Warnings:    LintView(def),
	}, nil
}

func buildFilter(def FilterDef, reg *Registry, loc *time.Location) (*filter.Config, error) {
	cfg := &filter.Config{
		SearchFields:       record.Fields(def.Search...),
		TagsField:          record.F(def.Tags),
		Status:             dimension(def.Status),
		Category:           dimension(def.Category),
		Result:             dimension(def.Result),
		Type:               dimension(def.Type),
		DateField:          record.F(def.DateRange.Field),
		StartDateField:     record.F(def.DateRange.Start),
		EndDateField:       record.F(def.DateRange.End),
		OrderedDateField:   record.F(def.OrderedDate),
		CompletedDateField: record.F(def.CompletedDate),
		Location:           loc,
	}

	if def.SearchFunc != "" {
		fn, ok := reg.Search(def.SearchFunc)
		if !ok {
			return nil, fmt.Errorf("unknown search function %q", def.SearchFunc)
		}
		cfg.CustomSearch = fn
	}

	for _, name := range def.DateRange.Options {
		cfg.DateRangeOptions = append(cfg.DateRangeOptions, filter.RangeName(name))
	}

	if len(def.Custom) > 0 {
		cfg.CustomFilters = make(map[string]filter.Predicate, len(def.Custom))
		for key, custom := range def.Custom {
			pred, err := predicate.Compile(custom.Expr, reg)
			if err != nil {
				return nil, fmt.Errorf("filter.custom.%s: %w", key, err)
			}
			cfg.CustomFilters[key] = pred
		}
	}

	if len(def.Initial) > 0 {
		cfg.InitialFilters = filter.State(maps.Clone(def.Initial))
	}
	return cfg, nil
}

func dimension(d DimensionDef) filter.Dimension {
	return filter.Dimension{
		Field:   record.F(d.Field),
		Options: append([]filter.Option(nil), d.Options...),
	}
}

func filterOption(opt SortOptionDef) filter.Option {
	return filter.Option{Value: opt.Value, Label: opt.Label}
}

func buildSort(def SortDef, reg *Registry, loc *time.Location) (*sorting.Config, error) {
	cfg := &sorting.Config{
		DefaultSortBy: def.DefaultBy,
		StatusOrder:   maps.Clone(def.StatusOrder),
		SeverityOrder: maps.Clone(def.SeverityOrder),
		TrueFirst:     def.TrueFirst,
		Location:      loc,
	}

	cfg.DefaultSortOrder = sorting.Asc
	if def.DefaultOrder != "" {
		dir, err := sorting.ParseDirection(def.DefaultOrder)
		if err != nil {
			return nil, err
		}
		cfg.DefaultSortOrder = dir
	}

	for _, opt := range def.Options {
		o := sorting.Option{Value: opt.Value, Label: opt.Label}
		if opt.Order != "" {
			dir, err := sorting.ParseDirection(opt.Order)
			if err != nil {
				return nil, err
			}
			o.Order = dir
		}
		cfg.SortOptions = append(cfg.SortOptions, o)
	}

	if len(def.Types) > 0 || len(def.Custom) > 0 {
		cfg.SortTypes = make(map[string]sorting.SortType, len(def.Types)+len(def.Custom))
		for field, t := range def.Types {
			cfg.SortTypes[field] = sorting.SortType(t)
		}
	}

	// A comparator implies the custom type.
	if len(def.Custom) > 0 {
		cfg.CustomSortFunctions = make(map[string]sorting.CompareFunc, len(def.Custom))
		for field, name := range def.Custom {
			fn, ok := reg.Comparator(name)
			if !ok {
				return nil, fmt.Errorf("sort.custom.%s: unknown comparator %q", field, name)
			}
			cfg.CustomSortFunctions[field] = fn
			cfg.SortTypes[field] = sorting.TypeCustom
		}
	}

	if len(def.Fields) > 0 {
		cfg.Fields = make(map[string]record.Field, len(def.Fields))
		for name, path := range def.Fields {
			cfg.Fields[name] = record.F(path)
		}
	}

	if def.Locale != "" {
		tag, err := language.Parse(def.Locale)
		if err != nil {
			return nil, fmt.Errorf("sort.locale: %w", err)
		}
		cfg.Locale = tag
	}
	return cfg, nil
}
