package cli

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/afairgiant/medikeep/internal/clock"
	"github.com/afairgiant/medikeep/internal/compiler"
	"github.com/afairgiant/medikeep/internal/filter"
	"github.com/afairgiant/medikeep/internal/record"
	"github.com/afairgiant/medikeep/internal/sorting"
	"github.com/afairgiant/medikeep/internal/store"
	"github.com/afairgiant/medikeep/internal/view"
)

// ViewOptions holds flags for the view command.
type ViewOptions struct {
	*RootOptions
	View       string
	Records    string // records file (JSON or YAML)
	Collection string // collection in --db
	Search     string
	Filters    []string // key=value
	SortBy     string
	Order      string
}

// ViewResult is the JSON payload of the view command.
type ViewResult struct {
	View          string          `json:"view"`
	Total         int             `json:"total"`
	Filtered      int             `json:"filtered"`
	Active        bool            `json:"active"`
	ActiveFilters []string        `json:"active_filters,omitempty"`
	SortBy        string          `json:"sort_by"`
	SortOrder     string          `json:"sort_order"`
	Records       []record.Record `json:"records"`
}

// NewViewCommand creates the view command.
func NewViewCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ViewOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "view <specs-dir>",
		Short: "Filter and sort records through a view",
		Long: `Filter and sort a record collection through one of the views
defined in a specs directory.

Records come from a JSON or YAML file (--records) or from a collection
previously imported into a database (--db and --collection).

Examples:
  medikeep view ./specs --view medications --records meds.yaml
  medikeep view ./specs --view medications --records meds.yaml --filter status=active --sort start_date --order desc
  medikeep view ./specs --view labs --db records.db --collection labs --search a1c --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.View, "view", "", "view name (required)")
	cmd.Flags().StringVar(&opts.Records, "records", "", "records file (.json, .yaml or .yml)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Collection, "collection", "", "collection to read from --db")
	cmd.Flags().StringVar(&opts.Search, "search", "", "search text")
	cmd.Flags().StringArrayVar(&opts.Filters, "filter", nil, "filter as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.SortBy, "sort", "", "sort field")
	cmd.Flags().StringVar(&opts.Order, "order", "", "sort order (asc|desc)")
	cmd.Flags().StringVar(&opts.Now, "now", "", "evaluation time (RFC3339); defaults to the current time")
	cmd.Flags().StringVar(&opts.Locale, "locale", "", "collation locale for string sorts (BCP 47)")
	_ = cmd.MarkFlagRequired("view")

	return cmd
}

func runView(opts *ViewOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	log := opts.logger()

	views, err := LoadViews(specsDir, opts.registry())
	if err != nil {
		return formatter.Fail(loadExitCode(err), loadErrorCode(err), err.Error(), nil)
	}
	v, ok := views[opts.View]
	if !ok {
		return formatter.Fail(ExitCommandError, ErrCodeView, fmt.Sprintf("unknown view %q (have %s)", opts.View, strings.Join(viewNames(views), ", ")), nil)
	}

	values, err := parseFilterArgs(opts.Filters)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeView, err.Error(), nil)
	}
	if opts.Search != "" {
		values[filter.KeySearch] = opts.Search
	}

	var clk clock.Clock = clock.System{}
	if opts.Now != "" {
		now, err := time.Parse(time.RFC3339, opts.Now)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeView, fmt.Sprintf("invalid --now %q: want RFC3339", opts.Now), nil)
		}
		clk = clock.NewFixed(now)
	}

	sortCfg, err := withLocale(v.Sort, opts.Locale)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeView, err.Error(), nil)
	}

	records, code, err := readRecords(cmd.Context(), opts)
	if err != nil {
		return formatter.Fail(ExitCommandError, code, err.Error(), nil)
	}
	formatter.VerboseLog("Loaded %d record(s)", len(records))

	m, err := view.New(records, v.Filter, sortCfg, view.WithClock(clk), view.WithLogger(log))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeView, err.Error(), nil)
	}
	if len(values) > 0 {
		if err := m.UpdateFilters(values); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeView, err.Error(), nil)
		}
	}
	if opts.SortBy != "" || opts.Order != "" {
		field := opts.SortBy
		if field == "" {
			field = m.SortState().SortBy
		}
		dir := sortCfg.DirectionFor(field)
		if opts.Order != "" {
			if dir, err = sorting.ParseDirection(opts.Order); err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeView, err.Error(), nil)
			}
		}
		if err := m.SetSortWithOrder(field, dir); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeView, err.Error(), nil)
		}
	}

	d := m.Derived()
	ss := m.SortState()
	result := ViewResult{
		View:          v.Name,
		Total:         d.TotalCount,
		Filtered:      d.FilteredCount,
		Active:        d.HasActiveFilters,
		ActiveFilters: m.ActiveFilters(),
		SortBy:        ss.SortBy,
		SortOrder:     string(ss.SortOrder),
		Records:       d.FinalData,
	}
	log.Debug().Str("view", v.Name).Int("total", result.Total).Int("filtered", result.Filtered).Msg("view evaluated")

	return formatter.Emit(result, func(w io.Writer) error {
		return writeViewText(w, m, result)
	})
}

// writeViewText prints one canonical JSON line per record followed by the
// counts, active filters and sort.
func writeViewText(w io.Writer, m *view.Manager, result ViewResult) error {
	for _, r := range result.Records {
		line, err := record.MarshalCanonical(r)
		if err != nil {
			return WrapExitError(ExitCommandError, "encoding record", err)
		}
		fmt.Fprintln(w, string(line))
	}

	fmt.Fprintf(w, "%d of %d shown\n", result.Filtered, result.Total)
	if result.Active {
		state := m.FilterState()
		parts := make([]string, 0, len(result.ActiveFilters))
		for _, key := range result.ActiveFilters {
			parts = append(parts, key+"="+state.Get(key))
		}
		fmt.Fprintf(w, "filters: %s\n", strings.Join(parts, ", "))
	}
	if result.SortBy != "" {
		fmt.Fprintf(w, "sorted by %s %s\n", result.SortBy, m.SortIndicator(result.SortBy))
	}
	return nil
}

// readRecords loads records from --records or from --db/--collection.
// The returned code classifies a failure.
func readRecords(ctx context.Context, opts *ViewOptions) ([]record.Record, string, error) {
	switch {
	case opts.Records != "" && opts.Collection != "":
		return nil, ErrCodeView, fmt.Errorf("--records and --collection are mutually exclusive")
	case opts.Records != "":
		records, err := record.Load(opts.Records)
		if err != nil {
			return nil, ErrCodeRecords, err
		}
		return records, "", nil
	case opts.Collection != "":
		if opts.DB == "" {
			return nil, ErrCodeView, fmt.Errorf("--collection requires --db")
		}
		s, err := openExistingStore(opts.DB)
		if err != nil {
			return nil, ErrCodeStore, err
		}
		defer s.Close()
		if ctx == nil {
			ctx = context.Background()
		}
		records, err := s.Load(ctx, opts.Collection)
		if err != nil {
			return nil, ErrCodeStore, err
		}
		return records, "", nil
	default:
		return nil, ErrCodeView, fmt.Errorf("one of --records or --collection is required")
	}
}

// parseFilterArgs turns key=value flags into filter values. Later flags win.
func parseFilterArgs(args []string) (map[string]string, error) {
	values := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --filter %q: want key=value", arg)
		}
		values[key] = value
	}
	return values, nil
}

// withLocale returns cfg with its collation locale replaced. cfg itself is
// shared with other users of the compiled view and is not modified.
func withLocale(cfg *sorting.Config, locale string) (*sorting.Config, error) {
	if locale == "" || cfg == nil {
		return cfg, nil
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %v", locale, err)
	}
	c := *cfg
	c.Locale = tag
	return &c, nil
}

func viewNames(views map[string]*compiler.View) []string {
	return slices.Sorted(maps.Keys(views))
}

// openExistingStore opens a database that must already exist, so a typo in
// --db does not silently create an empty file.
func openExistingStore(path string) (*store.Store, error) {
	if err := checkFileExists(path); err != nil {
		return nil, err
	}
	return store.Open(path)
}
