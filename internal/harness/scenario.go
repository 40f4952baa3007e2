package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/afairgiant/medikeep/internal/sorting"
)

// Scenario drives one compiled view through a sequence of user actions and
// checks the derived state along the way.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// View is the name of the compiled view to open.
	View string `yaml:"view"`

	// Now pins the clock (RFC 3339) so date ranges are reproducible.
	Now string `yaml:"now"`

	// IDField is the record key used for ids in traces and assertions.
	// Defaults to "id". Records without one get deterministic ids rec-1,
	// rec-2, ... on import.
	IDField string `yaml:"id_field,omitempty"`

	// Records and RecordsFile are mutually exclusive. RecordsFile is
	// relative to the scenario file.
	Records     []map[string]any `yaml:"records,omitempty"`
	RecordsFile string           `yaml:"records_file,omitempty"`

	// Additional is the initial side-channel value for custom predicates
	// and comparators.
	Additional any `yaml:"additional,omitempty"`

	Steps      []Step      `yaml:"steps,omitempty"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one user action against the view.
type Step struct {
	// Action is one of the Action* constants.
	Action string `yaml:"action"`

	// Key and Value are used by update_filter.
	Key   string `yaml:"key,omitempty"`
	Value string `yaml:"value,omitempty"`

	// Values is used by update_filters.
	Values map[string]string `yaml:"values,omitempty"`

	// Field is used by sort_change and set_sort; Order by set_sort.
	Field string `yaml:"field,omitempty"`
	Order string `yaml:"order,omitempty"`

	// Data is used by set_additional.
	Data any `yaml:"data,omitempty"`

	// Duration is used by advance_clock (time.ParseDuration syntax).
	Duration string `yaml:"duration,omitempty"`

	// Records is used by set_records.
	Records []map[string]any `yaml:"records,omitempty"`

	// Expect checks the state after the step. Nil skips validation.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect lists the derived values a step must produce. Unset fields are not
// checked; ids: [] expects an empty view.
type Expect struct {
	Total      *int     `yaml:"total,omitempty"`
	Filtered   *int     `yaml:"filtered,omitempty"`
	Active     *bool    `yaml:"active,omitempty"`
	ActiveKeys []string `yaml:"active_keys,omitempty"`
	IDs        []string `yaml:"ids,omitempty"`
	SortBy     string   `yaml:"sort_by,omitempty"`
	SortOrder  string   `yaml:"sort_order,omitempty"`

	// Error expects the step to fail with a message containing this text.
	// The view keeps its previous state.
	Error string `yaml:"error,omitempty"`
}

// Assertion checks a property of the final view state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// IDs is the expected final order (used by final_ids).
	IDs []string `yaml:"ids,omitempty"`

	// Total and Filtered are the expected counts (used by counts).
	Total    *int `yaml:"total,omitempty"`
	Filtered *int `yaml:"filtered,omitempty"`
}

// Step actions.
const (
	ActionUpdateFilter  = "update_filter"
	ActionUpdateFilters = "update_filters"
	ActionClearFilters  = "clear_filters"
	ActionSortChange    = "sort_change"
	ActionSetSort       = "set_sort"
	ActionSetAdditional = "set_additional"
	ActionSetRecords    = "set_records"
	ActionAdvanceClock  = "advance_clock"
	ActionRefresh       = "refresh"
)

// Assertion type constants.
const (
	AssertIdentityFilter = "identity_filter"
	AssertSubset         = "subset"
	AssertStableSort     = "stable_sort"
	AssertDeterministic  = "deterministic"
	AssertNoMutation     = "no_mutation"
	AssertFinalIDs       = "final_ids"
	AssertCounts         = "counts"
)

// LoadScenario reads and parses a scenario YAML file. records_file is
// resolved relative to the scenario's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving records_file relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, basePath)
}

// ParseScenario parses scenario YAML. An empty basePath leaves records_file
// as written.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.RecordsFile != "" && !filepath.IsAbs(scenario.RecordsFile) && basePath != "" {
		scenario.RecordsFile = filepath.Join(basePath, scenario.RecordsFile)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.View == "" {
		return fmt.Errorf("view is required")
	}

	if s.Now == "" {
		return fmt.Errorf("now is required")
	}
	if _, err := time.Parse(time.RFC3339, s.Now); err != nil {
		return fmt.Errorf("now: %w", err)
	}

	switch {
	case s.Records != nil && s.RecordsFile != "":
		return fmt.Errorf("records and records_file are mutually exclusive")
	case s.Records == nil && s.RecordsFile == "":
		return fmt.Errorf("records or records_file is required")
	case s.RecordsFile != "":
		if _, err := os.Stat(s.RecordsFile); os.IsNotExist(err) {
			return fmt.Errorf("records file not found: %s", s.RecordsFile)
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i]); err != nil {
			return err
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

// validateStep validates a single step based on its action.
func validateStep(index int, st *Step) error {
	if st.Action == "" {
		return fmt.Errorf("steps[%d]: action is required", index)
	}

	switch st.Action {
	case ActionUpdateFilter:
		if st.Key == "" {
			return fmt.Errorf("steps[%d]: key is required for update_filter", index)
		}
	case ActionUpdateFilters:
		if len(st.Values) == 0 {
			return fmt.Errorf("steps[%d]: values is required for update_filters", index)
		}
	case ActionSortChange:
		if st.Field == "" {
			return fmt.Errorf("steps[%d]: field is required for sort_change", index)
		}
	case ActionSetSort:
		if st.Field == "" {
			return fmt.Errorf("steps[%d]: field is required for set_sort", index)
		}
		if _, err := sorting.ParseDirection(st.Order); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
	case ActionAdvanceClock:
		if _, err := time.ParseDuration(st.Duration); err != nil {
			return fmt.Errorf("steps[%d]: duration: %w", index, err)
		}
	case ActionSetRecords:
		if st.Records == nil {
			return fmt.Errorf("steps[%d]: records is required for set_records", index)
		}
	case ActionClearFilters, ActionSetAdditional, ActionRefresh:
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, st.Action)
	}

	if st.Expect != nil && st.Expect.SortOrder != "" {
		if _, err := sorting.ParseDirection(st.Expect.SortOrder); err != nil {
			return fmt.Errorf("steps[%d].expect: %w", index, err)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertIdentityFilter, AssertSubset, AssertStableSort, AssertDeterministic, AssertNoMutation:
	case AssertFinalIDs:
		if a.IDs == nil {
			return fmt.Errorf("assertions[%d]: ids is required for final_ids", index)
		}
	case AssertCounts:
		if a.Total == nil && a.Filtered == nil {
			return fmt.Errorf("assertions[%d]: total or filtered is required for counts", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
