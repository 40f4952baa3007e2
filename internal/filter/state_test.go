package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/afairgiant/medikeep/internal/record"
)

func TestIsActive(t *testing.T) {
	tests := []struct {
		key    string
		value  string
		active bool
	}{
		{KeySearch, "", false},
		{KeySearch, "  \t", false},
		{KeySearch, "all", true},
		{KeySearch, "amox", true},
		{KeyStatus, "all", false},
		{KeyStatus, "", true},
		{KeyStatus, "active", true},
		{KeyStatus, "All", true},
		{"allergen", "all", false},
		{"allergen", "peanut", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.active, IsActive(tt.key, tt.value), "%s=%q", tt.key, tt.value)
	}
}

func TestDefaultState(t *testing.T) {
	s := DefaultState()

	assert.Len(t, s, len(BuiltinKeys))
	assert.Equal(t, "", s[KeySearch])
	for _, k := range BuiltinKeys[1:] {
		assert.Equal(t, All, s[k], k)
	}
	assert.False(t, s.HasActive(nil))
	assert.Empty(t, s.ActiveKeys(nil))
}

func TestNewState_MergesInitialFilters(t *testing.T) {
	cfg := &Config{
		InitialFilters: State{KeyStatus: "active", "allergen": "peanut"},
		CustomFilters: map[string]Predicate{
			"prescriber": func(record.Record, string, any) (bool, error) { return true, nil },
			"allergen":   func(record.Record, string, any) (bool, error) { return true, nil },
		},
	}

	s := NewState(cfg)
	assert.Equal(t, "active", s[KeyStatus])
	assert.Equal(t, "peanut", s["allergen"])
	assert.Equal(t, All, s["prescriber"])
	assert.Equal(t, All, s[KeyCategory])
	assert.Equal(t, []string{"allergen", KeyStatus}, s.ActiveKeys(cfg))

	// Mutating the result leaves the config untouched.
	s[KeyStatus] = "stopped"
	assert.Equal(t, "active", cfg.InitialFilters[KeyStatus])
}

func TestState_ActiveKeysIgnoresUnevaluatedKeys(t *testing.T) {
	cfg := &Config{
		CustomFilters: map[string]Predicate{
			"allergen": func(record.Record, string, any) (bool, error) { return true, nil },
		},
	}

	s := DefaultState().With("bogus", "x")
	assert.False(t, s.HasActive(cfg))
	assert.Empty(t, s.ActiveKeys(cfg))

	s = s.With("allergen", "peanut").With(KeyCategory, "")
	assert.True(t, s.HasActive(cfg))
	assert.Equal(t, []string{"allergen", KeyCategory}, s.ActiveKeys(cfg))
	assert.Equal(t, []string{KeyCategory}, s.ActiveKeys(nil))
}

func TestNewState_NilConfig(t *testing.T) {
	assert.Equal(t, DefaultState(), NewState(nil))
}

func TestState_GetWithClone(t *testing.T) {
	s := State{KeyStatus: "active"}

	assert.Equal(t, "active", s.Get(KeyStatus))
	assert.Equal(t, All, s.Get(KeyCategory))
	assert.Equal(t, "", s.Get(KeySearch))

	next := s.With(KeySearch, "amox")
	assert.Equal(t, "amox", next[KeySearch])
	_, ok := s[KeySearch]
	assert.False(t, ok)

	var empty State
	assert.NotNil(t, empty.Clone())
}

func TestConfig_Options(t *testing.T) {
	cfg := &Config{
		Status:           statusDimension(),
		Category:         Dimension{Field: record.F("category")},
		DateField:        record.F("date"),
		DateRangeOptions: []RangeName{RangeAll, RangeToday, RangeWeek},
	}

	status := cfg.Options(KeyStatus)
	assert.Equal(t, []Option{
		{Value: All, Label: "All"},
		{Value: "active", Label: "Active"},
		{Value: "completed", Label: "Completed"},
	}, status)

	assert.Nil(t, cfg.Options(KeyCategory))
	assert.Nil(t, cfg.Options(KeySearch))
	assert.Nil(t, cfg.Options(KeyOrderedDate))

	assert.Equal(t, []Option{
		{Value: All, Label: "All Time"},
		{Value: "today", Label: "Today"},
		{Value: "week", Label: "This Week"},
	}, cfg.Options(KeyDateRange))

	var nilCfg *Config
	assert.Nil(t, nilCfg.Options(KeyStatus))
}
