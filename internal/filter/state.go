package filter

import (
	"maps"
	"slices"
	"strings"
)

// All is the sentinel that deactivates every dimension except search.
const All = "all"

// Built-in filter keys.
const (
	KeySearch        = "search"
	KeyStatus        = "status"
	KeyCategory      = "category"
	KeyDateRange     = "dateRange"
	KeyOrderedDate   = "orderedDate"
	KeyCompletedDate = "completedDate"
	KeyResult        = "result"
	KeyType          = "type"
)

// BuiltinKeys lists the built-in keys in evaluation order.
var BuiltinKeys = []string{
	KeySearch,
	KeyStatus,
	KeyCategory,
	KeyResult,
	KeyType,
	KeyDateRange,
	KeyOrderedDate,
	KeyCompletedDate,
}

// State holds the current value of every filter dimension. A missing key
// reads as its sentinel.
type State map[string]string

// Sentinel returns the inactive value for key.
func Sentinel(key string) string {
	if key == KeySearch {
		return ""
	}
	return All
}

// IsActive reports whether value activates the dimension named key. Search
// is inactive when blank after trimming; every other key is inactive only at
// All, so an empty status filters for records whose status is "".
func IsActive(key, value string) bool {
	if key == KeySearch {
		return strings.TrimSpace(value) != ""
	}
	return value != All
}

// DefaultState returns every built-in key set to its sentinel.
func DefaultState() State {
	s := make(State, len(BuiltinKeys))
	for _, k := range BuiltinKeys {
		s[k] = Sentinel(k)
	}
	return s
}

// NewState merges cfg.InitialFilters over the sentinel defaults. Custom
// filter keys are included at their sentinel.
func NewState(cfg *Config) State {
	s := DefaultState()
	if cfg == nil {
		return s
	}
	for k := range cfg.CustomFilters {
		if _, ok := s[k]; !ok {
			s[k] = Sentinel(k)
		}
	}
	for k, v := range cfg.InitialFilters {
		s[k] = v
	}
	return s
}

// Get returns the value for key, or its sentinel when absent.
func (s State) Get(key string) string {
	if v, ok := s[key]; ok {
		return v
	}
	return Sentinel(key)
}

// Clone returns an independent copy.
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	return maps.Clone(s)
}

// With returns a copy with key set to value.
func (s State) With(key, value string) State {
	out := s.Clone()
	out[key] = value
	return out
}

// ActiveKeys returns the active keys cfg evaluates, sorted. Keys that are
// neither built in nor registered in cfg.CustomFilters never filter
// anything and are left out.
func (s State) ActiveKeys(cfg *Config) []string {
	var keys []string
	for k, v := range s {
		if IsActive(k, v) && cfg.evaluates(k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// HasActive reports whether any key cfg evaluates is active.
func (s State) HasActive(cfg *Config) bool {
	for k, v := range s {
		if IsActive(k, v) && cfg.evaluates(k) {
			return true
		}
	}
	return false
}

func (c *Config) evaluates(key string) bool {
	if slices.Contains(BuiltinKeys, key) {
		return true
	}
	if c == nil {
		return false
	}
	_, ok := c.CustomFilters[key]
	return ok
}
