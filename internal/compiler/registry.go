package compiler

import (
	"fmt"
	"slices"
	"sync"

	"github.com/afairgiant/medikeep/internal/filter"
	"github.com/afairgiant/medikeep/internal/sorting"
)

// Registry holds Go functions that view specs reference by name: custom
// filter predicates, sort comparators and search functions.
//
// Registry implements predicate.Resolver. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	predicates  map[string]filter.Predicate
	comparators map[string]sorting.CompareFunc
	searches    map[string]filter.SearchFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		predicates:  make(map[string]filter.Predicate),
		comparators: make(map[string]sorting.CompareFunc),
		searches:    make(map[string]filter.SearchFunc),
	}
}

// RegisterPredicate adds a named filter predicate.
func (r *Registry) RegisterPredicate(name string, fn filter.Predicate) error {
	if err := checkRegistration("predicate", name, fn == nil); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.predicates[name]; ok {
		return fmt.Errorf("predicate %q already registered", name)
	}
	r.predicates[name] = fn
	return nil
}

// RegisterComparator adds a named sort comparator.
func (r *Registry) RegisterComparator(name string, fn sorting.CompareFunc) error {
	if err := checkRegistration("comparator", name, fn == nil); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.comparators[name]; ok {
		return fmt.Errorf("comparator %q already registered", name)
	}
	r.comparators[name] = fn
	return nil
}

// RegisterSearch adds a named search function.
func (r *Registry) RegisterSearch(name string, fn filter.SearchFunc) error {
	if err := checkRegistration("search function", name, fn == nil); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.searches[name]; ok {
		return fmt.Errorf("search function %q already registered", name)
	}
	r.searches[name] = fn
	return nil
}

func checkRegistration(kind, name string, nilFn bool) error {
	if name == "" {
		return fmt.Errorf("%s name is required", kind)
	}
	if nilFn {
		return fmt.Errorf("%s %q is nil", kind, name)
	}
	return nil
}

// Predicate returns the predicate registered under name. A nil Registry
// has no entries.
func (r *Registry) Predicate(name string) (filter.Predicate, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.predicates[name]
	return fn, ok
}

// Comparator returns the comparator registered under name.
func (r *Registry) Comparator(name string) (sorting.CompareFunc, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.comparators[name]
	return fn, ok
}

// Search returns the search function registered under name.
func (r *Registry) Search(name string) (filter.SearchFunc, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.searches[name]
	return fn, ok
}

// Names lists registered names by kind, each sorted. Used in error
// messages.
func (r *Registry) Names() (predicates, comparators, searches []string) {
	if r == nil {
		return nil, nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.predicates), sortedKeys(r.comparators), sortedKeys(r.searches)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
