package filter

import (
	"errors"
	"fmt"
)

// PredicateError reports a custom predicate or search function that failed.
//
// It wraps the caller's error unchanged; errors.Is and errors.As see through it.
type PredicateError struct {
	// Key is the filter key whose predicate failed.
	Key string

	// Index is the position of the record in the input collection.
	Index int

	// Err is the error returned by the predicate.
	Err error
}

// Error implements the error interface.
func (e *PredicateError) Error() string {
	return fmt.Sprintf("filter %q failed on record %d: %v", e.Key, e.Index, e.Err)
}

// Unwrap returns the predicate's error.
func (e *PredicateError) Unwrap() error {
	return e.Err
}

// IsPredicateError reports whether err came from a custom predicate.
func IsPredicateError(err error) bool {
	var pe *PredicateError
	return errors.As(err, &pe)
}
