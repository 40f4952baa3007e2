// Package clock provides the notion of "now" used by date-range filtering.
//
// Date-range windows (today, week, past_month, current, ...) are computed
// relative to the current instant. Routing that instant through a Clock keeps
// filter results reproducible: tests, golden scenarios and the CLI's --now
// flag all pin it with a Fixed clock, while production callers use System.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current instant.
type Clock interface {
	Now() time.Time
}

// System is the wall clock.
type System struct{}

// Now returns time.Now().
func (System) Now() time.Time {
	return time.Now()
}

// Fixed is a settable clock for tests and reproducible runs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed creates a clock pinned at t.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t}
}

// Now returns the pinned instant.
func (c *Fixed) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t. Moving backwards is allowed.
func (c *Fixed) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d and returns the new instant.
func (c *Fixed) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Func adapts a plain function to the Clock interface.
type Func func() time.Time

// Now calls f.
func (f Func) Now() time.Time {
	return f()
}
