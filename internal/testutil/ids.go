package testutil

import (
	"fmt"
	"sync"
)

// IDSequence generates ids of the form "<prefix>-<n>" starting at 1.
//
// It stands in for UUIDv7 generation wherever output has to be byte-identical
// across runs (golden snapshots, import tests).
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type IDSequence struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewIDSequence creates a sequence. An empty prefix means "rec".
func NewIDSequence(prefix string) *IDSequence {
	if prefix == "" {
		prefix = "rec"
	}
	return &IDSequence{prefix: prefix}
}

// Next returns the next id.
func (s *IDSequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%d", s.prefix, s.n)
}

// Current returns how many ids have been handed out.
func (s *IDSequence) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// Reset restarts the sequence at 1.
func (s *IDSequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n = 0
}
