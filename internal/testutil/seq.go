package testutil

import "sync"

// Sequence is a logical clock for traces. The first call to Next returns 1.
//
// Safe for concurrent use.
type Sequence struct {
	mu sync.Mutex
	n  int64
}

// NewSequence returns a sequence starting at 0.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next increments and returns the sequence.
func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.n
}

// Current returns the last value handed out.
func (s *Sequence) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}
