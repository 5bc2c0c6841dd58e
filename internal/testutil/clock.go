package testutil

import "sync"

// DeterministicClock is a resettable task sequence for dispatcher tests.
// The first Next returns 1. Safe for concurrent use.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock creates a clock at 0.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next advances the clock and returns the new sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last sequence number handed out.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock so a scenario can run again with the same
// sequence numbers.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
