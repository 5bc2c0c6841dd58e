package action

import "sync/atomic"

// Sequencer numbers dispatched tasks.
type Sequencer interface {
	Next() int64
}

// Clock is a monotonic task counter. The first Next returns 1. Safe for
// concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose next value is start+1.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last sequence number handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
