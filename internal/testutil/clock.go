package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a thread-safe wall clock for tests: each Now()
// call advances by a fixed step, so assigned timestamps are reproducible
// across runs. Install it with the SetClock hooks on the store and
// engines.
//
// A zero step is allowed and makes Now() return the same instant every
// call, which exercises the change log's same-instant tie-breaking.
type DeterministicClock struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

// NewDeterministicClock creates a clock starting at start, advancing by
// step per Now() call.
func NewDeterministicClock(start time.Time, step time.Duration) *DeterministicClock {
	return &DeterministicClock{current: start, step: step}
}

// Now returns the current instant and advances the clock by one step.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.current
	c.current = c.current.Add(c.step)
	return now
}

// Peek returns the instant the next Now() call will report, without
// advancing.
func (c *DeterministicClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by d without reporting an instant.
func (c *DeterministicClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}
