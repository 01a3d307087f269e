package testutil

import (
	"sync"
	"time"
)

// DefaultBase is the first instant a DeterministicClock reports.
var DefaultBase = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// DeterministicClock is a wall clock for tests that advances by a fixed
// step on every reading.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	base  time.Time
	step  time.Duration
	ticks int64
}

// NewDeterministicClock creates a clock starting at DefaultBase that advances
// one second per call to Now.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(DefaultBase, time.Second)
}

// NewDeterministicClockAt creates a clock starting at base. A non-positive
// step freezes the clock.
func NewDeterministicClockAt(base time.Time, step time.Duration) *DeterministicClock {
	if step < 0 {
		step = 0
	}
	return &DeterministicClock{base: base, step: step}
}

// Now returns the next instant. The first call returns the base.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.base.Add(time.Duration(c.ticks) * c.step)
	c.ticks++
	return t
}

// Current returns the instant the next call to Now will return, without
// advancing.
func (c *DeterministicClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base.Add(time.Duration(c.ticks) * c.step)
}

// Ticks reports how many times Now has been called since the last Reset.
func (c *DeterministicClock) Ticks() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

// Reset rewinds the clock to its base.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
