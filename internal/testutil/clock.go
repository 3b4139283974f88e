// Package testutil provides shared helpers for deterministic tests.
package testutil

import (
	"sync"
	"time"
)

// StepClock is a thread-safe manual clock. TTL and retention tests step
// it explicitly instead of sleeping, which keeps expiry assertions exact
// and the tests fast.
type StepClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewStepClock creates a clock pinned to a fixed, arbitrary instant.
func NewStepClock() *StepClock {
	return &StepClock{t: time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)}
}

// Now returns the current clock reading. Pass the method value as a
// `func() time.Time` clock override.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *StepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
