// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package state

import (
	"sync/atomic"
)

// InFlightCounter counts running tasks and remembers the highest value it has
// ever reached. It is safe for concurrent use; the zero value is ready.
type InFlightCounter struct {
	v    atomic.Int64
	peak atomic.Int64
}

// Increment unconditionally increments the counter.
func (c *InFlightCounter) Increment() {
	c.observe(c.v.Add(1))
}

// IncrementIfUnder increments the counter and returns true if the incremented
// value is less than or equal to limit. Otherwise it returns false and leaves
// the counter unchanged. A negative limit means no limit.
func (c *InFlightCounter) IncrementIfUnder(limit int) bool {
	if limit < 0 {
		c.Increment()
		return true
	}
	// Tentatively increment the counter and check against limit. If over limit,
	// remove the tentative increment and try again if we notice that another
	// goroutine has made room between the increment and decrement.
	for {
		n := c.v.Add(1)
		if n <= int64(limit) {
			c.observe(n)
			return true
		}
		if c.v.Add(-1) >= int64(limit) {
			return false
		}
	}
}

// Decrement decrements the counter and returns true if it reached zero.
func (c *InFlightCounter) Decrement() bool {
	n := c.v.Add(-1)
	if n < 0 {
		panic("there were no tasks in flight")
	}
	return n == 0
}

// Load returns the current value.
func (c *InFlightCounter) Load() int {
	return int(c.v.Load())
}

// Peak returns the highest value the counter has held.
func (c *InFlightCounter) Peak() int {
	return int(c.peak.Load())
}

func (c *InFlightCounter) IsZero() bool {
	return c.v.Load() == 0
}

func (c *InFlightCounter) observe(n int64) {
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			return
		}
	}
}
