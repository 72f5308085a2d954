// SPDX-License-Identifier: MIT

// Package audiotime implements the pure recurrence-time calculation at
// the heart of the scheduler engine: given a schedule and a reference
// instant, compute the next instant it should fire.
package audiotime

import "time"

// Clock abstracts wall-clock access so callers can inject a fixed or
// stepped time source in tests instead of depending on time.Now.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current local time.
func (SystemClock) Now() time.Time { return time.Now() }
