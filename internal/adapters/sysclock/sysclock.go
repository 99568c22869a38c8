// Package sysclock implements ports.ClockPort against the system
// wall clock.
package sysclock

import "time"

// Clock is the production ports.ClockPort.
type Clock struct{}

// New constructs a Clock.
func New() Clock { return Clock{} }

// Now returns the current wall-clock time.
func (Clock) Now() time.Time { return time.Now() }
