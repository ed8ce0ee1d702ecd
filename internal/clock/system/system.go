// Package system provides the wall clock shared by the monitor, cache,
// crawler and scheduler.
package system

import "time"

// Clock returns UTC wall time.
type Clock struct{}

// New creates a Clock.
func New() Clock {
	return Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
