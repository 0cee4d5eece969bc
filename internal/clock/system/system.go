// Package system provides the wall clock used for check timestamps and run
// timing. Records are always stamped in UTC.
package system

import "time"

// Clock satisfies the Clock interfaces of the prober and progress packages.
type Clock struct{}

// New creates a new Clock.
func New() Clock {
	return Clock{}
}

// Now returns the current time in UTC. The monotonic reading is kept so
// elapsed and ETA arithmetic stays correct across wall clock jumps.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
