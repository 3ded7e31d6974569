// Package clock abstracts the timers the widget runtime schedules
// (notification stagger, reveal and exit delays) so tests can drive
// them deterministically.
package clock

import "time"

// Clock is the subset of the time package the runtime uses. Production
// code injects Real(); tests inject Fake().
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for d, then calls f. If d <= 0, f runs
	// immediately (in a new goroutine for Real, synchronously for Fake).
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the Timer from firing. Returns false if it already
// fired or was stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{stopFunc: t.Stop}
}
