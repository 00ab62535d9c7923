// Package clock abstracts time so session timers are deterministic in tests.
package clock

import "time"

// Clock supplies the current time and schedules callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending callback that can be cancelled. Stop reports whether the
// callback was prevented from running.
type Timer interface {
	Stop() bool
}

type systemClock struct{}

// System returns a Clock backed by the wall clock.
func System() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
