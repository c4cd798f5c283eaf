package engine

import "time"

// Clock schedules deferred callbacks.
//
// AfterFunc runs f once d has elapsed and returns a stop function that
// reports whether the callback was still pending. The shape matches
// time.AfterFunc so a fake clock can drive debounce tests.
type Clock interface {
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

// SystemClock is the wall clock.
type SystemClock struct{}

// AfterFunc wraps time.AfterFunc.
func (SystemClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}
