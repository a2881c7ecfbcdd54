package service

import "time"

// Clock supplies the current time. Services take it as a constructor
// dependency so tests can freeze time.
type Clock func() time.Time

// SystemClock is the production clock.
func SystemClock() time.Time {
	return time.Now()
}
