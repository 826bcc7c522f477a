// Package clock abstracts time retrieval so pipeline components that stamp
// rows (dispatch logs, deliveries, scheduled tasks) can be tested against a
// frozen instant.
package clock

import "time"

// Clock yields the current time.
type Clock interface {
	Now() time.Time
}

// RealClock delegates to the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// FixedClock reports the same instant on every call.
type FixedClock struct{ instant time.Time }

// NewFixed pins a clock to the given instant.
func NewFixed(instant time.Time) FixedClock { return FixedClock{instant: instant} }

func (f FixedClock) Now() time.Time { return f.instant }
