// package streak holds the day arithmetic and decision rules behind learning streaks.
//
// Everything here is pure: no I/O, no failures. Callers persist the results.
package streak

import (
	"time"
)

// Clock fixes the calendar used for day boundaries and the source of "now".
type Clock struct {
	Location *time.Location
	Now      func() time.Time
}

// NewClock returns a [Clock] in loc, defaulting to [time.Local].
func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return Clock{Location: loc, Now: time.Now}
}

// FixedClock always reports now, in now's location.
func FixedClock(now time.Time) Clock {
	return Clock{Location: now.Location(), Now: func() time.Time { return now }}
}

// Current returns the clock's notion of now.
func (c Clock) Current() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c Clock) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// DaysBetween counts calendar days from b to a, ignoring time of day.
//
// Positive when a falls on a later day than b.
func (c Clock) DaysBetween(a, b time.Time) int {
	loc := c.location()
	return civilDay(a.In(loc)) - civilDay(b.In(loc))
}

// DaysBetween is [Clock.DaysBetween] in the server's local zone.
func DaysBetween(a, b time.Time) int {
	return Clock{Location: time.Local}.DaysBetween(a, b)
}

// civilDay numbers the calendar date of t, independent of DST length changes.
func civilDay(t time.Time) int {
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int(midnight.Unix() / 86400)
}
