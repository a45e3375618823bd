package streak

import (
	"time"

	"github.com/desertthunder/ytlearn/internal/models"
)

// NextStreak decides the streak value after a completion event or a passive check.
//
//	never active       completion -> 1, otherwise 0
//	same day           unchanged
//	next day           completion -> current+1, otherwise unchanged (grace day)
//	two or more days   completion -> 1, otherwise 0
//
// A last-active instant after now counts as the same day.
func (c Clock) NextStreak(current int, lastActiveAt models.Optional[time.Time], now time.Time, completion bool) int {
	if current < 0 {
		current = 0
	}

	last, ok := lastActiveAt.Get()
	if !ok {
		if completion {
			return 1
		}
		return 0
	}

	switch d := max(c.DaysBetween(now, last), 0); {
	case d == 0:
		return current
	case d == 1 && completion:
		return current + 1
	case d == 1:
		return current
	case completion:
		return 1
	default:
		return 0
	}
}

// NextStreak is [Clock.NextStreak] in the server's local zone.
func NextStreak(current int, lastActiveAt models.Optional[time.Time], now time.Time, completion bool) int {
	return Clock{Location: time.Local}.NextStreak(current, lastActiveAt, now, completion)
}

// ApplyCompletion advances the streak fields of l for a first-time completion at `at`.
//
// The completed-video counter is not touched; it moves through a commutative store update.
// lastActiveAt never moves backwards when events are applied late or out of order.
func (c Clock) ApplyCompletion(l *models.Ledger, at time.Time) {
	l.CurrentStreak = c.NextStreak(l.CurrentStreak, l.LastActiveAt, at, true)
	l.BestStreak = max(l.BestStreak, l.CurrentStreak)

	if last, ok := l.LastActiveAt.Get(); !ok || at.After(last) {
		l.LastActiveAt = models.Some(at)
	}
}

// ApplyDecay resets a stale streak and reports whether anything changed.
//
// Users who never completed a video, or were active yesterday or today, are left alone.
func (c Clock) ApplyDecay(l *models.Ledger, now time.Time) bool {
	last, ok := l.LastActiveAt.Get()
	if !ok || c.DaysBetween(now, last) <= 1 {
		return false
	}

	next := c.NextStreak(l.CurrentStreak, l.LastActiveAt, now, false)
	if next == l.CurrentStreak {
		return false
	}
	l.CurrentStreak = next
	return true
}
