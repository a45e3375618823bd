package streak

import (
	"math/rand"
	"testing"
	"time"

	"github.com/desertthunder/ytlearn/internal/models"
)

var utc = Clock{Location: time.UTC}

func day(offset int, hour int) time.Time {
	return time.Date(2025, 7, 1+offset, hour, 0, 0, 0, time.UTC)
}

func TestDaysBetween(t *testing.T) {
	tc := []struct {
		name string
		a, b time.Time
		want int
	}{
		{name: "same instant", a: day(0, 12), b: day(0, 12), want: 0},
		{name: "same day different hours", a: day(0, 23), b: day(0, 0), want: 0},
		{name: "just past midnight", a: time.Date(2025, 7, 2, 0, 0, 1, 0, time.UTC), b: day(0, 23), want: 1},
		{name: "three days later", a: day(3, 1), b: day(0, 22), want: 3},
		{name: "earlier instant is negative", a: day(0, 12), b: day(2, 12), want: -2},
		{name: "month boundary", a: time.Date(2025, 8, 1, 8, 0, 0, 0, time.UTC), b: time.Date(2025, 7, 31, 20, 0, 0, 0, time.UTC), want: 1},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := utc.DaysBetween(tt.a, tt.b); got != tt.want {
				t.Errorf("DaysBetween() = %d, want %d", got, tt.want)
			}
		})
	}

	t.Run("uses the clock's calendar", func(t *testing.T) {
		tokyo := time.FixedZone("JST", 9*60*60)
		// 20:00 UTC on July 1 is already July 2 in Tokyo
		a := time.Date(2025, 7, 1, 20, 0, 0, 0, time.UTC)
		b := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)

		if got := utc.DaysBetween(a, b); got != 0 {
			t.Errorf("UTC days = %d, want 0", got)
		}
		if got := (Clock{Location: tokyo}).DaysBetween(a, b); got != 1 {
			t.Errorf("JST days = %d, want 1", got)
		}
	})

	t.Run("daylight saving change is one day", func(t *testing.T) {
		ny, err := time.LoadLocation("America/New_York")
		if err != nil {
			t.Skipf("tzdata unavailable: %v", err)
		}
		clock := Clock{Location: ny}
		before := time.Date(2025, 3, 8, 23, 30, 0, 0, ny)
		after := time.Date(2025, 3, 9, 23, 30, 0, 0, ny)

		if got := clock.DaysBetween(after, before); got != 1 {
			t.Errorf("DaysBetween across DST = %d, want 1", got)
		}
	})
}

func TestNextStreak(t *testing.T) {
	last := models.Some(day(0, 9))

	tc := []struct {
		name       string
		current    int
		last       models.Optional[time.Time]
		now        time.Time
		completion bool
		want       int
	}{
		{name: "never active completion", current: 0, last: models.None[time.Time](), now: day(0, 9), completion: true, want: 1},
		{name: "never active check", current: 0, last: models.None[time.Time](), now: day(0, 9), completion: false, want: 0},
		{name: "same day completion", current: 3, last: last, now: day(0, 22), completion: true, want: 3},
		{name: "same day check", current: 3, last: last, now: day(0, 22), completion: false, want: 3},
		{name: "next day completion", current: 3, last: last, now: day(1, 1), completion: true, want: 4},
		{name: "next day grace", current: 3, last: last, now: day(1, 23), completion: false, want: 3},
		{name: "gap completion restarts", current: 3, last: last, now: day(2, 8), completion: true, want: 1},
		{name: "gap check breaks", current: 3, last: last, now: day(5, 8), completion: false, want: 0},
		{name: "clock skew counts as same day", current: 3, last: models.Some(day(2, 9)), now: day(0, 9), completion: true, want: 3},
		{name: "negative current clamps", current: -2, last: last, now: day(1, 9), completion: true, want: 1},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := utc.NextStreak(tt.current, tt.last, tt.now, tt.completion); got != tt.want {
				t.Errorf("NextStreak() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNextStreakProperties(t *testing.T) {
	base := day(0, 15)
	never := models.None[time.Time]()
	at := models.Some(base)

	for s := 0; s <= 30; s++ {
		if got := utc.NextStreak(s, never, base, true); got != 1 {
			t.Errorf("s=%d: never active completion = %d, want 1", s, got)
		}
		if got := utc.NextStreak(s, never, base, false); got != 0 {
			t.Errorf("s=%d: never active check = %d, want 0", s, got)
		}
		if got := utc.NextStreak(s, at, base, true); got != s {
			t.Errorf("s=%d: same instant completion = %d, want %d", s, got, s)
		}
		if got := utc.NextStreak(s, at, base, false); got != s {
			t.Errorf("s=%d: same instant check = %d, want %d", s, got, s)
		}
		if got := utc.NextStreak(s, at, base.AddDate(0, 0, 1), true); got != s+1 {
			t.Errorf("s=%d: next day completion = %d, want %d", s, got, s+1)
		}
		if got := utc.NextStreak(s, at, base.AddDate(0, 0, 1), false); got != s {
			t.Errorf("s=%d: next day check = %d, want %d", s, got, s)
		}

		for d := 2; d <= 10; d++ {
			now := base.AddDate(0, 0, d)
			if got := utc.NextStreak(s, at, now, true); got != 1 {
				t.Errorf("s=%d d=%d: completion = %d, want 1", s, d, got)
			}
			if got := utc.NextStreak(s, at, now, false); got != 0 {
				t.Errorf("s=%d d=%d: check = %d, want 0", s, d, got)
			}
		}
	}
}

func TestApplyCompletion(t *testing.T) {
	t.Run("new learner", func(t *testing.T) {
		var l models.Ledger
		now := day(0, 10)
		utc.ApplyCompletion(&l, now)

		if l.CurrentStreak != 1 || l.BestStreak != 1 {
			t.Errorf("expected streak 1/1, got %d/%d", l.CurrentStreak, l.BestStreak)
		}
		if got, ok := l.LastActiveAt.Get(); !ok || !got.Equal(now) {
			t.Errorf("expected lastActiveAt %v, got %v", now, l.LastActiveAt)
		}
	})

	t.Run("continues from yesterday", func(t *testing.T) {
		l := models.Ledger{CurrentStreak: 4, BestStreak: 4, LastActiveAt: models.Some(day(0, 20))}
		utc.ApplyCompletion(&l, day(1, 7))

		if l.CurrentStreak != 5 || l.BestStreak != 5 {
			t.Errorf("expected streak 5/5, got %d/%d", l.CurrentStreak, l.BestStreak)
		}
	})

	t.Run("keeps a higher best", func(t *testing.T) {
		l := models.Ledger{CurrentStreak: 2, BestStreak: 9, LastActiveAt: models.Some(day(0, 20))}
		utc.ApplyCompletion(&l, day(4, 7))

		if l.CurrentStreak != 1 || l.BestStreak != 9 {
			t.Errorf("expected streak 1/9, got %d/%d", l.CurrentStreak, l.BestStreak)
		}
	})

	t.Run("late event keeps lastActiveAt", func(t *testing.T) {
		latest := day(3, 12)
		l := models.Ledger{CurrentStreak: 2, BestStreak: 2, LastActiveAt: models.Some(latest)}
		utc.ApplyCompletion(&l, day(2, 12))

		if l.CurrentStreak != 2 {
			t.Errorf("late event should not change streak, got %d", l.CurrentStreak)
		}
		if got, _ := l.LastActiveAt.Get(); !got.Equal(latest) {
			t.Errorf("lastActiveAt moved backwards to %v", got)
		}
	})
}

func TestApplyDecay(t *testing.T) {
	tc := []struct {
		name        string
		ledger      models.Ledger
		now         time.Time
		wantChanged bool
		wantCurrent int
	}{
		{name: "never active", ledger: models.Ledger{}, now: day(9, 0), wantChanged: false, wantCurrent: 0},
		{name: "active today", ledger: models.Ledger{CurrentStreak: 4, BestStreak: 4, LastActiveAt: models.Some(day(0, 8))}, now: day(0, 23), wantCurrent: 4},
		{name: "grace day", ledger: models.Ledger{CurrentStreak: 4, BestStreak: 4, LastActiveAt: models.Some(day(0, 8))}, now: day(1, 23), wantCurrent: 4},
		{name: "stale", ledger: models.Ledger{CurrentStreak: 4, BestStreak: 6, TotalVideosCompleted: 11, LastActiveAt: models.Some(day(0, 8))}, now: day(3, 9), wantChanged: true, wantCurrent: 0},
		{name: "already zero", ledger: models.Ledger{CurrentStreak: 0, BestStreak: 6, LastActiveAt: models.Some(day(0, 8))}, now: day(3, 9), wantCurrent: 0},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			l := tt.ledger
			changed := utc.ApplyDecay(&l, tt.now)

			if changed != tt.wantChanged {
				t.Errorf("changed = %v, want %v", changed, tt.wantChanged)
			}
			if l.CurrentStreak != tt.wantCurrent {
				t.Errorf("current = %d, want %d", l.CurrentStreak, tt.wantCurrent)
			}
			if l.BestStreak != tt.ledger.BestStreak || l.TotalVideosCompleted != tt.ledger.TotalVideosCompleted {
				t.Error("decay must not touch best streak or total")
			}
		})
	}
}

func TestBestStreakNeverDecreases(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var l models.Ledger
	now := day(0, 0)

	for i := 0; i < 2000; i++ {
		now = now.Add(time.Duration(rng.Intn(60)) * time.Hour)
		before := l.BestStreak

		if rng.Intn(3) == 0 {
			utc.ApplyDecay(&l, now)
		} else {
			utc.ApplyCompletion(&l, now)
		}

		if l.BestStreak < before {
			t.Fatalf("step %d: best streak decreased from %d to %d", i, before, l.BestStreak)
		}
		if err := l.Validate(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
}

func TestAchievements(t *testing.T) {
	find := func(list []Achievement, key string) Achievement {
		for _, a := range list {
			if a.Key == key {
				return a
			}
		}
		t.Fatalf("achievement %s missing", key)
		return Achievement{}
	}

	t.Run("empty playlist unlocks nothing", func(t *testing.T) {
		for _, a := range Evaluate(Snapshot{}) {
			if a.Unlocked {
				t.Errorf("%s should be locked", a.Key)
			}
		}
	})

	t.Run("thresholds", func(t *testing.T) {
		list := Evaluate(Snapshot{Ledger: models.Ledger{CurrentStreak: 0, BestStreak: 3, TotalVideosCompleted: 5}, TotalVideos: 10})

		if !find(list, "first-streak").Unlocked {
			t.Error("best streak of 3 should unlock first-streak")
		}
		if !find(list, "halfway").Unlocked {
			t.Error("5 of 10 should unlock halfway")
		}
		if find(list, "master").Unlocked {
			t.Error("5 of 10 should not unlock master")
		}
	})

	t.Run("master", func(t *testing.T) {
		list := Evaluate(Snapshot{Ledger: models.Ledger{TotalVideosCompleted: 4}, TotalVideos: 4})
		if !find(list, "master").Unlocked {
			t.Error("all videos should unlock master")
		}
	})
}

func TestCompletionPercent(t *testing.T) {
	tc := []struct {
		completed, total, want int
	}{
		{0, 0, 0},
		{3, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{10, 10, 100},
		{12, 10, 100},
	}

	for _, tt := range tc {
		if got := CompletionPercent(tt.completed, tt.total); got != tt.want {
			t.Errorf("CompletionPercent(%d, %d) = %d, want %d", tt.completed, tt.total, got, tt.want)
		}
	}
}
