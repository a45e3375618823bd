package streak

import (
	"math"

	"github.com/desertthunder/ytlearn/internal/models"
)

// Snapshot is the input achievements are judged against.
type Snapshot struct {
	Ledger      models.Ledger
	TotalVideos int
}

// Achievement is one badge and whether the snapshot earns it.
type Achievement struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Unlocked    bool   `json:"unlocked"`
}

type rule struct {
	key, title, description string
	check                   func(Snapshot) bool
}

var catalog = []rule{
	{
		key:         "first-streak",
		title:       "First Streak",
		description: "Complete videos on 3 days in a row",
		check: func(s Snapshot) bool {
			return s.Ledger.BestStreak >= 3 || s.Ledger.CurrentStreak >= 3
		},
	},
	{
		key:         "halfway",
		title:       "Halfway There",
		description: "Complete half of the playlist",
		check: func(s Snapshot) bool {
			return s.TotalVideos > 0 && float64(s.Ledger.TotalVideosCompleted)/float64(s.TotalVideos) >= 0.5
		},
	},
	{
		key:         "master",
		title:       "Playlist Master",
		description: "Complete every video in the playlist",
		check: func(s Snapshot) bool {
			return s.TotalVideos > 0 && s.Ledger.TotalVideosCompleted == s.TotalVideos
		},
	},
}

// Evaluate returns every achievement in catalog order.
func Evaluate(s Snapshot) []Achievement {
	out := make([]Achievement, 0, len(catalog))
	for _, r := range catalog {
		out = append(out, Achievement{Key: r.key, Title: r.title, Description: r.description, Unlocked: r.check(s)})
	}
	return out
}

// CompletionPercent rounds completed/total to a whole percentage in [0, 100].
func CompletionPercent(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	pct := int(math.Round(float64(completed) / float64(total) * 100))
	return min(pct, 100)
}
