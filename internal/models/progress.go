package models

import (
	"fmt"
	"math"
	"time"

	"github.com/desertthunder/ytlearn/internal/shared"
)

// ProgressState is the per-video state of the completion state machine.
type ProgressState int

const (
	NotStarted ProgressState = iota
	InProgress
	Completed
)

func (s ProgressState) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case InProgress:
		return "in-progress"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// VideoProgress is the watch state of one video for one user.
type VideoProgress struct {
	ID            string    `json:"id,omitempty"`
	UserID        string    `json:"userId"`
	VideoID       string    `json:"videoId"`
	Completed     bool      `json:"completed"`
	WatchPosition float64   `json:"watchPosition"`
	Notes         string    `json:"notes,omitempty"`
	LastWatched   time.Time `json:"lastWatched"`
	CreatedAt     time.Time `json:"-"`
	UpdatedAt     time.Time `json:"-"`
}

// NewVideoProgress returns an unsaved, not-started record.
func NewVideoProgress(userID, videoID string) *VideoProgress {
	return &VideoProgress{UserID: userID, VideoID: videoID}
}

// Persisted reports whether the record exists in the datastore.
func (p *VideoProgress) Persisted() bool {
	return p.ID != ""
}

// State maps the record onto the completion state machine.
func (p *VideoProgress) State() ProgressState {
	switch {
	case p.Completed:
		return Completed
	case p.Persisted():
		return InProgress
	default:
		return NotStarted
	}
}

// Validate checks identifiers and the playback offset.
func (p *VideoProgress) Validate() error {
	if p.UserID == "" || p.VideoID == "" {
		return fmt.Errorf("%w: user id and video id are required", shared.ErrInvalidInput)
	}
	return ValidatePosition(p.WatchPosition)
}

// ValidatePosition rejects negative and non-finite playback offsets.
func ValidatePosition(seconds float64) error {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return fmt.Errorf("%w: watch position must be a non-negative number of seconds", shared.ErrInvalidInput)
	}
	return nil
}

// Video describes one entry of a linked playlist.
type Video struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Duration     string `json:"duration"`
	ThumbnailURL string `json:"thumbnail"`
	Position     int    `json:"position"`
}
