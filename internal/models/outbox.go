package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/ytlearn/internal/shared"
)

// EventKind names the ledger change an [OutboxEvent] carries.
type EventKind string

const (
	VideoCompleted   EventKind = "video.completed"
	VideoUncompleted EventKind = "video.uncompleted"
)

// Delta is the change to the completed-video counter.
func (k EventKind) Delta() int {
	switch k {
	case VideoCompleted:
		return 1
	case VideoUncompleted:
		return -1
	default:
		return 0
	}
}

// EventStatus tracks delivery of an [OutboxEvent].
type EventStatus string

const (
	EventPending   EventStatus = "pending"
	EventProcessed EventStatus = "processed"
	EventDead      EventStatus = "dead"
)

// OutboxEvent is written in the same transaction as the completion flag
// and applied to the ledger later, at least once.
type OutboxEvent struct {
	ID          string              `json:"id"`
	Sequence    int                 `json:"sequence"`
	UserID      string              `json:"userId"`
	VideoID     string              `json:"videoId"`
	Kind        EventKind           `json:"kind"`
	OccurredAt  time.Time           `json:"occurredAt"`
	Status      EventStatus         `json:"status"`
	Attempts    int                 `json:"attempts"`
	AvailableAt time.Time           `json:"availableAt"`
	LastError   string              `json:"lastError,omitempty"`
	ProcessedAt Optional[time.Time] `json:"processedAt"`
	CreatedAt   time.Time           `json:"createdAt"`
}

// NewOutboxEvent returns a pending event due immediately.
func NewOutboxEvent(userID, videoID string, kind EventKind, occurredAt time.Time) *OutboxEvent {
	return &OutboxEvent{
		UserID:      userID,
		VideoID:     videoID,
		Kind:        kind,
		OccurredAt:  occurredAt,
		Status:      EventPending,
		AvailableAt: occurredAt,
		CreatedAt:   occurredAt,
	}
}

// Validate checks the event before it is enqueued.
func (e *OutboxEvent) Validate() error {
	if e.UserID == "" || e.VideoID == "" {
		return fmt.Errorf("%w: outbox event needs user and video ids", shared.ErrInvalidInput)
	}
	if e.Kind.Delta() == 0 {
		return fmt.Errorf("%w: unknown event kind %q", shared.ErrInvalidInput, e.Kind)
	}
	return nil
}
