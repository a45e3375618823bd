package tasks

import (
	"fmt"

	"github.com/desertthunder/ytlearn/internal/models"
)

// WorkerUpdate represents a progress event from the outbox worker.
//
// Used to send real-time updates to the CLI for display.
type WorkerUpdate struct {
	Phase   Phase               // Worker phase
	Step    int                 // Current event within the batch
	Total   int                 // Events in the batch
	Message string              // Human-readable message for display
	Event   *models.OutboxEvent // Event the update is about, if any
	Err     error               // Failure, for Failed and Dead phases
}

// Worker phase enumeration
type Phase int

const (
	Polling Phase = iota
	Applied
	Skipped
	Failed
	Dead
	Idle
)

func (p Phase) String() string {
	switch p {
	case Polling:
		return "polling"
	case Applied:
		return "applied"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	case Dead:
		return "dead"
	case Idle:
		return "idle"
	default:
		return ""
	}
}

func pollingUpdate(total int) WorkerUpdate {
	return WorkerUpdate{Phase: Polling, Total: total, Message: fmt.Sprintf("Found %d due ledger events", total)}
}

func appliedUpdate(step, total int, e *models.OutboxEvent) WorkerUpdate {
	return WorkerUpdate{
		Phase:   Applied,
		Step:    step,
		Total:   total,
		Event:   e,
		Message: fmt.Sprintf("Applied %s for video %s", e.Kind, e.VideoID),
	}
}

func skippedUpdate(step, total int, e *models.OutboxEvent) WorkerUpdate {
	return WorkerUpdate{
		Phase:   Skipped,
		Step:    step,
		Total:   total,
		Event:   e,
		Message: fmt.Sprintf("Event %s was already handled", e.ID),
	}
}

func failedUpdate(step, total int, e *models.OutboxEvent, err error, dead bool) WorkerUpdate {
	phase, verb := Failed, "will retry"
	if dead {
		phase, verb = Dead, "giving up"
	}
	return WorkerUpdate{
		Phase:   phase,
		Step:    step,
		Total:   total,
		Event:   e,
		Err:     err,
		Message: fmt.Sprintf("Event %s failed (%s): %v", e.ID, verb, err),
	}
}

func idleUpdate() WorkerUpdate {
	return WorkerUpdate{Phase: Idle, Message: "No due ledger events"}
}

// sendProgress sends a progress update to the channel if it's not nil, without blocking.
func sendProgress(ch chan<- WorkerUpdate, update WorkerUpdate) {
	if ch == nil {
		return
	}
	select {
	case ch <- update:
	default:
	}
}
