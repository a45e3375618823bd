package tasks

import (
	"context"
	"database/sql"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytlearn/internal/metrics"
	"github.com/desertthunder/ytlearn/internal/models"
	"github.com/desertthunder/ytlearn/internal/repositories"
	"github.com/desertthunder/ytlearn/internal/streak"
)

// CompletionGateway flips the per-video completion flag and records the ledger change it implies.
type CompletionGateway struct {
	db          *sql.DB
	clock       streak.Clock
	logger      *log.Logger
	projector   *LedgerProjector
	applyInline bool
}

// NewCompletionGateway creates a [CompletionGateway].
//
// With applyInline the user's pending ledger events are drained right after the flag commits.
func NewCompletionGateway(db *sql.DB, clock streak.Clock, logger *log.Logger, projector *LedgerProjector, applyInline bool) *CompletionGateway {
	return &CompletionGateway{db: db, clock: clock, logger: logger, projector: projector, applyInline: applyInline}
}

// CompleteVideo sets the completion flag of videoID for userID on behalf of principal.
//
// The prior flag is read and the new one written in the same transaction.
// Only a real transition enqueues a ledger event, so repeating a request changes nothing.
// Uncompleting a video that was never started returns an unsaved not-started record.
func (g *CompletionGateway) CompleteVideo(ctx context.Context, principal, userID, videoID string, completed bool) (*models.VideoProgress, error) {
	if err := requireID("userId", userID); err != nil {
		return nil, err
	}
	if err := requireID("videoId", videoID); err != nil {
		return nil, err
	}

	var (
		record *models.VideoProgress
		event  *models.OutboxEvent
	)

	err := repositories.WithTx(ctx, g.db, func(tx *sql.Tx) error {
		user, err := authorize(ctx, tx, principal, userID)
		if err != nil {
			return err
		}

		progress := repositories.NewProgressRepository(tx)
		prior, err := progress.Get(ctx, user.ID(), videoID)
		if err != nil {
			return err
		}

		existing, found := prior.Get()
		switch {
		case !found && !completed:
			record = models.NewVideoProgress(user.ID(), videoID)
			return nil
		case found && existing.Completed == completed:
			record = existing
			return nil
		}

		now := g.clock.Current()
		was, saved, err := progress.SetCompleted(ctx, user.ID(), videoID, completed, now)
		if err != nil {
			return err
		}
		record = saved
		if was == completed {
			return nil
		}

		kind := models.VideoUncompleted
		if completed {
			kind = models.VideoCompleted
		}

		event = models.NewOutboxEvent(user.ID(), videoID, kind, now)
		return repositories.NewOutboxRepository(tx).Enqueue(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	if event == nil {
		metrics.CompletionNoops.Inc()
		g.logger.Debug("completion unchanged", "user", userID, "video", videoID, "completed", completed)
		return record, nil
	}

	metrics.CompletionTransitions.WithLabelValues(string(event.Kind)).Inc()
	g.logger.Info("completion recorded", "user", userID, "video", videoID, "kind", event.Kind, "event", event.ID)

	if g.applyInline && g.projector != nil {
		if _, err := g.projector.Drain(ctx, userID); err != nil {
			g.logger.Warn("ledger update deferred to worker", "user", userID, "event", event.ID, "error", err)
		}
	}
	return record, nil
}
