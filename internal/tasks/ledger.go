package tasks

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytlearn/internal/metrics"
	"github.com/desertthunder/ytlearn/internal/models"
	"github.com/desertthunder/ytlearn/internal/repositories"
	"github.com/desertthunder/ytlearn/internal/shared"
	"github.com/desertthunder/ytlearn/internal/streak"
)

// LedgerProjector applies outbox events to the user's ledger.
type LedgerProjector struct {
	db     *sql.DB
	clock  streak.Clock
	logger *log.Logger
}

// NewLedgerProjector creates a [LedgerProjector].
func NewLedgerProjector(db *sql.DB, clock streak.Clock, logger *log.Logger) *LedgerProjector {
	return &LedgerProjector{db: db, clock: clock, logger: logger}
}

// Apply applies one event and reports whether it changed the ledger.
//
// The event is re-read inside the transaction; one that is no longer pending is skipped,
// which makes redelivery harmless. The counter moves by the event's delta.
// Completions also advance the streak from the event's own timestamp.
func (p *LedgerProjector) Apply(ctx context.Context, eventID string) (bool, error) {
	var event *models.OutboxEvent

	err := repositories.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		outbox := repositories.NewOutboxRepository(tx)

		e, err := outbox.Get(ctx, eventID)
		if err != nil {
			return err
		}
		if e.Status != models.EventPending {
			return nil
		}

		users := repositories.NewUserRepository(tx)
		if err := users.AdjustCompleted(ctx, e.UserID, e.Kind.Delta()); err != nil {
			return err
		}

		if e.Kind == models.VideoCompleted {
			user, err := users.Get(ctx, e.UserID)
			if err != nil {
				return err
			}

			ledger := user.Ledger()
			p.clock.ApplyCompletion(&ledger, e.OccurredAt)
			if err := users.SaveStreak(ctx, e.UserID, ledger); err != nil {
				return err
			}
		}

		if err := outbox.MarkProcessed(ctx, e.ID, p.clock.Current()); err != nil {
			return err
		}
		event = e
		return nil
	})
	if err != nil {
		return false, err
	}
	if event == nil {
		return false, nil
	}

	metrics.OutboxApplied.WithLabelValues(string(event.Kind)).Inc()
	metrics.OutboxLag.Observe(max(p.clock.Current().Sub(event.OccurredAt), 0).Seconds())
	p.logger.Debug("ledger event applied", "event", event.ID, "user", event.UserID, "kind", event.Kind)
	return true, nil
}

// Drain applies the user's pending events in order and returns how many it applied.
//
// Stops at the first failure; the rest stay pending for the worker.
func (p *LedgerProjector) Drain(ctx context.Context, userID string) (int, error) {
	events, err := repositories.NewOutboxRepository(p.db).PendingForUser(ctx, userID)
	if err != nil {
		return 0, shared.Classify(err)
	}

	applied := 0
	for _, e := range events {
		ok, err := p.Apply(ctx, e.ID)
		if err != nil {
			return applied, err
		}
		if ok {
			applied++
		}
	}
	return applied, nil
}

// Backoff returns the delay before retry number attempts: base * 2^(attempts-1), capped at ceiling.
func Backoff(attempts int, base, ceiling time.Duration) time.Duration {
	if attempts < 1 || base <= 0 {
		return 0
	}

	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if ceiling > 0 && delay >= ceiling {
			return ceiling
		}
	}
	if ceiling > 0 && delay > ceiling {
		return ceiling
	}
	return delay
}

// isGone reports whether a bookkeeping update missed because another delivery won.
func isGone(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}
