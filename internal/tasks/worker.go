package tasks

import (
	"context"
	"database/sql"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytlearn/internal/metrics"
	"github.com/desertthunder/ytlearn/internal/repositories"
	"github.com/desertthunder/ytlearn/internal/shared"
	"github.com/desertthunder/ytlearn/internal/streak"
	"golang.org/x/time/rate"
)

// WorkerOpts configures an [OutboxWorker]. Zero fields take the defaults below.
type WorkerOpts struct {
	BatchSize    int
	PollInterval time.Duration
	RateLimit    float64 // events per second, zero or less disables the limit
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	Updates      chan<- WorkerUpdate
}

const (
	DefaultBatchSize    = 50
	DefaultPollInterval = 2 * time.Second
	DefaultMaxAttempts  = 8
	DefaultBaseBackoff  = time.Second
	DefaultMaxBackoff   = 5 * time.Minute
)

func (o WorkerOpts) withDefaults() WorkerOpts {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = DefaultBaseBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = DefaultMaxBackoff
	}
	return o
}

// WorkerResult summarizes one polling pass.
type WorkerResult struct {
	Due     int `json:"due"`
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
	Retried int `json:"retried"`
	Dead    int `json:"dead"`
}

// OutboxWorker delivers pending ledger events at least once.
type OutboxWorker struct {
	db      *sql.DB
	clock   streak.Clock
	logger  *log.Logger
	opts    WorkerOpts
	limiter *rate.Limiter
	apply   func(ctx context.Context, eventID string) (bool, error)
}

// NewOutboxWorker creates an [OutboxWorker] that applies events through projector.
func NewOutboxWorker(db *sql.DB, projector *LedgerProjector, clock streak.Clock, logger *log.Logger, opts WorkerOpts) *OutboxWorker {
	opts = opts.withDefaults()

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	return &OutboxWorker{
		db:      db,
		clock:   clock,
		logger:  logger,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		apply:   projector.Apply,
	}
}

// Run polls until ctx is cancelled. Pass errors are logged and the loop continues.
func (w *OutboxWorker) Run(ctx context.Context) error {
	w.logger.Info("outbox worker started", "interval", w.opts.PollInterval, "batch", w.opts.BatchSize)

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("outbox pass failed", "error", err)
		}

		select {
		case <-ctx.Done():
			w.logger.Info("outbox worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce applies one batch of due events.
//
// A failed event is retried after [Backoff]; it is marked dead once it has failed
// MaxAttempts times or the failure cannot succeed on retry.
func (w *OutboxWorker) RunOnce(ctx context.Context) (WorkerResult, error) {
	var result WorkerResult

	outbox := repositories.NewOutboxRepository(w.db)
	due, err := outbox.Due(ctx, w.clock.Current(), w.opts.BatchSize)
	if err != nil {
		return result, shared.Classify(err)
	}

	result.Due = len(due)
	if len(due) == 0 {
		sendProgress(w.opts.Updates, idleUpdate())
		return result, nil
	}
	sendProgress(w.opts.Updates, pollingUpdate(len(due)))

	for i, e := range due {
		if err := w.limiter.Wait(ctx); err != nil {
			return result, err
		}

		applied, err := w.apply(ctx, e.ID)
		if err == nil {
			if applied {
				result.Applied++
				sendProgress(w.opts.Updates, appliedUpdate(i+1, len(due), e))
			} else {
				result.Skipped++
				sendProgress(w.opts.Updates, skippedUpdate(i+1, len(due), e))
			}
			continue
		}

		attempts := e.Attempts + 1
		dead := attempts >= w.opts.MaxAttempts || !shared.IsRetryable(err)
		availableAt := w.clock.Current().Add(Backoff(attempts, w.opts.BaseBackoff, w.opts.MaxBackoff))

		if markErr := outbox.MarkFailed(ctx, e.ID, attempts, availableAt, err, dead); markErr != nil {
			if isGone(markErr) {
				result.Skipped++
				continue
			}
			return result, shared.Classify(markErr)
		}

		if dead {
			result.Dead++
			metrics.OutboxFailures.WithLabelValues("dead").Inc()
			w.logger.Error("ledger event dead", "event", e.ID, "user", e.UserID, "attempts", attempts, "error", err)
		} else {
			result.Retried++
			metrics.OutboxFailures.WithLabelValues("retry").Inc()
			w.logger.Warn("ledger event failed", "event", e.ID, "attempts", attempts, "retry_at", availableAt, "error", err)
		}
		sendProgress(w.opts.Updates, failedUpdate(i+1, len(due), e, err, dead))
	}
	return result, nil
}

// Requeue makes every dead event due again and returns how many were revived.
func (w *OutboxWorker) Requeue(ctx context.Context) (int64, error) {
	n, err := repositories.NewOutboxRepository(w.db).Requeue(ctx, w.clock.Current())
	if err != nil {
		return 0, shared.Classify(err)
	}
	w.logger.Info("requeued dead ledger events", "count", n)
	return n, nil
}

// Stats counts events by status.
func (w *OutboxWorker) Stats(ctx context.Context) (repositories.OutboxStats, error) {
	s, err := repositories.NewOutboxRepository(w.db).Stats(ctx)
	return s, shared.Classify(err)
}
