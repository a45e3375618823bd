package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/ytlearn/internal/models"
	"github.com/desertthunder/ytlearn/internal/shared"
)

const outboxColumns = `id, sequence, user_id, video_id, kind, occurred_at, status, attempts, available_at, last_error, processed_at, created_at`

// OutboxRepository persists [models.OutboxEvent] rows.
type OutboxRepository struct {
	db DBTX
}

// OutboxStats counts events per status.
type OutboxStats struct {
	Pending   int `json:"pending"`
	Processed int `json:"processed"`
	Dead      int `json:"dead"`
}

// NewOutboxRepository creates a new [OutboxRepository] bound to the pool or a transaction
func NewOutboxRepository(db DBTX) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Enqueue stores e as pending. Call it in the transaction that records the intent.
func (r *OutboxRepository) Enqueue(ctx context.Context, e *models.OutboxEvent) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "outbox_events")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	query := `
		INSERT INTO outbox_events (id, sequence, user_id, video_id, kind, occurred_at, status, attempts, available_at, last_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 'pending', 0, ?, '', ?)
	`

	_, err = r.db.ExecContext(ctx, query, id, sequence, e.UserID, e.VideoID, string(e.Kind),
		e.OccurredAt.UTC(), e.AvailableAt.UTC(), e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	e.ID = id
	e.Sequence = sequence
	e.Status = models.EventPending
	return nil
}

// Get returns one event by id.
func (r *OutboxRepository) Get(ctx context.Context, id string) (*models.OutboxEvent, error) {
	query := `SELECT ` + outboxColumns + ` FROM outbox_events WHERE id = ?`

	e, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "outbox event", id)
	}
	return e, nil
}

// Due returns pending events available at now, oldest first.
func (r *OutboxRepository) Due(ctx context.Context, now time.Time, limit int) ([]*models.OutboxEvent, error) {
	query := `SELECT ` + outboxColumns + ` FROM outbox_events
		WHERE status = 'pending' AND available_at <= ?
		ORDER BY sequence ASC
		LIMIT ?`

	return r.query(ctx, query, now.UTC(), limit)
}

// PendingForUser returns the user's pending events in order, ignoring backoff.
func (r *OutboxRepository) PendingForUser(ctx context.Context, userID string) ([]*models.OutboxEvent, error) {
	query := `SELECT ` + outboxColumns + ` FROM outbox_events
		WHERE user_id = ? AND status = 'pending'
		ORDER BY sequence ASC`

	return r.query(ctx, query, userID)
}

// BlockingForUser counts the user's events that have not reached the ledger yet.
// Dead events count until they are requeued or dropped.
func (r *OutboxRepository) BlockingForUser(ctx context.Context, userID string) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM outbox_events WHERE user_id = ? AND status IN ('pending', 'dead')`

	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count outbox events: %w", err)
	}
	return n, nil
}

// MarkProcessed records a successful application.
func (r *OutboxRepository) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE outbox_events SET status = 'processed', processed_at = ?, last_error = '' WHERE id = ? AND status = 'pending'`

	res, err := r.db.ExecContext(ctx, query, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event processed: %w", err)
	}
	return affectOne(res, "pending outbox event", id)
}

// MarkFailed records a failed attempt and when to try again; dead events are no longer due.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, attempts int, availableAt time.Time, cause error, dead bool) error {
	status := models.EventPending
	if dead {
		status = models.EventDead
	}

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	query := `UPDATE outbox_events SET status = ?, attempts = ?, available_at = ?, last_error = ? WHERE id = ? AND status = 'pending'`

	res, err := r.db.ExecContext(ctx, query, string(status), attempts, availableAt.UTC(), msg, id)
	if err != nil {
		return fmt.Errorf("failed to record outbox failure: %w", err)
	}
	return affectOne(res, "pending outbox event", id)
}

// Requeue makes dead events pending again, due at now. Returns how many were revived.
func (r *OutboxRepository) Requeue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE outbox_events SET status = 'pending', attempts = 0, available_at = ? WHERE status = 'dead'`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to requeue outbox events: %w", err)
	}
	return res.RowsAffected()
}

// DeletePendingForUser drops intent that no longer applies (the user switched playlists).
func (r *OutboxRepository) DeletePendingForUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM outbox_events WHERE user_id = ? AND status IN ('pending', 'dead')`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete outbox events: %w", err)
	}
	return res.RowsAffected()
}

// Stats counts events by status.
func (r *OutboxRepository) Stats(ctx context.Context) (OutboxStats, error) {
	var s OutboxStats

	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM outbox_events GROUP BY status`)
	if err != nil {
		return s, fmt.Errorf("failed to query outbox stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return s, fmt.Errorf("failed to scan outbox stats: %w", err)
		}
		switch models.EventStatus(status) {
		case models.EventPending:
			s.Pending = n
		case models.EventProcessed:
			s.Processed = n
		case models.EventDead:
			s.Dead = n
		}
	}
	return s, rows.Err()
}

func (r *OutboxRepository) query(ctx context.Context, query string, args ...any) ([]*models.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*models.OutboxEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func scanEvent(row rowScanner) (*models.OutboxEvent, error) {
	var (
		e           models.OutboxEvent
		kind        string
		status      string
		processedAt sql.NullTime
	)

	err := row.Scan(&e.ID, &e.Sequence, &e.UserID, &e.VideoID, &kind, &e.OccurredAt, &status,
		&e.Attempts, &e.AvailableAt, &e.LastError, &processedAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}

	e.Kind = models.EventKind(kind)
	e.Status = models.EventStatus(status)
	e.ProcessedAt = fromNullTime(processedAt)
	return &e, nil
}
