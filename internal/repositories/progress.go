package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/ytlearn/internal/models"
	"github.com/desertthunder/ytlearn/internal/shared"
)

const progressColumns = `id, user_id, video_id, completed, watch_position, notes, last_watched, created_at, updated_at`

// ProgressRepository persists [models.VideoProgress], one row per (video, user).
type ProgressRepository struct {
	db DBTX
}

// NewProgressRepository creates a new [ProgressRepository] bound to the pool or a transaction
func NewProgressRepository(db DBTX) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Get returns the record for (userID, videoID), or empty when the video was never touched.
func (r *ProgressRepository) Get(ctx context.Context, userID, videoID string) (models.Optional[*models.VideoProgress], error) {
	query := `SELECT ` + progressColumns + ` FROM video_progress WHERE user_id = ? AND video_id = ?`

	p, err := scanProgress(r.db.QueryRowContext(ctx, query, userID, videoID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.None[*models.VideoProgress](), nil
	}
	if err != nil {
		return models.None[*models.VideoProgress](), fmt.Errorf("failed to query progress: %w", err)
	}
	return models.Some(p), nil
}

// SetCompleted upserts the completion flag and returns the flag as it was before the write.
//
// Read and write share the receiver's transaction, so the returned value is the state the flip was based on.
func (r *ProgressRepository) SetCompleted(ctx context.Context, userID, videoID string, completed bool, at time.Time) (bool, *models.VideoProgress, error) {
	prior, err := r.Get(ctx, userID, videoID)
	if err != nil {
		return false, nil, err
	}

	was := false
	if p, ok := prior.Get(); ok {
		was = p.Completed
	}

	query := `
		INSERT INTO video_progress (id, user_id, video_id, completed, watch_position, notes, last_watched, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, '', ?, ?, ?)
		ON CONFLICT (video_id, user_id) DO UPDATE SET
			completed = excluded.completed,
			last_watched = excluded.last_watched,
			updated_at = excluded.updated_at
	`

	at = at.UTC()
	if _, err := r.db.ExecContext(ctx, query, shared.GenerateID(), userID, videoID, completed, at, at, at); err != nil {
		return was, nil, fmt.Errorf("failed to save completion: %w", err)
	}

	saved, err := r.Get(ctx, userID, videoID)
	if err != nil {
		return was, nil, err
	}
	p, ok := saved.Get()
	if !ok {
		return was, nil, fmt.Errorf("%w: progress vanished after upsert", shared.ErrUnexpected)
	}
	return was, p, nil
}

// SavePosition upserts the playback offset without touching completion.
func (r *ProgressRepository) SavePosition(ctx context.Context, userID, videoID string, seconds float64, at time.Time) (*models.VideoProgress, error) {
	if err := models.ValidatePosition(seconds); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO video_progress (id, user_id, video_id, completed, watch_position, notes, last_watched, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, '', ?, ?, ?)
		ON CONFLICT (video_id, user_id) DO UPDATE SET
			watch_position = excluded.watch_position,
			last_watched = excluded.last_watched,
			updated_at = excluded.updated_at
	`

	at = at.UTC()
	if _, err := r.db.ExecContext(ctx, query, shared.GenerateID(), userID, videoID, seconds, at, at, at); err != nil {
		return nil, fmt.Errorf("failed to save position: %w", err)
	}

	saved, err := r.Get(ctx, userID, videoID)
	if err != nil {
		return nil, err
	}
	p, ok := saved.Get()
	if !ok {
		return nil, fmt.Errorf("%w: progress vanished after upsert", shared.ErrUnexpected)
	}
	return p, nil
}

// ListForUser returns every record of the user keyed by video id.
func (r *ProgressRepository) ListForUser(ctx context.Context, userID string) (map[string]*models.VideoProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM video_progress WHERE user_id = ?`

	list, err := r.query(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	byVideo := make(map[string]*models.VideoProgress, len(list))
	for _, p := range list {
		byVideo[p.VideoID] = p
	}
	return byVideo, nil
}

// RecentCompletions returns the user's latest completed videos, newest first.
func (r *ProgressRepository) RecentCompletions(ctx context.Context, userID string, limit int) ([]*models.VideoProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM video_progress
		WHERE user_id = ? AND completed = 1
		ORDER BY last_watched DESC, video_id ASC
		LIMIT ?`

	return r.query(ctx, query, userID, limit)
}

// CountCompleted counts the user's completed records.
func (r *ProgressRepository) CountCompleted(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM video_progress WHERE user_id = ? AND completed = 1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count completions: %w", err)
	}
	return n, nil
}

// DeleteForUser removes every record of the user and returns how many were deleted.
func (r *ProgressRepository) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM video_progress WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete progress: %w", err)
	}
	return res.RowsAffected()
}

func (r *ProgressRepository) query(ctx context.Context, query string, args ...any) ([]*models.VideoProgress, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress: %w", err)
	}
	defer rows.Close()

	var list []*models.VideoProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		list = append(list, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return list, nil
}

func scanProgress(row rowScanner) (*models.VideoProgress, error) {
	var p models.VideoProgress
	err := row.Scan(&p.ID, &p.UserID, &p.VideoID, &p.Completed, &p.WatchPosition, &p.Notes, &p.LastWatched, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
