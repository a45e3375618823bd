package repositories

import (
	"context"
	"fmt"

	"github.com/desertthunder/ytlearn/internal/models"
	"github.com/desertthunder/ytlearn/internal/shared"
)

// PlaylistRepository stores the snapshot of each user's linked playlist.
//
// The snapshot is the denominator for completion percentages and the order for "next video".
type PlaylistRepository struct {
	db DBTX
}

// NewPlaylistRepository creates a new PlaylistRepository bound to the pool or a transaction
func NewPlaylistRepository(db DBTX) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// ReplaceVideos swaps the user's snapshot for videos. Run it inside a transaction.
func (r *PlaylistRepository) ReplaceVideos(ctx context.Context, userID, playlistID string, videos []models.Video) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM playlist_videos WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear playlist snapshot: %w", err)
	}

	query := `
		INSERT INTO playlist_videos (id, user_id, playlist_id, video_id, title, duration, thumbnail_url, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, video_id) DO NOTHING
	`

	for _, v := range videos {
		if v.ID == "" {
			continue
		}
		_, err := r.db.ExecContext(ctx, query, shared.GenerateID(), userID, playlistID, v.ID, v.Title, v.Duration, v.ThumbnailURL, v.Position)
		if err != nil {
			return fmt.Errorf("failed to insert playlist video %s: %w", v.ID, err)
		}
	}
	return nil
}

// ListVideos returns the snapshot in playlist order.
func (r *PlaylistRepository) ListVideos(ctx context.Context, userID string) ([]models.Video, error) {
	query := `
		SELECT video_id, title, duration, thumbnail_url, position
		FROM playlist_videos
		WHERE user_id = ?
		ORDER BY position ASC, video_id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		var v models.Video
		if err := rows.Scan(&v.ID, &v.Title, &v.Duration, &v.ThumbnailURL, &v.Position); err != nil {
			return nil, fmt.Errorf("failed to scan playlist video: %w", err)
		}
		videos = append(videos, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return videos, nil
}

// CountVideos returns the size of the user's snapshot.
func (r *PlaylistRepository) CountVideos(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM playlist_videos WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count playlist videos: %w", err)
	}
	return n, nil
}
