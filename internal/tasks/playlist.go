package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytlearn/internal/metrics"
	"github.com/desertthunder/ytlearn/internal/models"
	"github.com/desertthunder/ytlearn/internal/repositories"
	"github.com/desertthunder/ytlearn/internal/services"
	"github.com/desertthunder/ytlearn/internal/shared"
	"github.com/desertthunder/ytlearn/internal/streak"
)

// LinkResult describes the outcome of [PlaylistService.LinkPlaylist].
type LinkResult struct {
	User   *models.User `json:"user"`
	Videos int          `json:"videos"`
	Reset  bool         `json:"reset"` // progress was cleared because the playlist changed
}

// PlaylistService links playlists to users and records playback positions.
type PlaylistService struct {
	db     *sql.DB
	source services.PlaylistSource
	clock  streak.Clock
	logger *log.Logger
}

// NewPlaylistService creates a [PlaylistService] reading playlists from source.
func NewPlaylistService(db *sql.DB, source services.PlaylistSource, clock streak.Clock, logger *log.Logger) *PlaylistService {
	return &PlaylistService{db: db, source: source, clock: clock, logger: logger}
}

// LinkPlaylist makes playlistID the principal's learning playlist.
//
// Switching to a different playlist deletes all progress, drops undelivered ledger events
// and zeroes the completed count and current streak. The best streak survives.
// The stored video list is refreshed either way.
func (s *PlaylistService) LinkPlaylist(ctx context.Context, principal, playlistID string) (*LinkResult, error) {
	playlistID = strings.TrimSpace(playlistID)
	if err := requireID("playlistId", playlistID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(principal) == "" {
		return nil, fmt.Errorf("%w: no authenticated principal", shared.ErrUnauthorized)
	}
	if s.source == nil {
		return nil, fmt.Errorf("%w: no playlist source configured", shared.ErrMissingConfig)
	}

	s.logger.Info("fetching playlist", "source", s.source.Name(), "playlist", playlistID)
	videos, err := s.source.PlaylistVideos(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	result := &LinkResult{Videos: len(videos)}

	err = repositories.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		users := repositories.NewUserRepository(tx)
		user, err := users.Ensure(ctx, principal, "", "")
		if err != nil {
			return err
		}

		current, linked := user.PlaylistID().Get()
		switch {
		case linked && current == playlistID:
			// Same playlist: keep progress, refresh the snapshot only.
		case linked:
			removed, err := repositories.NewProgressRepository(tx).DeleteForUser(ctx, user.ID())
			if err != nil {
				return err
			}
			dropped, err := repositories.NewOutboxRepository(tx).DeletePendingForUser(ctx, user.ID())
			if err != nil {
				return err
			}
			if err := users.ResetForPlaylist(ctx, user.ID(), playlistID); err != nil {
				return err
			}
			result.Reset = true
			s.logger.Info("playlist changed", "user", user.ID(), "from", current, "to", playlistID,
				"progress_removed", removed, "events_dropped", dropped)
		default:
			user.SetPlaylistID(models.Some(playlistID))
			if err := users.Update(ctx, user); err != nil {
				return err
			}
		}

		if err := repositories.NewPlaylistRepository(tx).ReplaceVideos(ctx, user.ID(), playlistID, videos); err != nil {
			return err
		}

		result.User, err = users.Get(ctx, user.ID())
		return err
	})
	if err != nil {
		return nil, err
	}

	if result.Reset {
		metrics.PlaylistResets.Inc()
	}
	return result, nil
}

// SavePosition stores the playback offset of videoID in seconds. Completion and the ledger are untouched.
func (s *PlaylistService) SavePosition(ctx context.Context, principal, videoID string, seconds float64) (*models.VideoProgress, error) {
	if err := requireID("videoId", videoID); err != nil {
		return nil, err
	}
	if err := models.ValidatePosition(seconds); err != nil {
		return nil, err
	}

	var saved *models.VideoProgress
	err := repositories.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		user, err := authorize(ctx, tx, principal, "")
		if err != nil {
			return err
		}

		saved, err = repositories.NewProgressRepository(tx).SavePosition(ctx, user.ID(), videoID, seconds, s.clock.Current())
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}
