package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/desertthunder/ytlearn/internal/models"
	"github.com/desertthunder/ytlearn/internal/shared"
)

// PlaylistSource supplies the ordered videos of an external playlist.
type PlaylistSource interface {
	// PlaylistVideos lists every video of the playlist in position order.
	// Returns [shared.ErrPlaylistNotFound] when the playlist does not exist or is not visible.
	PlaylistVideos(ctx context.Context, playlistID string) ([]models.Video, error)

	// Name returns the name of the source (e.g., "YouTube")
	Name() string
}

// StaticSource is an in-memory [PlaylistSource].
type StaticSource struct {
	mu        sync.RWMutex
	playlists map[string][]models.Video
}

// NewStaticSource creates a [StaticSource] holding playlists.
func NewStaticSource(playlists map[string][]models.Video) *StaticSource {
	s := &StaticSource{playlists: make(map[string][]models.Video)}
	for id, videos := range playlists {
		s.Set(id, videos)
	}
	return s
}

// Set stores or replaces a playlist.
func (s *StaticSource) Set(playlistID string, videos []models.Video) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playlists[playlistID] = append([]models.Video(nil), videos...)
}

// PlaylistVideos implements [PlaylistSource].
func (s *StaticSource) PlaylistVideos(ctx context.Context, playlistID string) ([]models.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	videos, ok := s.playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}

	out := append([]models.Video(nil), videos...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// Name implements [PlaylistSource].
func (s *StaticSource) Name() string {
	return "Static"
}
