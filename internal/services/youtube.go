package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"

	"github.com/desertthunder/ytlearn/internal/models"
	"github.com/desertthunder/ytlearn/internal/shared"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// pageSize is the YouTube Data API maximum for both list calls.
const pageSize = 50

var isoDuration = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// YouTubeOpts configures [NewYouTubeSource].
type YouTubeOpts struct {
	APIKey      string
	AccessToken string
	Endpoint    string       // API base path override, e.g. an httptest server
	HTTPClient  *http.Client // replaces the default transport; APIKey is then sent per call
}

// YouTubeSource implements [PlaylistSource] with the YouTube Data API v3.
type YouTubeSource struct {
	svc      *youtube.Service
	callOpts []googleapi.CallOption
}

// NewYouTubeSource builds the API client from opts.
func NewYouTubeSource(ctx context.Context, opts YouTubeOpts) (*YouTubeSource, error) {
	var (
		clientOpts []option.ClientOption
		callOpts   []googleapi.CallOption
	)

	switch {
	case opts.HTTPClient != nil:
		clientOpts = append(clientOpts, option.WithHTTPClient(opts.HTTPClient))
		if opts.APIKey != "" {
			callOpts = append(callOpts, googleapi.QueryParameter("key", opts.APIKey))
		}
	case opts.AccessToken != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.AccessToken, TokenType: "Bearer"})
		clientOpts = append(clientOpts, option.WithTokenSource(ts))
	case opts.APIKey != "":
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	default:
		return nil, fmt.Errorf("%w: youtube api_key or access_token is required", shared.ErrMissingConfig)
	}

	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	svc, err := youtube.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube client: %w", err)
	}
	return &YouTubeSource{svc: svc, callOpts: callOpts}, nil
}

// Name implements [PlaylistSource].
func (s *YouTubeSource) Name() string {
	return "YouTube"
}

// PlaylistVideos implements [PlaylistSource].
func (s *YouTubeSource) PlaylistVideos(ctx context.Context, playlistID string) ([]models.Video, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id is required", shared.ErrInvalidInput)
	}

	var items []*youtube.PlaylistItem
	pageToken := ""
	for {
		call := s.svc.PlaylistItems.List([]string{"snippet", "contentDetails"}).
			PlaylistId(playlistID).
			MaxResults(pageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do(s.callOpts...)
		if err != nil {
			return nil, s.wrap(err, playlistID)
		}
		items = append(items, resp.Items...)

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	durations, err := s.durations(ctx, items)
	if err != nil {
		return nil, err
	}

	videos := make([]models.Video, 0, len(items))
	for _, item := range items {
		if item.ContentDetails == nil || item.Snippet == nil {
			continue
		}
		id := item.ContentDetails.VideoId
		videos = append(videos, models.Video{
			ID:           id,
			Title:        item.Snippet.Title,
			Duration:     FormatDuration(durations[id]),
			ThumbnailURL: thumbnailURL(item.Snippet.Thumbnails),
			Position:     int(item.Snippet.Position),
		})
	}

	sort.SliceStable(videos, func(i, j int) bool { return videos[i].Position < videos[j].Position })
	return videos, nil
}

// durations maps video id to its ISO 8601 duration, fetched in batches.
func (s *YouTubeSource) durations(ctx context.Context, items []*youtube.PlaylistItem) (map[string]string, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.ContentDetails != nil && item.ContentDetails.VideoId != "" {
			ids = append(ids, item.ContentDetails.VideoId)
		}
	}

	out := make(map[string]string, len(ids))
	for start := 0; start < len(ids); start += pageSize {
		batch := ids[start:min(start+pageSize, len(ids))]

		resp, err := s.svc.Videos.List([]string{"contentDetails"}).
			Id(batch...).
			Context(ctx).
			Do(s.callOpts...)
		if err != nil {
			return nil, fmt.Errorf("%w: videos.list: %v", shared.ErrSourceRequest, err)
		}

		for _, v := range resp.Items {
			if v.ContentDetails != nil {
				out[v.Id] = v.ContentDetails.Duration
			}
		}
	}
	return out, nil
}

func (s *YouTubeSource) wrap(err error, playlistID string) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	return fmt.Errorf("%w: playlistItems.list: %v", shared.ErrSourceRequest, err)
}

// FormatDuration renders an ISO 8601 duration ("PT1H2M3S") as "1:02:03", or "m:ss" under an hour.
//
// Unparseable input renders as "0:00".
func FormatDuration(iso string) string {
	m := isoDuration.FindStringSubmatch(iso)
	if m == nil {
		return "0:00"
	}

	part := func(s string) int {
		n, _ := strconv.Atoi(s)
		return n
	}
	hours, minutes, seconds := part(m[1]), part(m[2]), part(m[3])

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

func thumbnailURL(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, candidate := range []*youtube.Thumbnail{t.High, t.Medium, t.Default} {
		if candidate != nil && candidate.Url != "" {
			return candidate.Url
		}
	}
	return ""
}
