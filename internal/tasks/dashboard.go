package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytlearn/internal/models"
	"github.com/desertthunder/ytlearn/internal/repositories"
	"github.com/desertthunder/ytlearn/internal/shared"
	"github.com/desertthunder/ytlearn/internal/streak"
)

const recentCompletions = 5

// VideoStatus pairs a playlist video with the user's progress on it.
type VideoStatus struct {
	models.Video
	State         models.ProgressState `json:"-"`
	StateName     string               `json:"state"`
	WatchPosition float64              `json:"watchPosition"`
}

// Dashboard is the learning summary of one user.
type Dashboard struct {
	User              *models.User                  `json:"user"`
	PlaylistID        models.Optional[string]       `json:"playlistId"`
	TotalVideos       int                           `json:"totalVideos"`
	CompletionPercent int                           `json:"completionPercent"`
	Achievements      []streak.Achievement          `json:"achievements"`
	NextVideo         models.Optional[models.Video] `json:"nextVideo"`
	Videos            []VideoStatus                 `json:"videos"`
	RecentCompletions []*models.VideoProgress       `json:"recentCompletions"`
}

// DashboardService assembles [Dashboard] values.
type DashboardService struct {
	db         *sql.DB
	inactivity *InactivityGateway
	logger     *log.Logger
}

// NewDashboardService creates a [DashboardService].
func NewDashboardService(db *sql.DB, inactivity *InactivityGateway, logger *log.Logger) *DashboardService {
	return &DashboardService{db: db, inactivity: inactivity, logger: logger}
}

// Load returns the principal's dashboard, creating the user on first sight.
// Every load runs the inactivity check first.
func (s *DashboardService) Load(ctx context.Context, principal string) (*Dashboard, error) {
	if strings.TrimSpace(principal) == "" {
		return nil, fmt.Errorf("%w: no authenticated principal", shared.ErrUnauthorized)
	}

	var ensured *models.User
	err := repositories.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		ensured, err = repositories.NewUserRepository(tx).Ensure(ctx, principal, "", "")
		return err
	})
	if err != nil {
		return nil, err
	}

	user, err := s.inactivity.CheckInactivityDecay(ctx, principal, ensured.ID())
	if err != nil {
		return nil, err
	}

	videos, err := repositories.NewPlaylistRepository(s.db).ListVideos(ctx, user.ID())
	if err != nil {
		return nil, shared.Classify(err)
	}
	progress, err := repositories.NewProgressRepository(s.db).ListForUser(ctx, user.ID())
	if err != nil {
		return nil, shared.Classify(err)
	}
	recent, err := repositories.NewProgressRepository(s.db).RecentCompletions(ctx, user.ID(), recentCompletions)
	if err != nil {
		return nil, shared.Classify(err)
	}

	d := &Dashboard{
		User:              user,
		PlaylistID:        user.PlaylistID(),
		TotalVideos:       len(videos),
		Videos:            make([]VideoStatus, 0, len(videos)),
		RecentCompletions: recent,
	}

	for _, v := range videos {
		status := VideoStatus{Video: v, State: models.NotStarted}
		if p, ok := progress[v.ID]; ok {
			status.State = p.State()
			status.WatchPosition = p.WatchPosition
		}
		status.StateName = status.State.String()
		d.Videos = append(d.Videos, status)
	}

	d.NextVideo = nextVideo(d.Videos)
	ledger := user.Ledger()
	d.CompletionPercent = streak.CompletionPercent(ledger.TotalVideosCompleted, d.TotalVideos)
	d.Achievements = streak.Evaluate(streak.Snapshot{Ledger: ledger, TotalVideos: d.TotalVideos})
	return d, nil
}

// nextVideo picks the first incomplete video in playlist order, else the first video.
func nextVideo(videos []VideoStatus) models.Optional[models.Video] {
	for _, v := range videos {
		if v.State != models.Completed {
			return models.Some(v.Video)
		}
	}
	if len(videos) > 0 {
		return models.Some(videos[0].Video)
	}
	return models.None[models.Video]()
}
