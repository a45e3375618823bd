package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytlearn/internal/models"
	"github.com/desertthunder/ytlearn/internal/repositories"
	"github.com/desertthunder/ytlearn/internal/services"
	"github.com/desertthunder/ytlearn/internal/shared"
	"github.com/desertthunder/ytlearn/internal/streak"
)

// EngineOpts wires the dependencies shared by every operation.
type EngineOpts struct {
	DB          *sql.DB
	Source      services.PlaylistSource
	Clock       streak.Clock
	Logger      *log.Logger
	Worker      WorkerOpts
	ApplyInline bool // drain ledger events right after a completion commits
}

// Engine bundles the gateways and services over one database handle.
type Engine struct {
	Completion *CompletionGateway
	Inactivity *InactivityGateway
	Projector  *LedgerProjector
	Worker     *OutboxWorker
	Playlists  *PlaylistService
	Dashboard  *DashboardService
}

// NewEngine creates an [Engine], defaulting a nil logger and an unset clock.
func NewEngine(opts EngineOpts) *Engine {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Clock.Location == nil {
		opts.Clock = streak.NewClock(nil)
	}

	projector := NewLedgerProjector(opts.DB, opts.Clock, opts.Logger)
	inactivity := NewInactivityGateway(opts.DB, opts.Clock, opts.Logger)

	return &Engine{
		Completion: NewCompletionGateway(opts.DB, opts.Clock, opts.Logger, projector, opts.ApplyInline),
		Inactivity: inactivity,
		Projector:  projector,
		Worker:     NewOutboxWorker(opts.DB, projector, opts.Clock, opts.Logger, opts.Worker),
		Playlists:  NewPlaylistService(opts.DB, opts.Source, opts.Clock, opts.Logger),
		Dashboard:  NewDashboardService(opts.DB, inactivity, opts.Logger),
	}
}

// authorize resolves principal to a user and checks it may act on userID.
//
// An empty userID skips the ownership check.
func authorize(ctx context.Context, q repositories.DBTX, principal, userID string) (*models.User, error) {
	if strings.TrimSpace(principal) == "" {
		return nil, fmt.Errorf("%w: no authenticated principal", shared.ErrUnauthorized)
	}

	found, err := repositories.NewUserRepository(q).GetByExternalID(ctx, principal)
	if err != nil {
		return nil, err
	}

	user, ok := found.Get()
	if !ok {
		return nil, fmt.Errorf("%w: unknown principal", shared.ErrUnauthorized)
	}
	if userID != "" && user.ID() != userID {
		return nil, fmt.Errorf("%w: principal does not own user %s", shared.ErrUnauthorized, userID)
	}
	return user, nil
}

func requireID(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", shared.ErrInvalidInput, name)
	}
	return nil
}
