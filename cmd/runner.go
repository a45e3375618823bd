package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytlearn/internal/models"
	"github.com/desertthunder/ytlearn/internal/repositories"
	"github.com/desertthunder/ytlearn/internal/services"
	"github.com/desertthunder/ytlearn/internal/shared"
	"github.com/desertthunder/ytlearn/internal/streak"
	"github.com/desertthunder/ytlearn/internal/tasks"
	"github.com/desertthunder/ytlearn/internal/ui"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config *shared.Config
	source services.PlaylistSource
	clock  streak.Clock
	logger *log.Logger
	output io.Writer
	db     *sql.DB
	ownsDB bool
	engine *tasks.Engine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	Source services.PlaylistSource
	Clock  streak.Clock
	Logger *log.Logger
	Output io.Writer
	DB     *sql.DB // opened from Config.Database on first use when nil
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Clock.Location == nil {
		loc, err := opts.Config.Streak.Location()
		if err != nil {
			opts.Logger.Warn("falling back to local timezone", "error", err)
		}
		opts.Clock = streak.NewClock(loc)
	}

	return &Runner{
		config: opts.Config,
		source: opts.Source,
		clock:  opts.Clock,
		logger: opts.Logger,
		output: opts.Output,
		db:     opts.DB,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, workerCommand, progressCommand, ledgerCommand, playlistCommand, reportCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by engines built afterwards.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close releases the database when the runner opened it.
func (r *Runner) Close() error {
	if r.db == nil || !r.ownsDB {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	r.engine = nil
	return err
}

// database opens and migrates the configured database on first use.
func (r *Runner) database(ctx context.Context) (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	cfg := r.config.Database
	db, err := shared.OpenDatabase(cfg.Path, cfg.BusyTimeoutMS)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, cfg.Path, cfg.MaxOpenConns, cfg.MaxIdleConns)

	if err := shared.RunMigrationsContext(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.logger.Debug("database ready", "path", cfg.Path)
	r.db = db
	r.ownsDB = true
	return db, nil
}

// open returns the shared engine, creating it on first use.
func (r *Runner) open(ctx context.Context) (*tasks.Engine, error) {
	if r.engine != nil {
		return r.engine, nil
	}
	engine, err := r.newEngine(ctx, nil)
	if err != nil {
		return nil, err
	}
	r.engine = engine
	return engine, nil
}

// newEngine builds an engine whose worker reports to updates.
func (r *Runner) newEngine(ctx context.Context, updates chan<- tasks.WorkerUpdate) (*tasks.Engine, error) {
	db, err := r.database(ctx)
	if err != nil {
		return nil, err
	}

	return tasks.NewEngine(tasks.EngineOpts{
		DB:          db,
		Source:      r.source,
		Clock:       r.clock,
		Logger:      r.logger,
		Worker:      r.workerOpts(updates),
		ApplyInline: r.config.Worker.ApplyInline,
	}), nil
}

func (r *Runner) workerOpts(updates chan<- tasks.WorkerUpdate) tasks.WorkerOpts {
	w := r.config.Worker
	return tasks.WorkerOpts{
		BatchSize:    w.BatchSize,
		PollInterval: w.PollInterval.Duration,
		RateLimit:    w.RateLimit,
		MaxAttempts:  w.MaxAttempts,
		BaseBackoff:  w.BaseBackoff.Duration,
		MaxBackoff:   w.MaxBackoff.Duration,
		Updates:      updates,
	}
}

// resolveUser finds the user behind principal without creating one.
func (r *Runner) resolveUser(ctx context.Context, principal string) (*models.User, error) {
	db, err := r.database(ctx)
	if err != nil {
		return nil, err
	}

	found, err := repositories.NewUserRepository(db).GetByExternalID(ctx, principal)
	if err != nil {
		return nil, err
	}
	user, ok := found.Get()
	if !ok {
		return nil, fmt.Errorf("%w: unknown user %q", shared.ErrUnauthorized, principal)
	}
	return user, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", ui.Title(title))
	r.writePlain("═══════════════════════════════════════\n")
}

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "user",
		Aliases:  []string{"u"},
		Usage:    "External ID of the learner acting",
		Required: true,
	}
}

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
			Value: true,
		},
	}
}
