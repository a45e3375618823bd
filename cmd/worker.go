package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ytlearn/internal/shared"
	"github.com/desertthunder/ytlearn/internal/tasks"
	"github.com/desertthunder/ytlearn/internal/ui"
	"github.com/urfave/cli/v3"
)

// watchLogPath receives log output while the monitor owns the terminal.
const watchLogPath = "./tmp/ytlearn-worker.log"

func workerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Apply pending ledger events from the outbox",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Poll and apply events until interrupted",
				Action: r.WorkerRun,
			},
			{
				Name:   "once",
				Usage:  "Apply one batch of due events",
				Flags:  jsonFlags(),
				Action: r.WorkerOnce,
			},
			{
				Name:   "requeue",
				Usage:  "Make dead events due again",
				Action: r.WorkerRequeue,
			},
			{
				Name:   "stats",
				Usage:  "Count events by status",
				Flags:  jsonFlags(),
				Action: r.WorkerStats,
			},
			{
				Name:   "watch",
				Usage:  "Run the worker behind an interactive monitor",
				Action: r.WorkerWatch,
			},
		},
	}
}

// WorkerRun runs the outbox worker in the foreground.
func (r *Runner) WorkerRun(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := r.open(ctx)
	if err != nil {
		return err
	}
	return engine.Worker.Run(ctx)
}

// WorkerOnce applies a single batch and reports what happened.
func (r *Runner) WorkerOnce(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.open(ctx)
	if err != nil {
		return err
	}

	result, err := engine.Worker.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("outbox pass failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}

	r.writePlain("Due: %d, applied: %d, skipped: %d, retried: %d, dead: %d\n",
		result.Due, result.Applied, result.Skipped, result.Retried, result.Dead)
	return nil
}

// WorkerRequeue revives dead events.
func (r *Runner) WorkerRequeue(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.open(ctx)
	if err != nil {
		return err
	}

	n, err := engine.Worker.Requeue(ctx)
	if err != nil {
		return fmt.Errorf("requeue failed: %w", err)
	}
	return r.writePlain("%s\n", ui.OK(fmt.Sprintf("✓ Requeued %d dead events", n)))
}

// WorkerStats prints outbox counts.
func (r *Runner) WorkerStats(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.open(ctx)
	if err != nil {
		return err
	}

	stats, err := engine.Worker.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read outbox stats: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(stats, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Outbox")
	r.writePlain("Pending:   %d\n", stats.Pending)
	r.writePlain("Processed: %d\n", stats.Processed)
	dead := fmt.Sprintf("%d", stats.Dead)
	if stats.Dead > 0 {
		dead = ui.Warn(dead)
	}
	r.writePlain("Dead:      %s\n", dead)
	return nil
}

// WorkerWatch runs the worker inside the terminal monitor.
func (r *Runner) WorkerWatch(ctx context.Context, cmd *cli.Command) error {
	if err := os.MkdirAll(filepath.Dir(watchLogPath), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(watchLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer logFile.Close()

	fileLogger := shared.NewLogger(logFile)
	shared.SetLogLevel(fileLogger, r.config.Log.ParsedLevel())
	r.SetLogger(fileLogger)

	updates := make(chan tasks.WorkerUpdate, 50)
	engine, err := r.newEngine(ctx, updates)
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, ui.MonitorOpts{
		Updates: updates,
		Run:     engine.Worker.Run,
		Requeue: engine.Worker.Requeue,
	})

	if _, err := tea.NewProgram(model, tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("error running monitor: %w", err)
	}
	return model.Err()
}
