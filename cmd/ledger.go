package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/ytlearn/internal/models"
	"github.com/desertthunder/ytlearn/internal/ui"
	"github.com/urfave/cli/v3"
)

func ledgerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "ledger",
		Usage: "Inspect streaks and completion totals",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the ledger after applying inactivity decay",
				Flags:  append([]cli.Flag{userFlag()}, jsonFlags()...),
				Action: r.LedgerShow,
			},
			{
				Name:   "decay",
				Usage:  "Reset the current streak if the learner missed more than a day",
				Flags:  append([]cli.Flag{userFlag()}, jsonFlags()...),
				Action: r.LedgerDecay,
			},
		},
	}
}

// LedgerShow prints the learner's streak, totals and achievements.
func (r *Runner) LedgerShow(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.open(ctx)
	if err != nil {
		return err
	}

	dashboard, err := engine.Dashboard.Load(ctx, cmd.String("user"))
	if err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(dashboard.User.Ledger(), cmd.Bool("pretty"))
	}

	r.printLedger(dashboard.User)
	r.writePlain("Completion:     %d%% of %d videos\n", dashboard.CompletionPercent, dashboard.TotalVideos)

	r.writePlainln("Achievements:")
	for _, a := range dashboard.Achievements {
		if a.Unlocked {
			r.writePlain("  %s %s\n", ui.OK("✓"), a.Title)
		} else {
			r.writePlain("  %s %s\n", ui.Help("·"), ui.Help(a.Title))
		}
	}
	return nil
}

// LedgerDecay runs the inactivity check on its own.
func (r *Runner) LedgerDecay(ctx context.Context, cmd *cli.Command) error {
	principal := cmd.String("user")

	engine, err := r.open(ctx)
	if err != nil {
		return err
	}

	user, err := r.resolveUser(ctx, principal)
	if err != nil {
		return err
	}

	before := user.Ledger().CurrentStreak
	user, err = engine.Inactivity.CheckInactivityDecay(ctx, principal, user.ID())
	if err != nil {
		return fmt.Errorf("inactivity check failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(user.Ledger(), cmd.Bool("pretty"))
	}

	if after := user.Ledger().CurrentStreak; after != before {
		r.writePlain("%s\n", ui.Warn(fmt.Sprintf("Streak reset from %d to %d", before, after)))
	} else {
		r.writePlain("%s\n", ui.OK("Streak unchanged"))
	}
	r.printLedger(user)
	return nil
}

func (r *Runner) printLedger(user *models.User) {
	ledger := user.Ledger()

	r.writePlainHeader(fmt.Sprintf("Ledger: %s", user.ExternalID()))
	r.writePlain("Current streak: %d\n", ledger.CurrentStreak)
	r.writePlain("Best streak:    %d\n", ledger.BestStreak)
	r.writePlain("Completed:      %d\n", ledger.TotalVideosCompleted)
	if at, ok := ledger.LastActiveAt.Get(); ok {
		r.writePlain("Last active:    %s\n", at.In(r.clock.Location).Format(time.DateOnly))
	} else {
		r.writePlain("Last active:    never\n")
	}
}
