package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/ytlearn/internal/formatter"
	"github.com/desertthunder/ytlearn/internal/ui"
	"github.com/urfave/cli/v3"
)

func reportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Export the learner's progress as text, markdown or csv",
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Report format: text, markdown or csv",
				Value:   string(formatter.Text),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Base path for report files; prints to stdout when empty",
			},
		},
		Action: r.Report,
	}
}

// Report renders the dashboard to stdout or writes it to files.
func (r *Runner) Report(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	engine, err := r.open(ctx)
	if err != nil {
		return err
	}

	dashboard, err := engine.Dashboard.Load(ctx, cmd.String("user"))
	if err != nil {
		return fmt.Errorf("failed to load progress: %w", err)
	}

	output := cmd.String("output")
	if output == "" {
		data, err := formatter.Render(dashboard, format)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	}

	result, err := formatter.WriteReport(dashboard, format, output)
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	r.logger.Info("report written", "format", result.Format, "files", len(result.Files))
	for _, file := range result.Files {
		r.writePlain("%s %s\n", ui.OK("✓"), file)
	}
	return nil
}
