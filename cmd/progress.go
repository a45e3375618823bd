package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/ytlearn/internal/ui"
	"github.com/urfave/cli/v3"
)

func progressCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "progress",
		Aliases: []string{"p"},
		Usage:   "Record progress on playlist videos",
		Commands: []*cli.Command{
			{
				Name:  "complete",
				Usage: "Mark a video completed, or not completed with --undo",
				Flags: append([]cli.Flag{
					userFlag(),
					&cli.StringFlag{
						Name:     "video",
						Usage:    "Video ID",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "undo",
						Usage: "Clear the completed flag instead",
					},
				}, jsonFlags()...),
				Action: r.CompleteVideo,
			},
			{
				Name:  "position",
				Usage: "Save the playback position of a video",
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{
						Name:     "video",
						Usage:    "Video ID",
						Required: true,
					},
					&cli.FloatFlag{
						Name:     "seconds",
						Usage:    "Playback offset in seconds",
						Required: true,
					},
				},
				Action: r.SavePosition,
			},
		},
	}
}

// CompleteVideo flips the completed flag of a video for the given learner.
func (r *Runner) CompleteVideo(ctx context.Context, cmd *cli.Command) error {
	principal := cmd.String("user")
	videoID := cmd.String("video")
	completed := !cmd.Bool("undo")

	engine, err := r.open(ctx)
	if err != nil {
		return err
	}

	user, err := r.resolveUser(ctx, principal)
	if err != nil {
		return err
	}

	progress, err := engine.Completion.CompleteVideo(ctx, principal, user.ID(), videoID, completed)
	if err != nil {
		return fmt.Errorf("failed to update video %s: %w", videoID, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(progress, cmd.Bool("pretty"))
	}

	if progress.Completed {
		return r.writePlain("%s\n", ui.OK("✓ "+videoID+" completed"))
	}
	return r.writePlain("%s\n", ui.Warn("○ "+videoID+" not completed"))
}

// SavePosition stores where the learner stopped watching.
func (r *Runner) SavePosition(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.open(ctx)
	if err != nil {
		return err
	}

	videoID := cmd.String("video")
	saved, err := engine.Playlists.SavePosition(ctx, cmd.String("user"), videoID, cmd.Float("seconds"))
	if err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}
	return r.writePlain("Saved %s at %.1fs\n", saved.VideoID, saved.WatchPosition)
}
