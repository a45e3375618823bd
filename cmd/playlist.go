package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/ytlearn/internal/ui"
	"github.com/urfave/cli/v3"
)

func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlist",
		Usage: "Manage the learner's playlist",
		Commands: []*cli.Command{
			{
				Name:  "link",
				Usage: "Link a playlist, resetting progress when it replaces another",
				Flags: append([]cli.Flag{
					userFlag(),
					&cli.StringFlag{
						Name:     "playlist",
						Aliases:  []string{"id"},
						Usage:    "Playlist ID",
						Required: true,
					},
				}, jsonFlags()...),
				Action: r.LinkPlaylist,
			},
		},
	}
}

// LinkPlaylist fetches the playlist from the source and links it to the learner.
func (r *Runner) LinkPlaylist(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.open(ctx)
	if err != nil {
		return err
	}

	playlistID := cmd.String("playlist")
	result, err := engine.Playlists.LinkPlaylist(ctx, cmd.String("user"), playlistID)
	if err != nil {
		return fmt.Errorf("failed to link playlist %s: %w", playlistID, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}

	r.writePlain("%s\n", ui.OK(fmt.Sprintf("✓ Linked %s with %d videos", playlistID, result.Videos)))
	if result.Reset {
		r.writePlain("%s\n", ui.Warn("Progress and current streak were reset; best streak kept"))
	}
	return nil
}
