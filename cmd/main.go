package main

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytlearn/internal/services"
	"github.com/desertthunder/ytlearn/internal/shared"
	"github.com/urfave/cli/v3"
)

// defaultConfigPath is read at startup when present.
const defaultConfigPath = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat(defaultConfigPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(defaultConfigPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "error", err)
		}
	}
	shared.SetLogLevel(logger, config.Log.ParsedLevel())

	ctx := context.Background()
	runner := NewRunner(RunnerOpts{
		Config: config,
		Logger: logger,
		Source: newSource(ctx, config, logger),
	})
	defer runner.Close()

	app := &cli.Command{
		Name:     "ytlearn",
		Usage:    "Track learning progress and streaks through a YouTube playlist",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(ctx, os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		runner.Close()
		logger.Fatalf("application error: %v", err)
	}
}

// newSource builds the YouTube playlist source when credentials are configured.
//
// Without credentials playlist linking reports [shared.ErrMissingConfig].
func newSource(ctx context.Context, config *shared.Config, logger *log.Logger) services.PlaylistSource {
	yt := config.Credentials.YouTube
	if yt.APIKey == "" && yt.AccessToken == "" {
		logger.Debug("youtube credentials not configured")
		return nil
	}

	source, err := services.NewYouTubeSource(ctx, services.YouTubeOpts{
		APIKey:      yt.APIKey,
		AccessToken: yt.AccessToken,
		Endpoint:    yt.Endpoint,
	})
	if err != nil {
		logger.Warn("youtube source unavailable", "error", err)
		return nil
	}
	return source
}
