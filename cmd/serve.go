package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/ytlearn/internal/server"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API and run the outbox worker",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, overrides server.host and server.port",
			},
			&cli.BoolFlag{
				Name:  "no-worker",
				Usage: "Serve without applying ledger events in this process",
			},
		},
		Action: r.Serve,
	}
}

// Serve runs the API until interrupted. The worker shares the server's lifetime.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := r.open(ctx)
	if err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	srv := server.New(server.Opts{
		Engine:         engine,
		Logger:         r.logger,
		IdentityHeader: r.config.Server.IdentityHeader,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(gctx, addr) })

	if cmd.Bool("no-worker") {
		r.logger.Info("outbox worker disabled")
	} else {
		g.Go(func() error { return engine.Worker.Run(gctx) })
	}

	return g.Wait()
}
