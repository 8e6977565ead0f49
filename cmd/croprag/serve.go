package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/xhad/croprag/pkg/config"
	"github.com/xhad/croprag/pkg/reembed"
	"github.com/xhad/croprag/server"
)

func serveCommand(cfg **config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the recommendation API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Aliases: []string{"a"},
				Usage:   "Listen address (defaults to server.addr)",
			},
		},
		Action: func(c *cli.Context) error {
			return runServe(c, *cfg)
		},
	}
}

func runServe(c *cli.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := cfg.Server.Addr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}

	svc, err := openServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	warnStale(ctx, svc)
	slog.Info("serving recommendations",
		"model", svc.embedder.Model(),
		"top_k", svc.service.TopK(),
		"explanations", cfg.LLM.Enabled)

	srv := server.New(server.Config{
		Addr:        addr,
		CORSOrigin:  cfg.Server.CORSOrigin,
		ServiceName: cfg.Server.ServiceName,
	}, svc.service, slog.Default())

	return srv.ListenAndServe(ctx)
}

// warnStale logs when stored records were embedded with another model, since
// their distances to fresh query vectors are meaningless.
func warnStale(ctx context.Context, svc *services) {
	n, err := reembed.StaleCount(ctx, svc.store, svc.embedder.Model(), 1)
	if err != nil {
		slog.Warn("could not check for stale embeddings", "err", err)
		return
	}
	if n > 0 {
		slog.Warn("collection holds records embedded with a different model; run croprag reembed",
			"model", svc.embedder.Model())
	}
}
