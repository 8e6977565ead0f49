package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/xhad/croprag/pkg/config"
	"github.com/xhad/croprag/pkg/reembed"
)

func reembedCommand(cfg **config.Config) *cli.Command {
	return &cli.Command{
		Name:  "reembed",
		Usage: "Re-embed records stored with a different embedding model",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Number of records to process in each batch",
				Value: 20,
			},
		},
		Action: func(c *cli.Context) error {
			return runReembed(c, *cfg)
		},
	}
}

func runReembed(c *cli.Context, cfg *config.Config) error {
	ctx := c.Context
	out := c.App.Writer

	embedder, err := openEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	vs, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer vs.Close()

	spinner := newSpinner(c.App.ErrWriter, " Re-embedding")
	r, err := reembed.NewReembedder(vs, embedder, &reembed.Config{
		BatchSize: c.Int("batch-size"),
		OnProgress: func(done int) {
			spinner.Describe(fmt.Sprintf(" Re-embedded %d records", done))
		},
	})
	if err != nil {
		return err
	}

	n, err := r.Run(ctx)
	spinner.Finish()
	if err != nil {
		errorColor.Fprintf(out, "✗ Re-embedded %d records before failing\n", n)
		return err
	}

	if n == 0 {
		successColor.Fprintf(out, "✓ All records already use %s\n", embedder.Model())
		return nil
	}
	successColor.Fprintf(out, "✓ Re-embedded %d records with %s\n", n, embedder.Model())
	return nil
}
