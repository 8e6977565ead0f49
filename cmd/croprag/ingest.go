package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/xhad/croprag/pkg/config"
	"github.com/xhad/croprag/pkg/ingest"
	"github.com/xhad/croprag/pkg/source"
)

func ingestCommand(cfg **config.Config) *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Load the crop dataset, embed every row and store it",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Dataset path or http(s) URL (defaults to ingest.path)",
			},
			&cli.StringFlag{
				Name:    "delimiter",
				Aliases: []string{"d"},
				Usage:   "Field delimiter for delimited files (tab, comma or a single character)",
			},
			&cli.BoolFlag{
				Name:  "idempotent",
				Usage: "Derive record IDs from their description so re-runs replace rows",
			},
		},
		Action: func(c *cli.Context) error {
			return runIngest(c, *cfg)
		},
	}
}

func runIngest(c *cli.Context, cfg *config.Config) error {
	ctx := c.Context
	out := c.App.Writer

	path := cfg.Ingest.Path
	if c.IsSet("file") {
		path = c.String("file")
	}
	delim := cfg.Ingest.Delimiter
	if c.IsSet("delimiter") {
		delim = c.String("delimiter")
	}
	idempotent := cfg.Ingest.Idempotent || c.Bool("idempotent")

	delimiter, err := source.ParseDelimiter(delim)
	if err != nil {
		return err
	}

	records, err := source.NewWithConfig(source.LoaderConfig{Delimiter: delimiter}).Load(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	successColor.Fprintf(out, "✓ Loaded %d rows from %s\n", len(records), path)

	embedder, err := openEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	vs, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer vs.Close()

	bar := newProgressBar(c.App.ErrWriter, len(records), " Embedding and storing")
	pipeline, err := ingest.NewPipeline(vs, embedder,
		ingest.WithBatchSize(cfg.Ingest.BatchSize),
		ingest.WithWorkers(cfg.Ingest.Workers),
		ingest.WithRateLimit(cfg.Ingest.RateLimit),
		ingest.WithIdempotent(idempotent),
		ingest.WithProgress(func(stored, total int) {
			bar.Set(stored)
		}),
		ingest.WithLogger(slog.Default()),
	)
	if err != nil {
		return err
	}
	defer pipeline.Release()

	result, err := pipeline.Run(ctx, records)
	bar.Finish()
	if err != nil {
		errorColor.Fprintf(out, "✗ Stored %d of %d rows\n", result.Stored, result.Read)
		return fmt.Errorf("ingestion failed: %w", err)
	}

	successColor.Fprintf(out, "✓ Stored %d rows in %s (%s)\n",
		result.Stored, cfg.Store.Collection, result.Elapsed.Round(time.Millisecond))
	return nil
}
