package main

import (
	"encoding/json"

	"github.com/urfave/cli/v2"

	"github.com/xhad/croprag/internal/models"
	"github.com/xhad/croprag/pkg/config"
)

var soilFlags = []string{"nitrogen", "phosphorus", "potassium", "ph", "temperature", "humidity"}

func recommendCommand(cfg **config.Config) *cli.Command {
	flags := make([]cli.Flag, 0, len(soilFlags)+2)
	for _, name := range soilFlags {
		flags = append(flags, &cli.Float64Flag{
			Name:     name,
			Usage:    soilUsage[name],
			Required: true,
		})
	}
	flags = append(flags,
		&cli.StringFlag{
			Name:    "question",
			Aliases: []string{"q"},
			Usage:   "Free-text question appended to the query",
			Value:   models.DefaultQuestion,
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the response body as JSON",
		},
	)

	return &cli.Command{
		Name:   "recommend",
		Usage:  "Recommend a crop for one set of soil measurements",
		Flags:  flags,
		Action: func(c *cli.Context) error { return runRecommend(c, *cfg) },
	}
}

var soilUsage = map[string]string{
	"nitrogen":    "Nitrogen in ppm",
	"phosphorus":  "Phosphorus in ppm",
	"potassium":   "Potassium in ppm",
	"ph":          "Soil pH",
	"temperature": "Temperature in °C",
	"humidity":    "Relative humidity in %",
}

func queryFromFlags(c *cli.Context) models.SoilQuery {
	return models.SoilQuery{
		Nitrogen:    c.Float64("nitrogen"),
		Phosphorus:  c.Float64("phosphorus"),
		Potassium:   c.Float64("potassium"),
		PH:          c.Float64("ph"),
		Temperature: c.Float64("temperature"),
		Humidity:    c.Float64("humidity"),
		Question:    c.String("question"),
	}
}

func runRecommend(c *cli.Context, cfg *config.Config) error {
	ctx := c.Context

	svc, err := openServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	spinner := newSpinner(c.App.ErrWriter, " Searching similar soils...")
	rec, err := svc.service.Recommend(ctx, queryFromFlags(c))
	spinner.Finish()
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	printRecommendation(c.App.Writer, rec)
	return nil
}
