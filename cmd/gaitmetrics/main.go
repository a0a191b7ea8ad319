package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/vjranagit/gaitmetrics/internal/app"
	"github.com/vjranagit/gaitmetrics/internal/config"
	"github.com/vjranagit/gaitmetrics/internal/logger"
)

const (
	version = "0.3.0"
)

func main() {
	cliApp := &cli.App{
		Name:        "gaitmetrics",
		Usage:       "gait metrics history and dashboard service",
		Description: "Stores per-upload gait analysis results and derives personalized normal ranges, trends and charts.",
		Version:     version,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "dotenv files to load before reading the environment",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			importCommand(),
			dashboardCommand(),
			deleteCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("failed to run app")
	}
}

// bootstrap loads configuration, configures logging and opens the app
func bootstrap(c *cli.Context) (*app.App, error) {
	cfg, err := config.Load(c.StringSlice("env-file")...)
	if err != nil {
		return nil, err
	}
	if err := logger.Configure(cfg.Log); err != nil {
		return nil, err
	}
	return app.New(cfg)
}
