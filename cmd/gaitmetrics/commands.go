package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/vjranagit/gaitmetrics/pkg/api"
	"github.com/vjranagit/gaitmetrics/pkg/types"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "start the HTTP API server",
		Action: func(c *cli.Context) error {
			a, err := bootstrap(c)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := a.Config
			server := api.NewServer(cfg.Server.ListenAddr, a.Service, a.Registry, a.DashboardOptions(), cfg.Server.Timeout)

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info().Str("addr", cfg.Server.ListenAddr).Msg("API server listening")
				return server.Start()
			})
			g.Go(func() error {
				<-ctx.Done()
				log.Info().Msg("shutdown signal received, stopping server")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				return server.Stop(shutdownCtx)
			})

			if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			log.Info().Msg("server stopped")
			return nil
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "import an analysis file (.csv or .json) into a subject's history",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Required: true},
			&cli.StringFlag{Name: "file", Required: true},
			&cli.StringFlag{Name: "source-ref", Usage: "defaults to the file name"},
		},
		Action: func(c *cli.Context) error {
			a, err := bootstrap(c)
			if err != nil {
				return err
			}
			defer a.Close()

			path := c.String("file")
			sourceRef := c.String("source-ref")
			if sourceRef == "" {
				sourceRef = filepath.Base(path)
			}

			var rec types.MetricRecord
			if strings.EqualFold(filepath.Ext(path), ".json") {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				rec, err = a.Service.IngestJSON(c.Context, c.String("subject"), data)
				if err != nil {
					return err
				}
			} else {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()

				rec, err = a.Service.IngestCSV(c.Context, c.String("subject"), sourceRef, f)
				if err != nil {
					return err
				}
			}

			fmt.Fprintf(c.App.Writer, "imported %s (%d metrics)\n", rec.ID, len(rec.Metrics))
			if rec.FallWarning != "" {
				fmt.Fprintln(c.App.Writer, rec.FallWarning)
			}
			return nil
		},
	}
}

func dashboardCommand() *cli.Command {
	return &cli.Command{
		Name:  "dashboard",
		Usage: "print a subject's metric dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Required: true},
			&cli.IntFlag{Name: "window", Value: -1, Usage: "records charted; 0 charts all, negative uses the configured window"},
			&cli.StringFlag{Name: "canvas", Value: "sparkline", Usage: "sparkline or detail"},
		},
		Action: func(c *cli.Context) error {
			a, err := bootstrap(c)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := a.DashboardOptions()
			if w := c.Int("window"); w >= 0 {
				opts.Window = w
			}
			switch c.String("canvas") {
			case "sparkline":
				opts.Canvas = types.SparklineCanvas()
			case "detail":
				opts.Canvas = types.DetailCanvas()
			default:
				return fmt.Errorf("unknown canvas %q", c.String("canvas"))
			}

			views, err := a.Service.Dashboard(c.Context, c.String("subject"), opts)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "METRIC\tLATEST\tSTATUS\tTREND\tRANGE\tBASIS")
			for _, v := range views {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%g - %g\t%s\n",
					v.Label, v.LatestText, v.Status, v.TrendGlyph, v.Range.Low, v.Range.High, v.RangeNote)
			}
			return tw.Flush()
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:  "delete",
		Usage: "delete a record from a subject's history",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Required: true},
			&cli.StringFlag{Name: "id", Required: true},
		},
		Action: func(c *cli.Context) error {
			a, err := bootstrap(c)
			if err != nil {
				return err
			}
			defer a.Close()

			affected, err := a.Service.Delete(c.Context, c.String("subject"), c.String("id"))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "deleted %s, affected metrics: %s\n", c.String("id"), strings.Join(affected, ", "))
			return nil
		},
	}
}
