package root

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/drewfead/vo-watcher/internal"
	"github.com/drewfead/vo-watcher/internal/api"
	"github.com/drewfead/vo-watcher/internal/ingest"
	"github.com/urfave/cli/v3"
)

var (
	ErrSchemaUnsupported = errors.New("the configured store does not manage its schema")
	ErrNoRatingProvider  = errors.New("no rating provider configured, set --omdb-key")
)

func writeJSON(cfg *rootConfig, v any) error {
	enc := json.NewEncoder(cfg.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func scrapeCommand(cfg *rootConfig) *cli.Command {
	return &cli.Command{
		Name:  "scrape",
		Usage: "run one ingestion over a window of days and print its report",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "start", Value: 0, Usage: "first day offset, today being 0"},
			&cli.IntFlag{Name: "end", Value: 14, Usage: "day offset after the last one scraped"},
			&cli.BoolFlag{Name: "save-raw", Usage: "save the scraped listings under --raw-data-dir"},
			&cli.StringFlag{Name: "replay", Usage: "ingest a saved capture instead of scraping"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			window := internal.DayWindow{Start: int(cmd.Int("start")), End: int(cmd.Int("end"))}
			if err := window.Validate(); err != nil {
				return err
			}
			if cmd.Bool("save-raw") && cmd.String("replay") != "" {
				return ingest.ErrConflictingRawDataOptions
			}

			a, err := newApp(ctx, cmd, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var opts []ingest.Option
			if replay := cmd.String("replay"); replay != "" {
				opts = append(opts, ingest.WithReplay(replay),
					ingest.WithEnrichment(a.enrichmentProviders(cmd)...),
					ingest.WithInvalidator(a.search))
				if r := a.ratingRefresher(cmd); r != nil {
					opts = append(opts, ingest.WithRatings(r))
				}
			} else {
				if opts, err = a.ingestOptions(cmd, cfg); err != nil {
					return err
				}
				if cmd.Bool("save-raw") {
					opts = append(opts, ingest.WithSaveRaw(cmd.String("raw-data-dir")))
				}
			}
			coordinator, err := ingest.New(a.store, opts...)
			if err != nil {
				return err
			}
			report, err := coordinator.Run(ctx, window)
			if err != nil {
				return err
			}
			return writeJSON(cfg, report)
		},
	}
}

func serveCommand(cfg *rootConfig) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve search results and the admin API over HTTP",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(ctx, cmd, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ingestOpts, err := a.ingestOptions(cmd, cfg)
			if err != nil {
				return err
			}
			opts := []api.Option{
				api.WithAdminSecret(cmd.String("admin-secret")),
				api.WithAllowedOrigins(cmd.StringSlice("allowed-origins")...),
				api.WithRateLimit(cmd.Float("rate-limit"), int(cmd.Int("rate-burst"))),
				api.WithIngestOptions(ingestOpts...),
				api.WithRawDataDir(cmd.String("raw-data-dir")),
			}
			if b, ok := a.store.(api.Bootstrapper); ok {
				opts = append(opts, api.WithBootstrapper(b))
			}
			if cmd.String("admin-secret") == "" {
				slog.Warn("root: no admin secret configured, admin routes are disabled")
			}
			// Warm the cache so the first visitor does not wait for the query.
			a.search.Snapshot(ctx, false)
			return api.New(a.store, a.search, opts...).Serve(ctx, cmd.String("http-addr"))
		},
	}
}

func buildDBCommand(cfg *rootConfig) *cli.Command {
	return &cli.Command{
		Name:  "build-db",
		Usage: "create missing tables and seed the reference cinemas",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(ctx, cmd, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			b, ok := a.store.(api.Bootstrapper)
			if !ok {
				return ErrSchemaUnsupported
			}
			tables, seeded, err := b.Bootstrap(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cfg, map[string]any{"tables": tables, "seeded_cinemas": seeded})
		},
	}
}

func refreshRatingsCommand(cfg *rootConfig) *cli.Command {
	return &cli.Command{
		Name:  "refresh-ratings",
		Usage: "refresh the ratings of every movie with an upcoming showing",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(ctx, cmd, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			r := a.ratingRefresher(cmd)
			if r == nil {
				return ErrNoRatingProvider
			}
			updated, err := r.Refresh(ctx)
			if err != nil {
				return err
			}
			a.search.Invalidate()
			return writeJSON(cfg, map[string]int64{"ratings_updated": updated})
		},
	}
}

func tokenCommand(cfg *rootConfig) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "mint an admin bearer token signed with --admin-secret",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Value: "admin", Usage: "who the token is issued to"},
			&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			token, err := api.NewAdminToken(cmd.String("admin-secret"), cmd.String("subject"), cmd.Duration("ttl"))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cfg.out, token)
			return err
		},
	}
}
