package root

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/drewfead/vo-watcher/internal"
	"github.com/drewfead/vo-watcher/internal/api"
	"github.com/drewfead/vo-watcher/internal/browser"
	"github.com/drewfead/vo-watcher/internal/cache"
	"github.com/drewfead/vo-watcher/internal/enrichment"
	"github.com/drewfead/vo-watcher/internal/fetch"
	"github.com/drewfead/vo-watcher/internal/ingest"
	"github.com/drewfead/vo-watcher/internal/ratings"
	"github.com/drewfead/vo-watcher/internal/scraper"
	"github.com/drewfead/vo-watcher/internal/store/mysql"
	"github.com/urfave/cli/v3"
)

// app holds what one command invocation wired up, and closes it afterwards.
type app struct {
	store   api.Store
	search  *cache.Search
	closers []io.Closer
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

func newApp(ctx context.Context, cmd *cli.Command, cfg *rootConfig) (*app, error) {
	loc, err := time.LoadLocation(cmd.String("timezone"))
	if err != nil {
		return nil, fmt.Errorf("invalid --timezone %q: %w", cmd.String("timezone"), err)
	}
	a := &app{store: cfg.store}
	if a.store == nil {
		db, err := mysql.Open(ctx, mysql.Config{
			User:     cmd.String("db-user"),
			Password: cmd.String("db-password"),
			Host:     cmd.String("db-host"),
			Port:     cmd.String("db-port"),
			Name:     cmd.String("db-name"),
		})
		if err != nil {
			return nil, err
		}
		a.store = db
		a.closers = append(a.closers, db)
	}
	a.search = cache.New(a.store,
		cache.WithMaxAge(cmd.Duration("cache-max-age")),
		cache.WithRebuildTimeout(cmd.Duration("cache-rebuild-timeout")),
		cache.WithLocation(loc),
	)
	return a, nil
}

// strategies registers every fetch strategy the flags allow. The headless
// browser is launched on first use only.
func (a *app) strategies(cmd *cli.Command, cfg *rootConfig) fetch.Registry {
	if cfg.strategies != nil {
		return cfg.strategies
	}
	opts := []fetch.RegistryOption{
		fetch.WithStrategy(fetch.NoneName, fetch.None()),
		fetch.WithStrategy(fetch.DirectName,
			fetch.Direct(fetch.WithHTTPClient(&http.Client{Timeout: cmd.Duration("request-timeout")})),
			fetch.Cached(256, 10*time.Minute)),
	}
	b := browser.Headless()
	a.closers = append(a.closers, b)
	opts = append(opts, fetch.WithStrategy(fetch.HeadlessName, fetch.Headless(b), fetch.Cached(256, 10*time.Minute)))

	if key := cmd.String("scrapingant-key"); key != "" {
		opts = append(opts, fetch.WithStrategy(fetch.ScrapingAntName, fetch.ScrapingAnt(key,
			fetch.WithAPIURL(cmd.String("scrapingant-url")),
			fetch.WithProxyCountry(cmd.String("proxy-country")),
			fetch.WithPayload(json.RawMessage(cmd.String("scrapingant-payload"))),
			fetch.WithRateLimit(cmd.Float("scrapingant-rate"), 1),
		)))
	}
	return fetch.NewRegistry(opts...)
}

func (a *app) scraper(cmd *cli.Command, cfg *rootConfig) (*scraper.Scraper, error) {
	if !json.Valid([]byte(cmd.String("scrapingant-payload"))) {
		return nil, fmt.Errorf("invalid --scrapingant-payload: not JSON")
	}
	registry := a.strategies(cmd, cfg)
	primary, err := registry.GetStrategy(cmd.String("primary-strategy"))
	if err != nil {
		return nil, fmt.Errorf("primary strategy: %w (available: %v)", err, registry.Names())
	}
	fallback, err := registry.GetStrategy(cmd.String("fallback-strategy"))
	if err != nil {
		slog.Warn("root: fallback strategy unavailable, failed pages will not be retried",
			"strategy", cmd.String("fallback-strategy"), "error", err)
		fallback = fetch.None()
	}
	slog.Info("root: fetch strategies configured", "primary", primary.Name(), "fallback", fallback.Name())
	return scraper.New(
		scraper.WithBaseURL(cmd.String("base-url")),
		scraper.WithStrategies(primary, fallback),
		scraper.WithDelay(cmd.Duration("min-delay"), cmd.Duration("max-delay")),
	), nil
}

func (a *app) enrichmentProviders(cmd *cli.Command) []internal.EnrichmentProvider {
	token := cmd.String("tmdb-token")
	if token == "" {
		slog.Info("TMDB enrichment not configured", "reason", "no token")
		return nil
	}
	provider, err := enrichment.TMDB(token, enrichment.WithTimeout(cmd.Duration("request-timeout")))
	if err != nil {
		slog.Info("TMDB enrichment not configured", "reason", "client init failed", "error", err)
		return nil
	}
	slog.Info("TMDB enrichment configured")
	return []internal.EnrichmentProvider{provider}
}

// ratingRefresher returns nil when no OMDb key is configured.
func (a *app) ratingRefresher(cmd *cli.Command) *ratings.Refresher {
	key := cmd.String("omdb-key")
	if key == "" {
		slog.Info("OMDb ratings not configured", "reason", "no api key")
		return nil
	}
	provider := ratings.OMDb(key,
		ratings.WithOMDbURL(cmd.String("omdb-url")),
		ratings.WithOMDbTimeout(cmd.Duration("request-timeout")),
	)
	return ratings.NewRefresher(a.search, provider, a.store)
}

// ingestOptions are the coordinator options shared by scrape and POST /run.
func (a *app) ingestOptions(cmd *cli.Command, cfg *rootConfig) ([]ingest.Option, error) {
	s, err := a.scraper(cmd, cfg)
	if err != nil {
		return nil, err
	}
	opts := []ingest.Option{
		ingest.WithScraper(s),
		ingest.WithWorkers(int(cmd.Int("workers"))),
		ingest.WithEnrichment(a.enrichmentProviders(cmd)...),
		ingest.WithInvalidator(a.search),
	}
	if r := a.ratingRefresher(cmd); r != nil {
		opts = append(opts, ingest.WithRatings(r))
	}
	return opts, nil
}
