// Package ingest runs one ingestion: scrape (or replay) every known cinema,
// normalize and deduplicate the listings, persist what is new, then refresh
// ratings.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/drewfead/vo-watcher/internal"
	"github.com/drewfead/vo-watcher/internal/dedup"
	"github.com/drewfead/vo-watcher/internal/enrichment"
	"github.com/drewfead/vo-watcher/internal/normalize"
	"github.com/drewfead/vo-watcher/internal/rawdata"
	"github.com/drewfead/vo-watcher/internal/scraper"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 4

var ErrConflictingRawDataOptions = errors.New("saving raw data and replaying raw data are mutually exclusive")

// CinemaScraper fetches the retained raw listings of one cinema.
type CinemaScraper interface {
	ScrapeCinema(ctx context.Context, cinemaID string, window internal.DayWindow) ([]internal.RawListing, scraper.Stats)
}

type RatingRefresher interface {
	Refresh(ctx context.Context) (int64, error)
}

// Invalidator is told when new rows were written.
type Invalidator interface {
	Invalidate()
}

type Option func(*Coordinator)

func WithScraper(s CinemaScraper) Option {
	return func(c *Coordinator) {
		c.scraper = s
	}
}

// WithWorkers bounds how many cinemas are scraped concurrently.
func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

func WithEnrichment(providers ...internal.EnrichmentProvider) Option {
	return func(c *Coordinator) {
		c.providers = append(c.providers, providers...)
	}
}

func WithRatings(r RatingRefresher) Option {
	return func(c *Coordinator) {
		c.ratings = r
	}
}

func WithInvalidator(i Invalidator) Option {
	return func(c *Coordinator) {
		c.invalidator = i
	}
}

// WithSaveRaw writes the scraped listings under dir after the run.
func WithSaveRaw(dir string) Option {
	return func(c *Coordinator) {
		c.saveRawDir = dir
	}
}

// WithReplay reads listings from a saved capture instead of scraping.
func WithReplay(path string) Option {
	return func(c *Coordinator) {
		c.replayPath = path
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

type Coordinator struct {
	store       internal.Store
	scraper     CinemaScraper
	normalizer  *normalize.Normalizer
	providers   []internal.EnrichmentProvider
	ratings     RatingRefresher
	invalidator Invalidator
	workers     int
	saveRawDir  string
	replayPath  string
	now         func() time.Time
}

// New validates the options without touching the network or the store.
func New(store internal.Store, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		store:      store,
		normalizer: normalize.New(),
		workers:    DefaultWorkers,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.saveRawDir != "" && c.replayPath != "" {
		return nil, ErrConflictingRawDataOptions
	}
	if c.scraper == nil && c.replayPath == "" {
		c.scraper = scraper.New()
	}
	return c, nil
}

// Report summarizes one run.
type Report struct {
	RunID            string             `json:"run_id"`
	Window           internal.DayWindow `json:"window"`
	Replay           string             `json:"replay,omitempty"`
	Cinemas          int                `json:"cinemas"`
	Scrape           scraper.Stats      `json:"scrape"`
	Listings         int                `json:"listings"`
	DroppedListings  int                `json:"dropped_listings"`
	NewMovies        int                `json:"new_movies"`
	NewShowings      int                `json:"new_showings"`
	InsertedMovies   int64              `json:"inserted_movies"`
	InsertedShowings int64              `json:"inserted_showings"`
	RatingsUpdated   int64              `json:"ratings_updated"`
	RawDataPath      string             `json:"raw_data_path,omitempty"`
	Errors           []string           `json:"errors,omitempty"`
	StartedAt        time.Time          `json:"started_at"`
	Duration         time.Duration      `json:"duration"`
}

// run is the mutable state of one Run, shared by the cinema workers.
type run struct {
	movies   *dedup.Store[internal.Movie]
	showings *dedup.Store[internal.Showing]

	mu      sync.Mutex
	report  *Report
	capture internal.RawCapture
}

func (r *run) fail(stage string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Errors = append(r.report.Errors, fmt.Sprintf("%s: %v", stage, err))
}

// Run ingests window. Failures inside a stage are logged and recorded in the
// report; only failing to load the known cinemas and ids aborts the run.
func (c *Coordinator) Run(ctx context.Context, window internal.DayWindow) (Report, error) {
	report := Report{
		RunID:     uuid.NewString(),
		Window:    window,
		Replay:    c.replayPath,
		StartedAt: c.now(),
	}
	logger := slog.With("run_id", report.RunID)
	logger.Info("ingest: run started", "start", window.Start, "end", window.End, "replay", c.replayPath)

	cinemaIDs, err := c.store.CinemaIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("ingest: load cinemas: %w", err)
	}
	r := &run{report: &report, capture: make(internal.RawCapture)}
	r.movies, err = dedup.Load(ctx, "movies", c.store.MovieIDs,
		func(m internal.Movie) string { return m.ID },
		c.flushMovies)
	if err != nil {
		return report, fmt.Errorf("ingest: %w", err)
	}
	r.showings, err = dedup.Load(ctx, "showings", c.store.ShowingFingerprints,
		internal.Showing.Fingerprint,
		c.store.InsertShowings)
	if err != nil {
		return report, fmt.Errorf("ingest: %w", err)
	}

	if c.replayPath != "" {
		c.replay(r, cinemaIDs)
	} else {
		c.scrape(ctx, r, cinemaIDs, window)
	}

	// Movies first: showings reference them.
	if report.InsertedMovies, err = r.movies.Flush(ctx); err != nil {
		r.fail("flush movies", err)
	}
	if report.InsertedShowings, err = r.showings.Flush(ctx); err != nil {
		r.fail("flush showings", err)
	}
	if c.invalidator != nil && (report.InsertedMovies > 0 || report.InsertedShowings > 0) {
		c.invalidator.Invalidate()
	}

	if c.ratings != nil {
		if report.RatingsUpdated, err = c.ratings.Refresh(ctx); err != nil {
			logger.Error("ingest: rating refresh failed", "error", err)
			r.fail("refresh ratings", err)
		}
		if c.invalidator != nil && report.RatingsUpdated > 0 {
			c.invalidator.Invalidate()
		}
	}

	if c.saveRawDir != "" {
		path, err := rawdata.Save(c.saveRawDir, report.RunID, report.StartedAt, r.capture)
		if err != nil {
			logger.Error("ingest: saving raw data failed", "error", err)
			r.fail("save raw data", err)
		} else {
			report.RawDataPath = path
		}
	}

	report.Duration = c.now().Sub(report.StartedAt)
	logger.Info("ingest: run finished",
		"cinemas", report.Cinemas,
		"listings", report.Listings,
		"new_movies", report.NewMovies,
		"new_showings", report.NewShowings,
		"inserted_movies", report.InsertedMovies,
		"inserted_showings", report.InsertedShowings,
		"direct_success", report.Scrape.DirectSuccess,
		"proxied_success", report.Scrape.ProxiedSuccess,
		"failures", report.Scrape.Failures,
		"errors", len(report.Errors),
		"duration", report.Duration,
	)
	return report, nil
}

// flushMovies enriches only the movies that are new to the store, then inserts them.
func (c *Coordinator) flushMovies(ctx context.Context, movies []internal.Movie) (int64, error) {
	return c.store.InsertMovies(ctx, enrichment.EnrichAll(ctx, movies, c.providers...))
}

func (c *Coordinator) scrape(ctx context.Context, r *run, cinemaIDs []string, window internal.DayWindow) {
	var g errgroup.Group
	g.SetLimit(c.workers)
	for _, cinemaID := range cinemaIDs {
		g.Go(func() error {
			listings, stats := c.scraper.ScrapeCinema(ctx, cinemaID, window)
			r.mu.Lock()
			r.report.Scrape.Add(stats)
			if c.saveRawDir != "" {
				r.capture[cinemaID] = listings
			}
			r.mu.Unlock()
			c.process(r, cinemaID, listings)
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Coordinator) replay(r *run, cinemaIDs []string) {
	capture, err := rawdata.Load(c.replayPath)
	if err != nil {
		slog.Error("ingest: replay failed", "path", c.replayPath, "error", err)
		r.fail("replay", err)
		return
	}
	known := make(map[string]bool, len(cinemaIDs))
	for _, id := range cinemaIDs {
		known[id] = true
	}
	for _, cinemaID := range slices.Sorted(maps.Keys(capture.Cinemas)) {
		if !known[cinemaID] {
			slog.Warn("ingest: skipping replayed cinema that is not in the store", "cinema_id", cinemaID)
			continue
		}
		c.process(r, cinemaID, capture.Cinemas[cinemaID])
	}
}

// process normalizes one cinema's listings and queues what is new.
func (c *Coordinator) process(r *run, cinemaID string, listings []internal.RawListing) {
	results := c.normalizer.Listings(cinemaID, listings)
	var newMovies, newShowings int
	for _, res := range results {
		if r.movies.AddIfNew(res.Movie) {
			newMovies++
		}
		for _, showing := range res.Showings {
			if r.showings.AddIfNew(showing) {
				newShowings++
			}
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Cinemas++
	r.report.Listings += len(listings)
	r.report.DroppedListings += len(listings) - len(results)
	r.report.NewMovies += newMovies
	r.report.NewShowings += newShowings
}
