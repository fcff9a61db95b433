package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/drewfead/vo-watcher/internal"
	"github.com/drewfead/vo-watcher/internal/fetch"
)

const (
	DefaultBaseURL  = "https://www.allocine.fr/_/showtimes/theater-"
	DefaultLanguage = "ENGLISH"

	defaultMinDelay = 500 * time.Millisecond
	defaultMaxDelay = 2 * time.Second
)

// Stats counts fetch outcomes. Every URL ends up in exactly one of
// DirectSuccess, ProxiedSuccess or Failures.
type Stats struct {
	URLs           int `json:"urls"`
	DirectSuccess  int `json:"direct_success"`
	ProxiedSuccess int `json:"proxied_success"`
	Failures       int `json:"failures"`
	// Retained is the number of listings that passed the language and category filter.
	Retained  int `json:"retained"`
	Filtered  int `json:"filtered"`
	Malformed int `json:"malformed"`
}

func (s *Stats) Add(other Stats) {
	s.URLs += other.URLs
	s.DirectSuccess += other.DirectSuccess
	s.ProxiedSuccess += other.ProxiedSuccess
	s.Failures += other.Failures
	s.Retained += other.Retained
	s.Filtered += other.Filtered
	s.Malformed += other.Malformed
}

// Scraper fetches per-cinema, per-day listing pages. Each URL is tried with the
// primary strategy first; once the whole primary pass is over, every URL that
// failed is retried exactly once with the fallback strategy.
type Scraper struct {
	baseURL  string
	primary  internal.FetchStrategy
	fallback internal.FetchStrategy
	language string
	minDelay time.Duration
	maxDelay time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

type Option func(*Scraper)

// WithBaseURL sets the listing prefix; the cinema id and "/d-<offset>/" are appended.
func WithBaseURL(baseURL string) Option {
	return func(s *Scraper) {
		if baseURL != "" {
			s.baseURL = baseURL
		}
	}
}

func WithStrategies(primary, fallback internal.FetchStrategy) Option {
	return func(s *Scraper) {
		if primary != nil {
			s.primary = primary
		}
		if fallback != nil {
			s.fallback = fallback
		}
	}
}

// WithDelay sets the window of the random pause between primary attempts.
func WithDelay(minDelay, maxDelay time.Duration) Option {
	return func(s *Scraper) {
		if minDelay < 0 {
			minDelay = 0
		}
		if maxDelay < minDelay {
			maxDelay = minDelay
		}
		s.minDelay, s.maxDelay = minDelay, maxDelay
	}
}

func WithLanguage(language string) Option {
	return func(s *Scraper) {
		if language != "" {
			s.language = language
		}
	}
}

func New(opts ...Option) *Scraper {
	s := &Scraper{
		baseURL:  DefaultBaseURL,
		primary:  fetch.Direct(),
		fallback: fetch.None(),
		language: DefaultLanguage,
		minDelay: defaultMinDelay,
		maxDelay: defaultMaxDelay,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// URLs lists the page of every day offset in window, in ascending order.
func (s *Scraper) URLs(cinemaID string, window internal.DayWindow) []string {
	days := window.Days()
	urls := make([]string, 0, len(days))
	for _, d := range days {
		urls = append(urls, fmt.Sprintf("%s%s/d-%d/", s.baseURL, cinemaID, d))
	}
	return urls
}

// ScrapeCinema runs both passes for one cinema and returns the retained
// listings. Fetch failures never surface as errors; they are counted in Stats.
// Only a cancelled context stops the run early.
func (s *Scraper) ScrapeCinema(ctx context.Context, cinemaID string, window internal.DayWindow) ([]internal.RawListing, Stats) {
	urls := s.URLs(cinemaID, window)
	stats := Stats{URLs: len(urls)}
	var listings []internal.RawListing
	var failed []string

	for i, pageURL := range urls {
		if i > 0 {
			if err := s.sleep(ctx, s.jitter()); err != nil {
				failed = append(failed, urls[i:]...)
				break
			}
		}
		page, err := s.primary.FetchPage(ctx, pageURL)
		if err != nil {
			slog.Debug("scraper: primary fetch failed", "cinema_id", cinemaID, "url", pageURL, "strategy", s.primary.Name(), "error", err)
			failed = append(failed, pageURL)
			continue
		}
		stats.DirectSuccess++
		listings = append(listings, s.retain(page, &stats)...)
	}

	for _, pageURL := range failed {
		if ctx.Err() != nil {
			stats.Failures++
			continue
		}
		page, err := s.fallback.FetchPage(ctx, pageURL)
		if err != nil {
			slog.Warn("scraper: page failed under both strategies", "cinema_id", cinemaID, "url", pageURL, "strategy", s.fallback.Name(), "error", err)
			stats.Failures++
			continue
		}
		stats.ProxiedSuccess++
		listings = append(listings, s.retain(page, &stats)...)
	}

	slog.Info("scraper: cinema finished",
		"cinema_id", cinemaID,
		"urls", stats.URLs,
		"direct_success", stats.DirectSuccess,
		"proxied_success", stats.ProxiedSuccess,
		"failures", stats.Failures,
		"retained", stats.Retained,
	)
	return listings, stats
}

func (s *Scraper) retain(page internal.ListingPage, stats *Stats) []internal.RawListing {
	stats.Malformed += page.Malformed
	kept := make([]internal.RawListing, 0, len(page.Listings))
	for _, listing := range page.Listings {
		if !Retain(listing, s.language) {
			stats.Filtered++
			continue
		}
		kept = append(kept, listing)
	}
	stats.Retained += len(kept)
	return kept
}

// Retain keeps listings whose movie is in language and which carry at least one
// original-language showtime.
func Retain(listing internal.RawListing, language string) bool {
	return listing.HasLanguage(strings.TrimSpace(language)) && listing.HasOriginalShowtimes()
}

func (s *Scraper) jitter() time.Duration {
	span := s.maxDelay - s.minDelay
	if span <= 0 {
		return s.minDelay
	}
	return s.minDelay + rand.N(span)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
