package enrichment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	tmdb "github.com/cyruzin/golang-tmdb"
	"github.com/drewfead/vo-watcher/internal"
	"github.com/drewfead/vo-watcher/internal/httputil"
	"github.com/drewfead/vo-watcher/internal/normalize"
)

const (
	ProviderTMDB = "tmdb"

	imageBaseURL = "https://image.tmdb.org/t/p/"
	posterHiRes  = "w780"
	posterLoRes  = "w185"
	imdbTitleURL = "https://www.imdb.com/title/"

	// yearSkew is how many years after the resolved release year are also
	// searched, to absorb production-vs-release differences.
	yearSkew = 2
)

var ErrNoMatch = errors.New("no tmdb match")

// httpRequestRecord is appended by auditTransport for each outgoing request.
type httpRequestRecord struct {
	Method string `json:"method"`
	URL    string `json:"url"`
	Status int    `json:"status"`
}

type auditTransport struct {
	base http.RoundTripper
	e    *tmdbEnrichment
}

func (t *auditTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if t.e.auditRequests != nil {
		*t.e.auditRequests = append(*t.e.auditRequests, httpRequestRecord{
			Method: req.Method,
			URL:    httputil.RedactURL(req.URL.String(), "api_key"),
			Status: resp.StatusCode,
		})
	}
	return resp, nil
}

type cacheEvent struct {
	Key string
	Hit bool
}

// tmdbEnrichment is safe for concurrent use; Enrich calls are serialized
// because the audit recorders are per call.
type tmdbEnrichment struct {
	client *tmdb.Client
	mu     sync.Mutex

	// Set per Enrich call for audit; cleared when done.
	auditRequests *[]httpRequestRecord
	cacheEvents   *[]cacheEvent
}

type TMDBOption func(*tmdbConfig)

type tmdbConfig struct {
	transport http.RoundTripper
	cacheTTL  time.Duration
	timeout   time.Duration
}

// WithTransport sets the transport under the response cache (e.g. to reach a test server).
func WithTransport(rt http.RoundTripper) TMDBOption {
	return func(c *tmdbConfig) {
		if rt != nil {
			c.transport = rt
		}
	}
}

func WithCacheTTL(ttl time.Duration) TMDBOption {
	return func(c *tmdbConfig) {
		c.cacheTTL = ttl
	}
}

func WithTimeout(timeout time.Duration) TMDBOption {
	return func(c *tmdbConfig) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// TMDB returns a provider that matches movies by original title against
// The Movie Database and fills posters, IMDb link, tagline, runtime,
// synopsis and origin countries. token is a v4 read access token.
func TMDB(token string, opts ...TMDBOption) (internal.EnrichmentProvider, error) {
	cfg := &tmdbConfig{
		transport: http.DefaultTransport,
		cacheTTL:  24 * time.Hour,
		timeout:   15 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	tmdbClient, err := tmdb.InitV4(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize TMDB client: %w", err)
	}
	e := &tmdbEnrichment{client: tmdbClient}
	cacheTransport := &httputil.CacheTransport{
		Base:         cfg.transport,
		TTL:          cfg.cacheTTL,
		RedactParams: []string{"api_key"},
		OnCacheHit: func(cacheKey string, hit bool) {
			if e.cacheEvents != nil {
				*e.cacheEvents = append(*e.cacheEvents, cacheEvent{Key: cacheKey, Hit: hit})
			}
		},
	}
	tmdbClient.SetClientConfig(http.Client{
		Timeout:   cfg.timeout,
		Transport: &auditTransport{base: cacheTransport, e: e},
	})
	return e, nil
}

// titleEqual normalizes both strings (collapse spaces, case-insensitive) for comparison.
func titleEqual(a, b string) bool {
	norm := func(s string) string {
		return strings.ToUpper(strings.Join(strings.Fields(s), " "))
	}
	return norm(a) == norm(b)
}

// pickBestResult prefers an exact original-title match, then an exact title
// match, then the first result. exact reports whether a title matched.
func pickBestResult(results []tmdb.MovieResult, originalTitle string) (best *tmdb.MovieResult, exact bool) {
	if len(results) == 0 {
		return nil, false
	}
	for i := range results {
		if titleEqual(results[i].OriginalTitle, originalTitle) {
			return &results[i], true
		}
	}
	for i := range results {
		if titleEqual(results[i].Title, originalTitle) {
			return &results[i], true
		}
	}
	return &results[0], false
}

// searchYears lists the year constraints to try in order; "" means unconstrained.
func searchYears(release *time.Time) []string {
	var years []string
	if release != nil {
		for skew := 0; skew <= yearSkew; skew++ {
			years = append(years, strconv.Itoa(release.Year()+skew))
		}
	}
	return append(years, "")
}

// search tries every year constraint until a title matches exactly. Without
// one, the first result of the earliest search that returned any is used.
func (e *tmdbEnrichment) search(title string, release *time.Time) (*tmdb.MovieResult, string, error) {
	var (
		lastErr      error
		fallback     *tmdb.MovieResult
		fallbackYear string
	)
	for _, year := range searchYears(release) {
		options := map[string]string{"language": "en-US", "include_adult": "false"}
		if year != "" {
			options["year"] = year
		}
		res, err := e.client.GetSearchMovies(title, options)
		if err != nil {
			lastErr = err
			continue
		}
		best, exact := pickBestResult(res.Results, title)
		if exact {
			return best, year, nil
		}
		if best != nil && fallback == nil {
			fallback, fallbackYear = best, year
		}
	}
	if fallback != nil {
		return fallback, fallbackYear, nil
	}
	if lastErr != nil {
		return nil, "", fmt.Errorf("failed to search for %q: %w", title, lastErr)
	}
	return nil, "", fmt.Errorf("%w: %q", ErrNoMatch, title)
}

var imdbIDPattern = regexp.MustCompile(`^tt\d+$`)

func (e *tmdbEnrichment) Enrich(ctx context.Context, movie internal.EnrichedMovie) (internal.EnrichedMovie, error) {
	if err := ctx.Err(); err != nil {
		return movie, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var httpRequests []httpRequestRecord
	var cacheEvents []cacheEvent
	e.auditRequests = &httpRequests
	e.cacheEvents = &cacheEvents
	defer func() {
		e.auditRequests = nil
		e.cacheEvents = nil
	}()

	annotations := make(map[string]any)
	title := movie.Movie.OriginalTitle
	if title == "" {
		annotations["skipped"] = "no original title"
		movie.Audits = append(movie.Audits, internal.EnrichmentAudit{
			Provider:    ProviderTMDB,
			Result:      internal.EnrichmentResultSuccess,
			At:          time.Now(),
			Annotations: annotations,
		})
		return movie, nil
	}

	best, year, err := e.search(title, movie.Movie.ReleaseDate)
	if err != nil {
		return movie, err
	}
	annotations["match"] = map[string]any{"tmdb_id": best.ID, "title": best.Title, "year": year}

	m := &movie.Movie
	m.TMDBID = best.ID
	if best.PosterPath != "" {
		m.PosterHiRes = imageBaseURL + posterHiRes + best.PosterPath
		m.PosterLoRes = imageBaseURL + posterLoRes + best.PosterPath
	}
	if strings.TrimSpace(best.Overview) != "" {
		m.Synopsis = truncate(strings.TrimSpace(best.Overview), 1000)
	}

	result := internal.EnrichmentResultSuccess
	details, err := e.client.GetMovieDetails(int(best.ID), map[string]string{"language": "en-US"})
	if err != nil {
		result = internal.EnrichmentResultPartialSuccess
		annotations["details_error"] = err.Error()
	} else {
		if imdbIDPattern.MatchString(details.IMDbID) {
			m.IMDbURL = imdbTitleURL + details.IMDbID + "/"
		}
		m.Tagline = truncate(strings.TrimSpace(details.Tagline), 255)
		if m.Runtime == 0 && details.Runtime > 0 {
			m.Runtime = details.Runtime
		}
		var countries []string
		for _, c := range details.ProductionCountries {
			if name := strings.TrimSpace(c.Name); name != "" {
				countries = append(countries, name)
			}
		}
		if countries = normalize.CheckedList(m.ID, "origin_country", countries); len(countries) > 0 {
			m.OriginCountries = countries
		}
	}

	hits := 0
	for _, ev := range cacheEvents {
		if ev.Hit {
			hits++
		}
	}
	annotations["cache"] = map[string]any{"requests": len(cacheEvents), "hits": hits}
	if len(httpRequests) > 0 {
		reqs := make([]map[string]any, len(httpRequests))
		for i, r := range httpRequests {
			reqs[i] = map[string]any{"method": r.Method, "url": r.URL, "status": r.Status}
		}
		annotations["http_requests"] = reqs
	}

	movie.Audits = append(movie.Audits, internal.EnrichmentAudit{
		Provider:    ProviderTMDB,
		Result:      result,
		At:          time.Now(),
		Annotations: annotations,
	})
	return movie, nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
