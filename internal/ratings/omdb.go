package ratings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/drewfead/vo-watcher/internal"
	"github.com/drewfead/vo-watcher/internal/httputil"
)

const DefaultOMDbURL = "https://www.omdbapi.com/"

var ErrNoRatings = errors.New("no ratings")

type omdbRating struct {
	Source string `json:"Source"`
	Value  string `json:"Value"`
}

type omdbResponse struct {
	Ratings  []omdbRating `json:"Ratings"`
	Response string       `json:"Response"`
	Error    string       `json:"Error"`
}

type OMDbOption func(*omdb)

func WithOMDbURL(apiURL string) OMDbOption {
	return func(o *omdb) {
		if apiURL != "" {
			o.apiURL = apiURL
		}
	}
}

// WithOMDbTransport sets the transport under the response cache.
func WithOMDbTransport(rt http.RoundTripper) OMDbOption {
	return func(o *omdb) {
		if rt != nil {
			o.transport = rt
		}
	}
}

func WithOMDbTimeout(timeout time.Duration) OMDbOption {
	return func(o *omdb) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

type omdb struct {
	apiURL    string
	apiKey    string
	transport http.RoundTripper
	timeout   time.Duration
	client    *http.Client
}

// OMDb returns a rating provider backed by the OMDb API. Responses are cached
// for an hour so repeated refreshes within a run do not spend quota.
func OMDb(apiKey string, opts ...OMDbOption) internal.RatingProvider {
	o := &omdb{
		apiURL:    DefaultOMDbURL,
		apiKey:    apiKey,
		transport: http.DefaultTransport,
		timeout:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.client = &http.Client{
		Timeout: o.timeout,
		Transport: &httputil.CacheTransport{
			Base:         o.transport,
			TTL:          time.Hour,
			RedactParams: []string{"apikey"},
		},
	}
	return o
}

func (o *omdb) Ratings(ctx context.Context, imdbID string) (internal.Ratings, error) {
	u, err := url.Parse(o.apiURL)
	if err != nil {
		return internal.Ratings{}, fmt.Errorf("invalid omdb url: %w", err)
	}
	q := u.Query()
	q.Set("apikey", o.apiKey)
	q.Set("i", imdbID)
	u.RawQuery = q.Encode()
	label := httputil.RedactURL(u.String(), "apikey")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return internal.Ratings{}, fmt.Errorf("failed to build request for %s: %w", label, err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return internal.Ratings{}, fmt.Errorf("failed to fetch %s: %w", label, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return internal.Ratings{}, fmt.Errorf("omdb returned status %d for %s", resp.StatusCode, imdbID)
	}

	var body omdbResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return internal.Ratings{}, fmt.Errorf("failed to decode omdb response for %s: %w", imdbID, err)
	}
	if body.Response == "False" {
		return internal.Ratings{}, fmt.Errorf("%w: %s: %s", ErrNoRatings, imdbID, body.Error)
	}

	ratings := fromSources(body.Ratings)
	if ratings.Empty() {
		return internal.Ratings{}, fmt.Errorf("%w: %s", ErrNoRatings, imdbID)
	}
	return ratings, nil
}

// fromSources maps each recognized source to its rating field. The first
// parseable value per source wins.
func fromSources(sources []omdbRating) internal.Ratings {
	var r internal.Ratings
	for _, s := range sources {
		v, ok := ParseValue(s.Source, s.Value)
		if !ok {
			continue
		}
		switch s.Source {
		case SourceIMDb:
			if r.IMDb == nil {
				r.IMDb = &v
			}
		case SourceRottenTomatoes:
			if r.RottenTomatoes == nil {
				r.RottenTomatoes = &v
			}
		case SourceMetacritic:
			if r.Metacritic == nil {
				r.Metacritic = &v
			}
		}
	}
	return r
}
