package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/drewfead/vo-watcher/internal"
	"golang.org/x/time/rate"
)

const (
	ScrapingAntName = "scrapingant"

	DefaultScrapingAntURL = "https://api.scrapingant.com/v2/general"
	defaultProxyCountry   = "FR"
)

type scrapingAntStrategy struct {
	apiURL       string
	apiKey       string
	proxyCountry string
	payload      json.RawMessage
	client       *http.Client
	limiter      *rate.Limiter
}

type ScrapingAntOption func(*scrapingAntStrategy)

func WithAPIURL(apiURL string) ScrapingAntOption {
	return func(s *scrapingAntStrategy) {
		if apiURL != "" {
			s.apiURL = apiURL
		}
	}
}

func WithProxyCountry(country string) ScrapingAntOption {
	return func(s *scrapingAntStrategy) {
		if country != "" {
			s.proxyCountry = country
		}
	}
}

// WithPayload sets the JSON body posted with every request (e.g. custom headers for the target).
func WithPayload(payload json.RawMessage) ScrapingAntOption {
	return func(s *scrapingAntStrategy) {
		if len(payload) > 0 {
			s.payload = payload
		}
	}
}

// WithRateLimit caps requests per second to the proxy service. Zero disables limiting.
func WithRateLimit(perSecond float64, burst int) ScrapingAntOption {
	return func(s *scrapingAntStrategy) {
		if perSecond <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func WithProxyClient(client *http.Client) ScrapingAntOption {
	return func(s *scrapingAntStrategy) {
		if client != nil {
			s.client = client
		}
	}
}

// ScrapingAnt routes page fetches through the ScrapingAnt anti-blocking proxy.
// It keeps its own HTTP client so that retries never share connections with
// the direct strategy.
func ScrapingAnt(apiKey string, opts ...ScrapingAntOption) internal.FetchStrategy {
	s := &scrapingAntStrategy{
		apiURL:       DefaultScrapingAntURL,
		apiKey:       apiKey,
		proxyCountry: defaultProxyCountry,
		payload:      json.RawMessage(`{}`),
		client:       &http.Client{Timeout: 2 * defaultTimeout},
		limiter:      rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *scrapingAntStrategy) Name() string {
	return ScrapingAntName
}

func (s *scrapingAntStrategy) FetchPage(ctx context.Context, pageURL string) (internal.ListingPage, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return internal.ListingPage{}, fmt.Errorf("scrapingant limiter: %w", err)
		}
	}
	endpoint, err := url.Parse(s.apiURL)
	if err != nil {
		return internal.ListingPage{}, fmt.Errorf("invalid scrapingant url: %w", err)
	}
	q := endpoint.Query()
	q.Set("url", pageURL)
	q.Set("x-api-key", s.apiKey)
	q.Set("proxy_country", s.proxyCountry)
	q.Set("browser", "false")
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(s.payload))
	if err != nil {
		return internal.ListingPage{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := doRequest(s.client, req, pageURL)
	if err != nil {
		return internal.ListingPage{}, err
	}
	slog.Debug("fetch: scrapingant response", "url", pageURL, "bytes", len(body))
	return DecodePage(pageURL, body)
}
