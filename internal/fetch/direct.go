package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github.com/drewfead/vo-watcher/internal"
)

const (
	DirectName = "direct"

	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 16 << 20
)

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

type directStrategy struct {
	client     *http.Client
	userAgents []string
}

type DirectOption func(*directStrategy)

// WithHTTPClient sets the client (e.g. httptest.Server.Client() in tests).
func WithHTTPClient(client *http.Client) DirectOption {
	return func(s *directStrategy) {
		if client != nil {
			s.client = client
		}
	}
}

func WithUserAgents(agents ...string) DirectOption {
	return func(s *directStrategy) {
		if len(agents) > 0 {
			s.userAgents = agents
		}
	}
}

// Direct fetches listing pages straight from the source with a browser-like identity.
func Direct(opts ...DirectOption) internal.FetchStrategy {
	s := &directStrategy{
		client:     &http.Client{Timeout: defaultTimeout},
		userAgents: defaultUserAgents,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *directStrategy) Name() string {
	return DirectName
}

func (s *directStrategy) FetchPage(ctx context.Context, pageURL string) (internal.ListingPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return internal.ListingPage{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgents[rand.IntN(len(s.userAgents))])
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	body, err := doRequest(s.client, req, pageURL)
	if err != nil {
		return internal.ListingPage{}, err
	}
	slog.Debug("fetch: direct response", "url", pageURL, "bytes", len(body))
	return DecodePage(pageURL, body)
}

// doRequest sends req and returns the body of a 200 response. Errors mention
// label rather than the request URL, which may carry credentials.
func doRequest(client *http.Client, req *http.Request, label string) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("failed to fetch %s: %w", label, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &HTTPStatusError{URL: label, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", label, err)
	}
	return body, nil
}
