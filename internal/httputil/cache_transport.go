package httputil

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2"
)

const defaultLRUMaxEntries = 1000

// CacheTransport is an http.RoundTripper that caches successful GET responses
// in an LRU keyed by method and URL. Misses go to Base.
//
// Query parameters listed in RedactParams (API keys, typically) are blanked in
// the key, so keys are safe to log from OnCacheHit.
type CacheTransport struct {
	Base http.RoundTripper

	// MaxEntries is the LRU size. Zero means 1000.
	MaxEntries int

	// TTL applies when the response carries no max-age. Zero means entries
	// only leave through LRU eviction.
	TTL time.Duration

	RedactParams []string

	// OnCacheHit, if set, is called for every RoundTrip with the cache key and whether it was a hit.
	OnCacheHit func(cacheKey string, hit bool)

	// Now is the clock used for expiry. Nil means time.Now.
	Now func() time.Time

	initOnce sync.Once
	cache    *lru.Cache[string, *cachedResponse]
	initErr  error
}

type cachedResponse struct {
	Status  int
	Header  http.Header
	Body    []byte
	Expires time.Time // zero = no expiration (honor only LRU)
}

func (t *CacheTransport) ensureCache() error {
	t.initOnce.Do(func() {
		size := t.MaxEntries
		if size <= 0 {
			size = defaultLRUMaxEntries
		}
		t.cache, t.initErr = lru.New[string, *cachedResponse](size)
	})
	return t.initErr
}

func (t *CacheTransport) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// Key returns the cache key for req, with redacted parameters blanked.
func (t *CacheTransport) Key(req *http.Request) string {
	u := *req.URL
	if len(t.RedactParams) > 0 && u.RawQuery != "" {
		q := u.Query()
		for _, p := range t.RedactParams {
			if q.Has(p) {
				q.Set(p, "REDACTED")
			}
		}
		u.RawQuery = q.Encode()
	}
	u.User = nil
	return req.Method + " " + u.String()
}

func (t *CacheTransport) hit(key string, hit bool) {
	if t.OnCacheHit != nil {
		t.OnCacheHit(key, hit)
	}
}

// RoundTrip implements http.RoundTripper.
func (t *CacheTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.ensureCache(); err != nil {
		return nil, err
	}
	// Redaction must not merge distinct credentials into one entry.
	storeKey := req.Method + " " + req.URL.String()
	key := t.Key(req)
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	if req.Method == http.MethodGet && !requestWantsFresh(req) {
		if entry, ok := t.cache.Get(storeKey); ok {
			if entry.Expires.IsZero() || t.now().Before(entry.Expires) {
				t.hit(key, true)
				return responseFromCache(req, entry), nil
			}
			t.cache.Remove(storeKey)
		}
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	t.hit(key, false)
	if req.Method != http.MethodGet || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, nil
	}
	noStore, maxAge := responseCacheControl(resp.Header)
	if noStore {
		return resp, nil
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	t.cache.Add(storeKey, &cachedResponse{
		Status:  resp.StatusCode,
		Header:  resp.Header.Clone(),
		Body:    body,
		Expires: t.expires(maxAge),
	})
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	return resp, nil
}

func (t *CacheTransport) expires(maxAgeSeconds int) time.Time {
	if maxAgeSeconds > 0 {
		return t.now().Add(time.Duration(maxAgeSeconds) * time.Second)
	}
	if t.TTL > 0 {
		return t.now().Add(t.TTL)
	}
	return time.Time{}
}

func responseFromCache(req *http.Request, entry *cachedResponse) *http.Response {
	return &http.Response{
		Status:        strconv.Itoa(entry.Status) + " " + http.StatusText(entry.Status),
		StatusCode:    entry.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        entry.Header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(entry.Body)),
		ContentLength: int64(len(entry.Body)),
		Request:       req,
	}
}

// requestWantsFresh reports whether the request's Cache-Control asks to bypass the cache.
func requestWantsFresh(req *http.Request) bool {
	for part := range strings.SplitSeq(req.Header.Get("Cache-Control"), ",") {
		part = strings.TrimSpace(part)
		if part == "no-cache" {
			return true
		}
		if after, ok := strings.CutPrefix(part, "max-age="); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(after)); err == nil && n <= 0 {
				return true
			}
		}
	}
	return false
}

// responseCacheControl returns whether the response forbids caching and its max-age in seconds.
func responseCacheControl(header http.Header) (noStore bool, maxAge int) {
	for _, cc := range header.Values("Cache-Control") {
		for part := range strings.SplitSeq(cc, ",") {
			part = strings.TrimSpace(strings.ToLower(part))
			switch {
			case part == "no-store" || part == "no-cache":
				noStore = true
			case strings.HasPrefix(part, "s-maxage="):
				if n, err := strconv.Atoi(strings.TrimPrefix(part, "s-maxage=")); err == nil && n > 0 {
					maxAge = n
				}
			case strings.HasPrefix(part, "max-age="):
				if n, err := strconv.Atoi(strings.TrimPrefix(part, "max-age=")); err == nil && n > 0 && maxAge == 0 {
					maxAge = n
				}
			}
		}
	}
	return noStore, maxAge
}

// RedactURL blanks the given query parameters of rawURL, for logging.
func RedactURL(rawURL string, params ...string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	for _, p := range params {
		if q.Has(p) {
			q.Set(p, "REDACTED")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
