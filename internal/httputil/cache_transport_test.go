package httputil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCountingServer(t *testing.T, cacheControl string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if cacheControl != "" {
			w.Header().Set("Cache-Control", cacheControl)
		}
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func get(t *testing.T, client *http.Client, url string) (int, string) {
	t.Helper()
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestUnit_CacheTransport_ServesRepeatsFromCache(t *testing.T) {
	server, hits := newCountingServer(t, "")
	var events []bool
	transport := &CacheTransport{
		Base:       server.Client().Transport,
		OnCacheHit: func(_ string, hit bool) { events = append(events, hit) },
	}
	client := &http.Client{Transport: transport}

	for range 3 {
		status, body := get(t, client, server.URL+"/movie/1")
		assert.Equal(t, http.StatusOK, status)
		assert.JSONEq(t, `{"ok":true}`, body)
	}
	assert.EqualValues(t, 1, hits.Load())
	assert.Equal(t, []bool{false, true, true}, events)
}

func TestUnit_CacheTransport_SkipsErrorsAndNoStore(t *testing.T) {
	server, hits := newCountingServer(t, "")
	client := &http.Client{Transport: &CacheTransport{Base: server.Client().Transport}}
	get(t, client, server.URL+"/missing")
	get(t, client, server.URL+"/missing")
	assert.EqualValues(t, 2, hits.Load(), "non-2xx responses are not cached")

	noStore, noStoreHits := newCountingServer(t, "no-store")
	client = &http.Client{Transport: &CacheTransport{Base: noStore.Client().Transport}}
	get(t, client, noStore.URL+"/a")
	get(t, client, noStore.URL+"/a")
	assert.EqualValues(t, 2, noStoreHits.Load())
}

func TestUnit_CacheTransport_TTL(t *testing.T) {
	server, hits := newCountingServer(t, "")
	now := time.Date(2025, 3, 11, 12, 0, 0, 0, time.UTC)
	transport := &CacheTransport{
		Base: server.Client().Transport,
		TTL:  time.Hour,
		Now:  func() time.Time { return now },
	}
	client := &http.Client{Transport: transport}

	get(t, client, server.URL+"/a")
	now = now.Add(59 * time.Minute)
	get(t, client, server.URL+"/a")
	assert.EqualValues(t, 1, hits.Load())

	now = now.Add(2 * time.Minute)
	get(t, client, server.URL+"/a")
	assert.EqualValues(t, 2, hits.Load(), "expired entry is refetched")
}

func TestUnit_CacheTransport_RedactsKeys(t *testing.T) {
	server, hits := newCountingServer(t, "")
	var keys []string
	transport := &CacheTransport{
		Base:         server.Client().Transport,
		RedactParams: []string{"apikey"},
		OnCacheHit:   func(key string, _ bool) { keys = append(keys, key) },
	}
	client := &http.Client{Transport: transport}

	get(t, client, server.URL+"/?apikey=one&i=tt0111161")
	get(t, client, server.URL+"/?apikey=two&i=tt0111161")

	assert.EqualValues(t, 2, hits.Load(), "different credentials are different entries")
	require.Len(t, keys, 2)
	for _, key := range keys {
		assert.NotContains(t, key, "one")
		assert.NotContains(t, key, "two")
		assert.Contains(t, key, "tt0111161")
	}
}

func TestUnit_CacheTransport_RequestNoCache(t *testing.T) {
	server, hits := newCountingServer(t, "")
	client := &http.Client{Transport: &CacheTransport{Base: server.Client().Transport}}
	get(t, client, server.URL+"/a")

	req, err := http.NewRequest(http.MethodGet, server.URL+"/a", nil)
	require.NoError(t, err)
	req.Header.Set("Cache-Control", "no-cache")
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.EqualValues(t, 2, hits.Load())
}

func TestUnit_RedactURL(t *testing.T) {
	assert.Equal(t, "https://www.omdbapi.com/?apikey=REDACTED&i=tt1", RedactURL("https://www.omdbapi.com/?apikey=k&i=tt1", "apikey"))
}
