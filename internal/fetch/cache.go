package fetch

import (
	"context"
	"time"

	"github.com/drewfead/vo-watcher/internal"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cached returns middleware that wraps a strategy with LRU+TTL caching of
// successful pages, keyed by URL. Failures are never cached.
//
//	fetch.NewRegistry(fetch.WithStrategy(fetch.DirectName, fetch.Direct(), fetch.Cached(256, 10*time.Minute)))
//
// maxEntries is the LRU size; ttl is how long entries stay valid (zero = no expiration).
func Cached(maxEntries int, ttl time.Duration) StrategyMiddleware {
	return func(inner internal.FetchStrategy) internal.FetchStrategy {
		if inner == nil {
			return nil
		}
		if maxEntries <= 0 {
			maxEntries = 64
		}
		return &cachingStrategy{
			inner: inner,
			cache: expirable.NewLRU[string, internal.ListingPage](maxEntries, nil, ttl),
		}
	}
}

type cachingStrategy struct {
	inner internal.FetchStrategy
	cache *expirable.LRU[string, internal.ListingPage]
}

func (c *cachingStrategy) Name() string {
	return c.inner.Name()
}

func (c *cachingStrategy) FetchPage(ctx context.Context, pageURL string) (internal.ListingPage, error) {
	if page, ok := c.cache.Get(pageURL); ok {
		return page, nil
	}
	page, err := c.inner.FetchPage(ctx, pageURL)
	if err != nil {
		return internal.ListingPage{}, err
	}
	c.cache.Add(pageURL, page)
	return page, nil
}
