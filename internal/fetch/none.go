package fetch

import (
	"context"
	"log/slog"

	"github.com/drewfead/vo-watcher/internal"
)

const NoneName = "none"

type noneStrategy struct{}

func (s *noneStrategy) Name() string {
	return NoneName
}

func (s *noneStrategy) FetchPage(ctx context.Context, pageURL string) (internal.ListingPage, error) {
	slog.Debug("fetch: no strategy configured", "url", pageURL)
	return internal.ListingPage{}, ErrNoStrategy
}

// None fails every fetch. It stands in for an unconfigured fallback.
func None() internal.FetchStrategy {
	return &noneStrategy{}
}
