package fetch

import (
	"context"
	"fmt"

	"github.com/drewfead/vo-watcher/internal"
	"github.com/drewfead/vo-watcher/internal/browser"
)

const HeadlessName = "headless"

type headlessStrategy struct {
	browser browser.Interface
}

// Headless renders the listing URL in a shared headless browser and decodes the
// JSON the page displays.
func Headless(b browser.Interface) internal.FetchStrategy {
	return &headlessStrategy{browser: b}
}

func (s *headlessStrategy) Name() string {
	return HeadlessName
}

func (s *headlessStrategy) FetchPage(ctx context.Context, pageURL string) (internal.ListingPage, error) {
	html, err := s.browser.PageHTML(ctx, pageURL)
	if err != nil {
		return internal.ListingPage{}, fmt.Errorf("failed to render %s: %w", pageURL, err)
	}
	return DecodePage(pageURL, []byte(html))
}
