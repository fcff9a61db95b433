package internal

import "context"

// ListingPage is the decoded payload of one per-cinema, per-day listing URL.
type ListingPage struct {
	URL      string       `json:"url"`
	Listings []RawListing `json:"results"`
	// Malformed counts result entries that could not be decoded as listings.
	Malformed int `json:"-"`
}

// FetchStrategy performs one attempt at retrieving a listing page over a
// specific transport. Ordinary network, status, or payload failures come back
// as an error value; callers decide whether to retry elsewhere.
type FetchStrategy interface {
	// Name identifies the strategy (e.g. for registry lookup and stats).
	Name() string
	FetchPage(ctx context.Context, pageURL string) (ListingPage, error)
}

// RawCapture is the replayable form of one ingestion run's scraped data, keyed by cinema id.
type RawCapture map[string][]RawListing
