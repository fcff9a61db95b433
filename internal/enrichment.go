package internal

import (
	"context"
	"time"
)

type EnrichmentProvider interface {
	// Enrich makes a best-effort attempt to fill optional movie fields from the provider.
	Enrich(ctx context.Context, movie EnrichedMovie) (EnrichedMovie, error)
}

// RatingProvider looks up ratings by IMDb id (e.g. "tt0111161").
type RatingProvider interface {
	Ratings(ctx context.Context, imdbID string) (Ratings, error)
}

type EnrichedMovie struct {
	Movie  Movie             `json:"movie"`
	Audits []EnrichmentAudit `json:"audits"`
}

type EnrichmentResult uint8

const (
	EnrichmentResultSuccess EnrichmentResult = iota
	EnrichmentResultFailure
	EnrichmentResultPartialSuccess
)

type EnrichmentAudit struct {
	Provider    string           `json:"provider"`
	Result      EnrichmentResult `json:"result"`
	Details     string           `json:"details"`
	At          time.Time        `json:"at"`
	Annotations map[string]any   `json:"annotations"`
}
