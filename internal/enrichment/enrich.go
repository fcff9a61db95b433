package enrichment

import (
	"context"
	"log/slog"
	"time"

	"github.com/drewfead/vo-watcher/internal"
)

// Enrich runs each provider in order over movie. A provider error is recorded
// as a failure audit and the movie keeps whatever earlier providers filled in.
func Enrich(ctx context.Context, movie internal.Movie, providers ...internal.EnrichmentProvider) internal.EnrichedMovie {
	enriched := internal.EnrichedMovie{
		Movie:  movie,
		Audits: make([]internal.EnrichmentAudit, 0, len(providers)),
	}
	for _, provider := range providers {
		next, err := provider.Enrich(ctx, enriched)
		if err != nil {
			enriched.Audits = append(enriched.Audits, internal.EnrichmentAudit{
				Result:  internal.EnrichmentResultFailure,
				Details: err.Error(),
				At:      time.Now(),
			})
			slog.Warn("enrichment: provider failed", "movie_id", movie.ID, "title", movie.OriginalTitle, "error", err)
			continue
		}
		enriched = next
	}
	for i, audit := range enriched.Audits {
		slog.Debug("enrichment audit",
			"movie_id", movie.ID,
			"provider_index", i,
			"provider", audit.Provider,
			"result", audit.Result,
			"details", audit.Details,
			"annotations", audit.Annotations,
		)
	}
	return enriched
}

// EnrichAll enriches movies one after another and returns them in the same order.
func EnrichAll(ctx context.Context, movies []internal.Movie, providers ...internal.EnrichmentProvider) []internal.Movie {
	if len(providers) == 0 {
		return movies
	}
	out := make([]internal.Movie, 0, len(movies))
	for _, m := range movies {
		if ctx.Err() != nil {
			out = append(out, m)
			continue
		}
		out = append(out, Enrich(ctx, m, providers...).Movie)
	}
	return out
}
