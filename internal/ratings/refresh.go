package ratings

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/drewfead/vo-watcher/internal"
)

// MovieLister yields the movies whose ratings should be refreshed. The search
// cache satisfies it.
type MovieLister interface {
	MovieList(ctx context.Context) []internal.Movie
}

var imdbIDPattern = regexp.MustCompile(`tt\d+`)

// IMDbID extracts the title id from an IMDb URL, or "" when there is none.
func IMDbID(imdbURL string) string {
	return imdbIDPattern.FindString(imdbURL)
}

type Refresher struct {
	movies   MovieLister
	provider internal.RatingProvider
	store    internal.MovieStore
}

func NewRefresher(movies MovieLister, provider internal.RatingProvider, store internal.MovieStore) *Refresher {
	return &Refresher{movies: movies, provider: provider, store: store}
}

// Refresh looks up ratings for every listed movie with an IMDb id and writes
// them in one batch. Movies without an id are skipped; a failed lookup leaves
// that movie's ratings unchanged.
func (r *Refresher) Refresh(ctx context.Context) (int64, error) {
	movies := r.movies.MovieList(ctx)
	var (
		updates []internal.RatingUpdate
		skipped int
		failed  int
	)
	seen := make(map[string]bool, len(movies))
	for _, movie := range movies {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if seen[movie.ID] {
			continue
		}
		seen[movie.ID] = true
		imdbID := IMDbID(movie.IMDbURL)
		if imdbID == "" {
			skipped++
			continue
		}
		ratings, err := r.provider.Ratings(ctx, imdbID)
		if err != nil {
			failed++
			slog.Warn("ratings: lookup failed", "movie_id", movie.ID, "imdb_id", imdbID, "error", err)
			continue
		}
		updates = append(updates, internal.RatingUpdate{MovieID: movie.ID, Ratings: ratings})
	}

	slog.Info("ratings: lookups finished",
		"movies", len(seen),
		"updates", len(updates),
		"skipped", skipped,
		"failed", failed,
	)
	if len(updates) == 0 {
		return 0, nil
	}
	n, err := r.store.UpdateRatings(ctx, updates)
	if err != nil {
		return 0, fmt.Errorf("failed to update ratings: %w", err)
	}
	return n, nil
}
