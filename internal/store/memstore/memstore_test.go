package memstore

import (
	"errors"
	"testing"
	"time"

	"github.com/drewfead/vo-watcher/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var castillet = internal.Cinema{ID: "P8110", Name: "Castillet", Town: "Perpignan"}

func TestUnit_MemStore_InsertIgnoresDuplicates(t *testing.T) {
	s := New()
	n, err := s.InsertMovies(t.Context(), []internal.Movie{{ID: "a"}, {ID: "b"}, {ID: "a"}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	start := time.Date(2025, 3, 11, 19, 0, 0, 0, time.UTC)
	showing := internal.Showing{MovieID: "a", CinemaID: "P8110", StartTime: start}
	n, err = s.InsertShowings(t.Context(), []internal.Showing{showing, showing})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	fps, err := s.ShowingFingerprints(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{showing.Fingerprint()}, fps)
}

func TestUnit_MemStore_Cinemas(t *testing.T) {
	s := New(WithCinemas(castillet))
	err := s.AddCinema(t.Context(), castillet)
	require.ErrorIs(t, err, internal.ErrCinemaExists)

	require.NoError(t, s.DeleteCinema(t.Context(), "P8110"))
	require.ErrorIs(t, s.DeleteCinema(t.Context(), "P8110"), internal.ErrCinemaNotFound)
}

func TestUnit_MemStore_FutureShowingsJoin(t *testing.T) {
	paris := time.FixedZone("CET", 3600)
	s := New(
		WithCinemas(castillet),
		WithMovies(internal.Movie{ID: "a", OriginalTitle: "Anora"}),
		WithShowings(
			internal.Showing{MovieID: "a", CinemaID: "P8110", StartTime: time.Date(2025, 3, 12, 20, 45, 0, 0, paris)},
			internal.Showing{MovieID: "a", CinemaID: "P8110", StartTime: time.Date(2025, 3, 10, 20, 45, 0, 0, time.UTC)},
			internal.Showing{MovieID: "missing", CinemaID: "P8110", StartTime: time.Date(2025, 3, 12, 20, 45, 0, 0, time.UTC)},
		),
	)
	rows, err := s.FutureShowings(t.Context(), time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, time.Date(2025, 3, 12, 20, 45, 0, 0, time.UTC), rows[0].StartTime, "wall clock is kept")
	assert.Equal(t, "Anora", rows[0].Movie.OriginalTitle)
	assert.Equal(t, "Castillet", rows[0].CinemaName)
}

func TestUnit_MemStore_FailNext(t *testing.T) {
	s := New()
	boom := errors.New("boom")
	s.FailNext("MovieIDs", boom)
	_, err := s.MovieIDs(t.Context())
	require.ErrorIs(t, err, boom)
	_, err = s.MovieIDs(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, s.Calls("MovieIDs"))
}

func TestUnit_MemStore_UpdateRatingsKeepsMissingSources(t *testing.T) {
	imdb, rt, newRT := 72, 80, 85
	s := New(WithMovies(internal.Movie{ID: "dune", Ratings: internal.Ratings{IMDb: &imdb, RottenTomatoes: &rt}}))

	n, err := s.UpdateRatings(t.Context(), []internal.RatingUpdate{
		{MovieID: "dune", Ratings: internal.Ratings{RottenTomatoes: &newRT}},
		{MovieID: "unknown", Ratings: internal.Ratings{IMDb: &imdb}},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got := s.Movies()["dune"].Ratings
	require.NotNil(t, got.IMDb)
	assert.Equal(t, 72, *got.IMDb, "absent source keeps the stored value")
	assert.Equal(t, 85, *got.RottenTomatoes)
	assert.Nil(t, got.Metacritic)
}
