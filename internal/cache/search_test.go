package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/drewfead/vo-watcher/internal"
	"github.com/drewfead/vo-watcher/internal/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// gatedStore blocks FutureShowings until release is closed, counting calls.
type gatedStore struct {
	*memstore.Store
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) FutureShowings(ctx context.Context, after time.Time) ([]internal.ShowingRow, error) {
	g.calls.Add(1)
	if g.entered != nil {
		g.entered <- struct{}{}
	}
	if g.release != nil {
		<-g.release
	}
	return g.Store.FutureShowings(ctx, after)
}

func intPtr(n int) *int { return &n }

func seededStore() *memstore.Store {
	release := time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)
	return memstore.New(
		memstore.WithCinemas(
			internal.Cinema{ID: "P8110", Name: "Castillet", Town: "Perpignan"},
			internal.Cinema{ID: "C0013", Name: "Le Grand Action", Town: "Paris"},
		),
		memstore.WithMovies(
			internal.Movie{
				ID:            "TW92aWU6MjY5MTIy",
				OriginalTitle: "Dune: Part Two",
				Cast:          []string{"Timothée Chalamet", "Zendaya"},
				Genres:        []string{"Science Fiction"},
				ReleaseDate:   &release,
				Runtime:       166,
				IMDbURL:       "https://www.imdb.com/title/tt15239678/",
				Ratings:       internal.Ratings{IMDb: intPtr(72), RottenTomatoes: intPtr(92)},
			},
			internal.Movie{ID: "TW92aWU6MzE1NjQx", OriginalTitle: "Anora"},
		),
		memstore.WithShowings(
			internal.Showing{MovieID: "TW92aWU6MjY5MTIy", CinemaID: "P8110", StartTime: time.Date(2025, 3, 11, 19, 0, 0, 0, time.UTC)},
			internal.Showing{MovieID: "TW92aWU6MzE1NjQx", CinemaID: "C0013", StartTime: time.Date(2025, 3, 12, 20, 45, 0, 0, time.UTC)},
			internal.Showing{MovieID: "TW92aWU6MjY5MTIy", CinemaID: "P8110", StartTime: time.Date(2025, 3, 10, 19, 0, 0, 0, time.UTC)},
		),
	)
}

func newTestSearch(store internal.ShowingStore, clock *fakeClock) *Search {
	return New(store, WithMaxAge(time.Minute), WithClock(clock.Now), WithLocation(time.UTC))
}

func TestUnit_Search_ShowingEntry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)}
	s := newTestSearch(seededStore(), clock)

	showings := s.Showings(t.Context(), false)
	require.Len(t, showings, 2, "yesterday's showing is not listed")
	body, err := json.Marshal(showings[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"cinema":"Castillet,Perpignan","original_title":"Dune: Part Two",
		"start_time":{"time":"19:00","date":"11th March","year":"2025"}}`, string(body))

	movies := s.Movies(t.Context(), false)
	require.Contains(t, movies, "Dune: Part Two")
	dune := movies["Dune: Part Two"]
	require.NotNil(t, dune.RatingIMDb)
	assert.InDelta(t, 7.2, *dune.RatingIMDb, 1e-9)
	assert.Equal(t, 92, *dune.RatingRT)
	assert.Nil(t, dune.RatingMeta)
	assert.Equal(t, "Timothée Chalamet,Zendaya", dune.Cast)
	assert.Equal(t, "2024-02-28", *dune.ReleaseDate)

	body, err = json.Marshal(movies["Anora"])
	require.NoError(t, err)
	assert.NotContains(t, string(body), "TW92aWU6", "movie ids are not exposed")
	assert.Contains(t, string(body), `"runtime":null`)
}

func TestUnit_Search_FreshnessBoundary(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)}
	store := &gatedStore{Store: seededStore()}
	s := newTestSearch(store, clock)

	first := s.Snapshot(t.Context(), false)
	require.EqualValues(t, 1, store.calls.Load())

	clock.Advance(time.Minute - time.Millisecond)
	assert.Same(t, first, s.Snapshot(t.Context(), false), "age below max is served as is")
	assert.EqualValues(t, 1, store.calls.Load())

	clock.Advance(2 * time.Millisecond)
	store.entered = make(chan struct{}, 1)
	store.release = make(chan struct{})

	const readers = 50
	var wg sync.WaitGroup
	results := make([]*Snapshot, readers)
	for i := range readers {
		wg.Go(func() {
			results[i] = s.Snapshot(t.Context(), false)
		})
	}
	<-store.entered
	close(store.release)
	wg.Wait()

	assert.EqualValues(t, 2, store.calls.Load(), "many stale readers trigger one rebuild")
	assert.EqualValues(t, 2, s.Rebuilds())
	for _, snap := range results {
		assert.Same(t, results[0], snap)
		assert.NotSame(t, first, snap)
	}
}

func TestUnit_Search_FreshReadsDoNotBlockOnRebuild(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)}
	store := &gatedStore{Store: seededStore()}
	s := newTestSearch(store, clock)
	first := s.Snapshot(t.Context(), false)

	store.entered = make(chan struct{}, 1)
	store.release = make(chan struct{})
	done := make(chan *Snapshot)
	go func() { done <- s.Snapshot(t.Context(), true) }()
	<-store.entered

	assert.Same(t, first, s.Snapshot(t.Context(), false), "previous snapshot stays readable during a rebuild")
	close(store.release)
	assert.NotSame(t, first, <-done)
}

func TestUnit_Search_RebuildFailureKeepsPrevious(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)}
	store := seededStore()
	s := newTestSearch(store, clock)

	store.FailNext("FutureShowings", errors.New("connection refused"))
	empty := s.Snapshot(t.Context(), false)
	assert.Empty(t, empty.Showings, "never built serves the empty snapshot")
	assert.True(t, empty.BuiltAt.IsZero())

	built := s.Snapshot(t.Context(), false)
	require.Len(t, built.Showings, 2)

	clock.Advance(2 * time.Minute)
	store.FailNext("FutureShowings", errors.New("connection refused"))
	assert.Same(t, built, s.Snapshot(t.Context(), false))
	assert.EqualValues(t, 3, s.Rebuilds())

	assert.NotSame(t, built, s.Snapshot(t.Context(), false), "stale snapshot is retried on the next read")
}

// hungStore blocks FutureShowings until its context ends.
type hungStore struct{ *memstore.Store }

func (hungStore) FutureShowings(ctx context.Context, _ time.Time) ([]internal.ShowingRow, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestUnit_Search_RebuildTimeout(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)}
	s := New(hungStore{seededStore()},
		WithMaxAge(time.Minute), WithClock(clock.Now), WithLocation(time.UTC),
		WithRebuildTimeout(20*time.Millisecond))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	done := make(chan *Snapshot, 1)
	go func() { done <- s.Snapshot(ctx, false) }()

	select {
	case snap := <-done:
		assert.Empty(t, snap.Showings, "the previous, empty snapshot is served")
	case <-time.After(5 * time.Second):
		t.Fatal("rebuild was not bounded by its timeout")
	}
	assert.EqualValues(t, 1, s.Rebuilds())
}

func TestUnit_Search_ForceAndInvalidate(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)}
	store := seededStore()
	s := newTestSearch(store, clock)

	s.Snapshot(t.Context(), false)
	s.Snapshot(t.Context(), true)
	assert.EqualValues(t, 2, s.Rebuilds())

	_, err := store.InsertShowings(t.Context(), []internal.Showing{
		{MovieID: "TW92aWU6MzE1NjQx", CinemaID: "P8110", StartTime: time.Date(2025, 3, 13, 18, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
	assert.Len(t, s.Showings(t.Context(), false), 2)
	s.Invalidate()
	assert.Len(t, s.Showings(t.Context(), false), 3)
	assert.Len(t, s.Showings(t.Context(), false), 3)
	assert.EqualValues(t, 3, s.Rebuilds())
}

func TestUnit_Search_TownFilterAndMovieList(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)}
	s := newTestSearch(seededStore(), clock)

	paris := s.Showings(t.Context(), false, " paris")
	require.Len(t, paris, 1)
	assert.Equal(t, "Anora", paris[0].OriginalTitle)
	assert.Len(t, s.Showings(t.Context(), false), 2, "filtering does not touch the snapshot")

	movies := s.MovieList(t.Context())
	require.Len(t, movies, 2)
	assert.Equal(t, "TW92aWU6MjY5MTIy", movies[0].ID)
}

func TestUnit_BuildSnapshot_DeduplicatesTuples(t *testing.T) {
	dune := internal.Movie{ID: "TW92aWU6MjY5MTIy", OriginalTitle: "Dune: Part Two"}
	start := time.Date(2025, 3, 11, 19, 0, 0, 0, time.UTC)
	rows := []internal.ShowingRow{
		{StartTime: start, Movie: dune, CinemaName: "Castillet", CinemaTown: "Perpignan"},
		{StartTime: start, Movie: dune, CinemaName: "Castillet", CinemaTown: "Perpignan"},
		{StartTime: start.Add(time.Hour), Movie: dune, CinemaName: "Castillet", CinemaTown: "Perpignan"},
	}
	snap := buildSnapshot(rows, start)
	assert.Len(t, snap.Showings, 2)
	assert.Len(t, snap.Movies, 1)
	assert.Len(t, snap.movies, 1)
}

func TestUnit_Ordinal(t *testing.T) {
	tests := map[int]string{
		1: "1st", 2: "2nd", 3: "3rd", 4: "4th", 11: "11th", 12: "12th", 13: "13th",
		21: "21st", 22: "22nd", 23: "23rd", 30: "30th", 31: "31st",
	}
	for n, want := range tests {
		assert.Equal(t, want, Ordinal(n))
	}
	assert.Equal(t, StartTime{Time: "09:05", Date: "1st May", Year: "2024"},
		FormatStartTime(time.Date(2024, 5, 1, 9, 5, 0, 0, time.UTC)))
}
