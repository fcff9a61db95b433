// Package memstore is an in-memory internal.Store for tests and dry runs.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/drewfead/vo-watcher/internal"
)

type Store struct {
	mu       sync.RWMutex
	cinemas  map[string]internal.Cinema
	movies   map[string]internal.Movie
	showings map[string]internal.Showing
	failNext map[string]error
	calls    map[string]int
}

var _ internal.Store = (*Store)(nil)

type Option func(*Store)

func WithCinemas(cinemas ...internal.Cinema) Option {
	return func(s *Store) {
		for _, c := range cinemas {
			s.cinemas[c.ID] = c
		}
	}
}

func WithMovies(movies ...internal.Movie) Option {
	return func(s *Store) {
		for _, m := range movies {
			s.movies[m.ID] = m
		}
	}
}

func WithShowings(showings ...internal.Showing) Option {
	return func(s *Store) {
		for _, sh := range showings {
			s.showings[sh.Fingerprint()] = sh
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		cinemas:  make(map[string]internal.Cinema),
		movies:   make(map[string]internal.Movie),
		showings: make(map[string]internal.Showing),
		failNext: make(map[string]error),
		calls:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailNext makes the next call to the named method return err.
func (s *Store) FailNext(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[method] = err
}

// Calls reports how many times the named method ran.
func (s *Store) Calls(method string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[method]
}

// enter records a call and pops an injected failure. Callers hold s.mu.
func (s *Store) enter(method string) error {
	s.calls[method]++
	if err, ok := s.failNext[method]; ok {
		delete(s.failNext, method)
		return err
	}
	return nil
}

func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enter("Ping")
}

func (s *Store) CinemaIDs(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CinemaIDs"); err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(s.cinemas)), nil
}

func (s *Store) Cinemas(context.Context) ([]internal.Cinema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Cinemas"); err != nil {
		return nil, err
	}
	out := slices.Collect(maps.Values(s.cinemas))
	slices.SortFunc(out, func(a, b internal.Cinema) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) AddCinema(_ context.Context, cinema internal.Cinema) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("AddCinema"); err != nil {
		return err
	}
	if _, ok := s.cinemas[cinema.ID]; ok {
		return fmt.Errorf("%w: %s", internal.ErrCinemaExists, cinema.ID)
	}
	s.cinemas[cinema.ID] = cinema
	return nil
}

func (s *Store) DeleteCinema(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("DeleteCinema"); err != nil {
		return err
	}
	if _, ok := s.cinemas[id]; !ok {
		return fmt.Errorf("%w: %s", internal.ErrCinemaNotFound, id)
	}
	delete(s.cinemas, id)
	return nil
}

func (s *Store) MovieIDs(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("MovieIDs"); err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(s.movies)), nil
}

func (s *Store) InsertMovies(_ context.Context, movies []internal.Movie) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("InsertMovies"); err != nil {
		return 0, err
	}
	var n int64
	for _, m := range movies {
		if _, ok := s.movies[m.ID]; ok {
			continue
		}
		s.movies[m.ID] = m
		n++
	}
	return n, nil
}

func (s *Store) UpdateRatings(_ context.Context, updates []internal.RatingUpdate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UpdateRatings"); err != nil {
		return 0, err
	}
	var n int64
	for _, u := range updates {
		m, ok := s.movies[u.MovieID]
		if !ok {
			continue
		}
		m.Ratings.IMDb = cmp.Or(u.Ratings.IMDb, m.Ratings.IMDb)
		m.Ratings.RottenTomatoes = cmp.Or(u.Ratings.RottenTomatoes, m.Ratings.RottenTomatoes)
		m.Ratings.Metacritic = cmp.Or(u.Ratings.Metacritic, m.Ratings.Metacritic)
		s.movies[u.MovieID] = m
		n++
	}
	return n, nil
}

func (s *Store) ShowingFingerprints(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ShowingFingerprints"); err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(s.showings)), nil
}

func (s *Store) InsertShowings(_ context.Context, showings []internal.Showing) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("InsertShowings"); err != nil {
		return 0, err
	}
	var n int64
	for _, sh := range showings {
		fp := sh.Fingerprint()
		if _, ok := s.showings[fp]; ok {
			continue
		}
		s.showings[fp] = sh
		n++
	}
	return n, nil
}

// FutureShowings mirrors the inner join of the SQL store: showings whose movie
// or cinema is missing are left out.
func (s *Store) FutureShowings(_ context.Context, after time.Time) ([]internal.ShowingRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FutureShowings"); err != nil {
		return nil, err
	}
	cutoff := internal.WallClock(after)
	var rows []internal.ShowingRow
	for _, sh := range s.showings {
		start := internal.WallClock(sh.StartTime)
		if !start.After(cutoff) {
			continue
		}
		movie, ok := s.movies[sh.MovieID]
		if !ok {
			continue
		}
		cinema, ok := s.cinemas[sh.CinemaID]
		if !ok {
			continue
		}
		rows = append(rows, internal.ShowingRow{
			StartTime:  start,
			Movie:      movie,
			CinemaName: cinema.Name,
			CinemaTown: cinema.Town,
		})
	}
	slices.SortFunc(rows, func(a, b internal.ShowingRow) int {
		return cmp.Or(
			a.StartTime.Compare(b.StartTime),
			cmp.Compare(a.CinemaName, b.CinemaName),
			cmp.Compare(a.Movie.OriginalTitle, b.Movie.OriginalTitle),
		)
	})
	return rows, nil
}

// Movies returns a copy of the stored movies keyed by id.
func (s *Store) Movies() map[string]internal.Movie {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.movies)
}

// Showings returns a copy of the stored showings keyed by fingerprint.
func (s *Store) Showings() map[string]internal.Showing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.showings)
}
