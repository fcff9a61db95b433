// Package cache serves the aggregated showings and movie details from an
// in-memory snapshot that is rebuilt from the store once it goes stale.
package cache

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/drewfead/vo-watcher/internal"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultMaxAge         = 5 * time.Minute
	DefaultRebuildTimeout = 30 * time.Second
)

type Option func(*Search)

// WithMaxAge sets how long a snapshot is served before a read rebuilds it.
func WithMaxAge(d time.Duration) Option {
	return func(s *Search) {
		if d > 0 {
			s.maxAge = d
		}
	}
}

// WithRebuildTimeout bounds the store query of one rebuild.
func WithRebuildTimeout(d time.Duration) Option {
	return func(s *Search) {
		if d > 0 {
			s.rebuildTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Search) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the zone whose midnight starts the "future" window.
func WithLocation(loc *time.Location) Option {
	return func(s *Search) {
		if loc != nil {
			s.location = loc
		}
	}
}

// Search holds the current snapshot. Reads of a fresh snapshot never block;
// a stale or forced read runs at most one rebuild at a time, and concurrent
// readers share its result.
type Search struct {
	store          internal.ShowingStore
	maxAge         time.Duration
	rebuildTimeout time.Duration
	now            func() time.Time
	location       *time.Location

	current     atomic.Pointer[Snapshot]
	invalidated atomic.Bool
	rebuilds    atomic.Uint64
	group       singleflight.Group
}

func New(store internal.ShowingStore, opts ...Option) *Search {
	s := &Search{
		store:          store,
		maxAge:         DefaultMaxAge,
		rebuildTimeout: DefaultRebuildTimeout,
		now:            time.Now,
		location:       time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(&Snapshot{Movies: map[string]MovieDetail{}, Showings: []ShowingEntry{}})
	return s
}

func (s *Search) fresh(snap *Snapshot) bool {
	return !s.invalidated.Load() && snap.Age(s.now()) <= s.maxAge
}

// Snapshot returns the current snapshot, rebuilding it first when it is stale
// or force is set. A failed rebuild is logged and the previous snapshot is
// returned.
func (s *Search) Snapshot(ctx context.Context, force bool) *Snapshot {
	if snap := s.current.Load(); !force && s.fresh(snap) {
		return snap
	}
	v, _, _ := s.group.Do("rebuild", func() (any, error) {
		if snap := s.current.Load(); !force && s.fresh(snap) {
			return snap, nil
		}
		return s.rebuild(ctx), nil
	})
	return v.(*Snapshot)
}

func (s *Search) rebuild(ctx context.Context) *Snapshot {
	n := s.rebuilds.Add(1)
	wasInvalidated := s.invalidated.Swap(false)
	started := s.now()
	local := started.In(s.location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location)

	// Detached so one caller's cancellation does not fail the rebuild shared
	// by every waiting reader, but bounded so a hung query releases them.
	queryCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.rebuildTimeout)
	defer cancel()
	rows, err := s.store.FutureShowings(queryCtx, midnight)
	if err != nil {
		if wasInvalidated {
			s.invalidated.Store(true)
		}
		prev := s.current.Load()
		slog.Error("cache: rebuild failed, serving previous snapshot",
			"rebuild", n,
			"previous_built_at", prev.BuiltAt,
			"error", err,
		)
		return prev
	}
	snap := buildSnapshot(rows, started)
	s.current.Store(snap)
	slog.Info("cache: snapshot rebuilt",
		"rebuild", n,
		"rows", len(rows),
		"showings", len(snap.Showings),
		"movies", len(snap.Movies),
		"duration", s.now().Sub(started),
	)
	return snap
}

// Invalidate marks the current snapshot stale so the next read rebuilds it.
func (s *Search) Invalidate() {
	s.invalidated.Store(true)
}

// Rebuilds reports how many rebuilds have been attempted.
func (s *Search) Rebuilds() uint64 {
	return s.rebuilds.Load()
}

func (s *Search) Movies(ctx context.Context, force bool) map[string]MovieDetail {
	return s.Snapshot(ctx, force).Movies
}

// Showings returns the showings list, optionally limited to the given towns
// (case-insensitive).
func (s *Search) Showings(ctx context.Context, force bool, towns ...string) []ShowingEntry {
	all := s.Snapshot(ctx, force).Showings
	if len(towns) == 0 {
		return all
	}
	return slices.DeleteFunc(slices.Clone(all), func(e ShowingEntry) bool {
		return !slices.ContainsFunc(towns, func(town string) bool {
			return strings.EqualFold(strings.TrimSpace(town), e.town)
		})
	})
}

// MovieList returns each movie in the snapshot once, in first-showing order.
func (s *Search) MovieList(ctx context.Context) []internal.Movie {
	return slices.Clone(s.Snapshot(ctx, false).movies)
}
