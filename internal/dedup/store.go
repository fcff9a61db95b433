package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// LoadFunc returns every identifier already persisted.
type LoadFunc func(ctx context.Context) ([]string, error)

// FlushFunc batch-inserts records, ignoring duplicate keys, and reports how many rows were written.
type FlushFunc[T any] func(ctx context.Context, records []T) (int64, error)

// Store decides whether records are new. The known set is loaded once from
// storage; ids added during the run join it immediately, so the second
// occurrence of a record within the same run is caught too.
//
// Membership is keyed by the bare id string, whether it came from storage or
// from Add.
type Store[T any] struct {
	name  string
	keyOf func(T) string
	flush FlushFunc[T]

	mu      sync.Mutex
	known   map[string]struct{}
	pending []T
}

// Load builds a Store from the identifiers returned by load.
func Load[T any](ctx context.Context, name string, load LoadFunc, keyOf func(T) string, flush FlushFunc[T]) (*Store[T], error) {
	ids, err := load(ctx)
	if err != nil {
		return nil, fmt.Errorf("dedup: load %s ids: %w", name, err)
	}
	s := &Store[T]{
		name:  name,
		keyOf: keyOf,
		flush: flush,
		known: make(map[string]struct{}, len(ids)),
	}
	for _, id := range ids {
		s.known[id] = struct{}{}
	}
	slog.Debug("dedup: loaded known ids", "store", name, "count", len(ids))
	return s, nil
}

// Known reports whether id is already persisted or was added in this run.
func (s *Store[T]) Known(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.known[id]
	return ok
}

// AddIfNew queues record for the next Flush unless its key is already known.
// The check and the insert happen under one lock.
func (s *Store[T]) AddIfNew(record T) bool {
	key := s.keyOf(record)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.known[key]; ok {
		return false
	}
	s.known[key] = struct{}{}
	s.pending = append(s.pending, record)
	return true
}

// Pending returns a copy of the records waiting for Flush.
func (s *Store[T]) Pending() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, len(s.pending))
	copy(out, s.pending)
	return out
}

// Flush writes all pending records in one batch and clears the batch. On
// failure the batch is still cleared and the ids stay known: a record that did
// not persist is retried on the next run, which reloads from storage.
func (s *Store[T]) Flush(ctx context.Context) (int64, error) {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		slog.Info("dedup: nothing to flush", "store", s.name)
		return 0, nil
	}
	inserted, err := s.flush(ctx, batch)
	if err != nil {
		slog.Error("dedup: flush failed", "store", s.name, "records", len(batch), "error", err)
		return 0, fmt.Errorf("dedup: flush %s: %w", s.name, err)
	}
	slog.Info("dedup: flushed", "store", s.name, "records", len(batch), "inserted", inserted)
	return inserted, nil
}
