package internal

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCinemaNotFound = errors.New("cinema not found")
	ErrCinemaExists   = errors.New("cinema already exists")
)

type CinemaStore interface {
	CinemaIDs(ctx context.Context) ([]string, error)
	Cinemas(ctx context.Context) ([]Cinema, error)
	AddCinema(ctx context.Context, cinema Cinema) error
	DeleteCinema(ctx context.Context, id string) error
}

type MovieStore interface {
	MovieIDs(ctx context.Context) ([]string, error)
	// InsertMovies batch-inserts movies, silently ignoring ids already present.
	InsertMovies(ctx context.Context, movies []Movie) (int64, error)
	UpdateRatings(ctx context.Context, updates []RatingUpdate) (int64, error)
}

type ShowingStore interface {
	ShowingFingerprints(ctx context.Context) ([]string, error)
	// InsertShowings batch-inserts showings, silently ignoring fingerprints already present.
	InsertShowings(ctx context.Context, showings []Showing) (int64, error)
	// FutureShowings returns showings starting after the given wall-clock time,
	// joined with movie and cinema details, ordered by start time.
	FutureShowings(ctx context.Context, after time.Time) ([]ShowingRow, error)
}

// Store is the relational store the ingestion core and the search cache consume.
type Store interface {
	CinemaStore
	MovieStore
	ShowingStore
}
