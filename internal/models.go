package internal

import (
	"errors"
	"fmt"
	"time"
)

// Movie is one film as persisted in the movies relation. The ID is assigned by
// the upstream listing site and never changes once created.
type Movie struct {
	ID              string     `json:"id"`
	OriginalTitle   string     `json:"original_title"`
	LocalizedTitle  string     `json:"localized_title"`
	Cast            []string   `json:"cast,omitempty"`
	Languages       []string   `json:"languages,omitempty"`
	Genres          []string   `json:"genres,omitempty"`
	ReleaseDate     *time.Time `json:"release_date,omitempty"`
	Runtime         int        `json:"runtime,omitempty"` // minutes, 0 = unknown
	Synopsis        string     `json:"synopsis,omitempty"`
	Tagline         string     `json:"tagline,omitempty"`
	PosterHiRes     string     `json:"poster_hi_res,omitempty"`
	PosterLoRes     string     `json:"poster_lo_res,omitempty"`
	IMDbURL         string     `json:"imdb_url,omitempty"`
	TMDBID          int64      `json:"tmdb_id,omitempty"`
	OriginCountries []string   `json:"origin_countries,omitempty"`
	Ratings         Ratings    `json:"ratings"`
}

// Ratings holds the three independent rating sources. All values are integers
// on a 0-100 scale; IMDb is stored in tenths (7.2/10 -> 72). Nil means unknown.
type Ratings struct {
	IMDb           *int `json:"imdb,omitempty"`
	RottenTomatoes *int `json:"rotten_tomatoes,omitempty"`
	Metacritic     *int `json:"metacritic,omitempty"`
}

// Empty reports whether no rating source produced a value.
func (r Ratings) Empty() bool {
	return r.IMDb == nil && r.RottenTomatoes == nil && r.Metacritic == nil
}

// RatingUpdate is one row of the post-ingestion rating refresh.
type RatingUpdate struct {
	MovieID string
	Ratings Ratings
}

// Cinema is a venue listed by the upstream site, keyed by a 5-character code.
type Cinema struct {
	ID      string      `json:"cinema_id"`
	Name    string      `json:"name"`
	Address string      `json:"address,omitempty"`
	Info    string      `json:"info,omitempty"`
	Coord   *Coordinate `json:"gps,omitempty"`
	Town    string      `json:"town"`
}

// DisplayName is the "<name>,<town>" label used in search results.
func (c Cinema) DisplayName() string {
	return c.Name + "," + c.Town
}

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Showing is one screening of a movie at a cinema. Its identity is derived
// from the other fields, see Fingerprint.
//
// StartTime carries the cinema's local wall-clock time; its location is not
// significant.
type Showing struct {
	MovieID   string    `json:"movie_id"`
	CinemaID  string    `json:"cinema_id"`
	StartTime time.Time `json:"start_time"`
}

// Fingerprint returns the deduplication key of the showing.
func (s Showing) Fingerprint() string {
	return Fingerprint(s.MovieID, s.CinemaID, s.StartTime)
}

// ShowingRow is one future showing joined with its movie and cinema, as read
// back from the store when building the search snapshot.
type ShowingRow struct {
	StartTime  time.Time
	Movie      Movie
	CinemaName string
	CinemaTown string
}

// MaxWindowEnd bounds the last day offset a run may request. The listing site
// publishes a few weeks ahead at most.
const MaxWindowEnd = 60

// ErrInvalidWindow rejects a day window before any store or network access.
var ErrInvalidWindow = errors.New("invalid window")

// DayWindow is a half-open range [Start, End) of day offsets, today being 0.
type DayWindow struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Validate requires 0 <= Start < End <= MaxWindowEnd.
func (w DayWindow) Validate() error {
	if w.Start < 0 || w.End <= w.Start || w.End > MaxWindowEnd {
		return fmt.Errorf("%w: need 0 <= start < end <= %d, got %d..%d", ErrInvalidWindow, MaxWindowEnd, w.Start, w.End)
	}
	return nil
}

// Days returns the offsets covered by the window in ascending order.
func (w DayWindow) Days() []int {
	if w.End <= w.Start {
		return nil
	}
	days := make([]int, 0, w.End-w.Start)
	for d := w.Start; d < w.End; d++ {
		days = append(days, d)
	}
	return days
}
