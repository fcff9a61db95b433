package cache

import (
	"strconv"
	"strings"
	"time"

	"github.com/drewfead/vo-watcher/internal"
	"github.com/drewfead/vo-watcher/internal/normalize"
)

// StartTime is a showing's wall-clock start split for display.
type StartTime struct {
	Time string `json:"time"`
	Date string `json:"date"`
	Year string `json:"year"`
}

// ShowingEntry is one row of the showings list.
type ShowingEntry struct {
	Cinema        string    `json:"cinema"`
	OriginalTitle string    `json:"original_title"`
	StartTime     StartTime `json:"start_time"`

	town  string
	start time.Time
}

// Town is the cinema's town, for filtering.
func (e ShowingEntry) Town() string { return e.town }

// Start is the wall-clock start time.
func (e ShowingEntry) Start() time.Time { return e.start }

// MovieDetail is the public view of a movie keyed by its original title.
type MovieDetail struct {
	LocalizedTitle  string   `json:"localized_title,omitempty"`
	Runtime         *int     `json:"runtime"`
	Synopsis        *string  `json:"synopsis"`
	Tagline         string   `json:"tagline,omitempty"`
	Cast            string   `json:"cast"`
	Genres          string   `json:"genres"`
	Languages       string   `json:"languages,omitempty"`
	OriginCountries string   `json:"origin_country,omitempty"`
	ReleaseDate     *string  `json:"release_date"`
	RatingIMDb      *float64 `json:"rating_imdb"`
	RatingRT        *int     `json:"rating_rt"`
	RatingMeta      *int     `json:"rating_meta"`
	IMDbURL         string   `json:"imdb_url"`
	PosterHiRes     string   `json:"poster_hi_res"`
	PosterLoRes     string   `json:"poster_lo_res"`
}

// Snapshot is an immutable read model built wholesale from the store.
type Snapshot struct {
	Movies   map[string]MovieDetail
	Showings []ShowingEntry
	BuiltAt  time.Time

	movies []internal.Movie
}

// Age is how long ago the snapshot was built; an unbuilt snapshot is infinitely old.
func (s *Snapshot) Age(now time.Time) time.Duration {
	if s == nil || s.BuiltAt.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	return now.Sub(s.BuiltAt)
}

// buildSnapshot reshapes joined rows, which arrive ordered by start time.
// Identical (cinema, title, start) tuples are kept once.
func buildSnapshot(rows []internal.ShowingRow, builtAt time.Time) *Snapshot {
	snap := &Snapshot{
		Movies:   make(map[string]MovieDetail),
		Showings: make([]ShowingEntry, 0, len(rows)),
		BuiltAt:  builtAt,
	}
	type tuple struct {
		cinema, title string
		start         time.Time
	}
	seen := make(map[tuple]struct{}, len(rows))
	seenMovie := make(map[string]struct{})
	for _, row := range rows {
		cinema := internal.Cinema{Name: row.CinemaName, Town: row.CinemaTown}.DisplayName()
		title := row.Movie.OriginalTitle
		start := internal.WallClock(row.StartTime)
		key := tuple{cinema: cinema, title: title, start: start}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		snap.Showings = append(snap.Showings, ShowingEntry{
			Cinema:        cinema,
			OriginalTitle: title,
			StartTime:     FormatStartTime(start),
			town:          row.CinemaTown,
			start:         start,
		})
		if _, ok := snap.Movies[title]; !ok {
			snap.Movies[title] = detailOf(row.Movie)
		}
		if _, ok := seenMovie[row.Movie.ID]; !ok {
			seenMovie[row.Movie.ID] = struct{}{}
			snap.movies = append(snap.movies, row.Movie)
		}
	}
	return snap
}

func detailOf(m internal.Movie) MovieDetail {
	d := MovieDetail{
		LocalizedTitle:  m.LocalizedTitle,
		Tagline:         m.Tagline,
		Cast:            strings.Join(m.Cast, normalize.ListDelimiter),
		Genres:          strings.Join(m.Genres, normalize.ListDelimiter),
		Languages:       strings.Join(m.Languages, normalize.ListDelimiter),
		OriginCountries: strings.Join(m.OriginCountries, normalize.ListDelimiter),
		RatingRT:        m.Ratings.RottenTomatoes,
		RatingMeta:      m.Ratings.Metacritic,
		IMDbURL:         m.IMDbURL,
		PosterHiRes:     m.PosterHiRes,
		PosterLoRes:     m.PosterLoRes,
	}
	if m.Runtime > 0 {
		d.Runtime = &m.Runtime
	}
	if m.Synopsis != "" {
		d.Synopsis = &m.Synopsis
	}
	if m.ReleaseDate != nil {
		date := m.ReleaseDate.Format(time.DateOnly)
		d.ReleaseDate = &date
	}
	if m.Ratings.IMDb != nil {
		imdb := float64(*m.Ratings.IMDb) / 10
		d.RatingIMDb = &imdb
	}
	return d
}

// FormatStartTime renders t as {"19:00", "11th March", "2025"}.
func FormatStartTime(t time.Time) StartTime {
	return StartTime{
		Time: t.Format("15:04"),
		Date: Ordinal(t.Day()) + " " + t.Month().String(),
		Year: strconv.Itoa(t.Year()),
	}
}

// Ordinal returns n with its English ordinal suffix: 1st, 2nd, 3rd, 11th, 22nd.
func Ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}
