package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/drewfead/vo-watcher/internal"
	"github.com/microcosm-cc/bluemonday"
)

var (
	ErrMissingTitle = errors.New("missing title")
	ErrInvalidMovie = errors.New("invalid movie")
)

const (
	maxTitleLen    = 191
	minTitleLen    = 2
	maxMovieIDLen  = 191
	maxSynopsisLen = 1000

	// StartsAtLayout is the upstream wall-clock form of a showtime instance.
	StartsAtLayout = "2006-01-02T15:04:05"
	releaseLayout  = "2006-01-02"
)

// Result is what one listing normalizes to.
type Result struct {
	Movie    internal.Movie
	Showings []internal.Showing
	// SkippedShowtimes counts original-language showtime entries that could not be parsed.
	SkippedShowtimes int
}

type Normalizer struct {
	sanitizer *bluemonday.Policy
}

func New() *Normalizer {
	return &Normalizer{
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Listing converts one raw listing scraped for cinemaID. Missing optional data
// leaves the matching Movie field empty. A listing without usable titles or id
// fails as a whole.
func (n *Normalizer) Listing(cinemaID string, listing internal.RawListing) (Result, error) {
	if err := listing.Validate(); err != nil {
		return Result{}, err
	}
	movie, err := n.movie(listing)
	if err != nil {
		return Result{}, err
	}
	showings, skipped := Showings(movie.ID, cinemaID, listing)
	return Result{Movie: movie, Showings: showings, SkippedShowtimes: skipped}, nil
}

// Listings normalizes a batch. Each failing listing is logged and dropped; the
// rest still come back.
func (n *Normalizer) Listings(cinemaID string, listings []internal.RawListing) []Result {
	results := make([]Result, 0, len(listings))
	for i, listing := range listings {
		res, err := n.Listing(cinemaID, listing)
		if err != nil {
			slog.Warn("normalize: dropping listing", "cinema_id", cinemaID, "index", i, "error", err)
			continue
		}
		if res.SkippedShowtimes > 0 {
			slog.Warn("normalize: skipped malformed showtimes",
				"cinema_id", cinemaID, "movie_id", res.Movie.ID, "skipped", res.SkippedShowtimes)
		}
		results = append(results, res)
	}
	return results
}

func (n *Normalizer) movie(listing internal.RawListing) (internal.Movie, error) {
	raw := listing.Movie
	if utf8.RuneCountInString(raw.ID) > maxMovieIDLen {
		return internal.Movie{}, fmt.Errorf("%w: movie id longer than %d characters", ErrInvalidMovie, maxMovieIDLen)
	}
	original, err := title(raw.OriginalTitle)
	if err != nil {
		return internal.Movie{}, fmt.Errorf("original title of %s: %w", raw.ID, err)
	}
	localized, err := title(raw.Title)
	if err != nil {
		return internal.Movie{}, fmt.Errorf("localized title of %s: %w", raw.ID, err)
	}

	movie := internal.Movie{
		ID:             raw.ID,
		OriginalTitle:  original,
		LocalizedTitle: localized,
		Cast:           CheckedList(raw.ID, "cast", Cast(raw.Cast)),
		Languages:      CheckedList(raw.ID, "languages", titleCaseAll(raw.Languages)),
		Genres:         CheckedList(raw.ID, "genres", genres(raw.Genres)),
		ReleaseDate:    ReleaseDate(raw.Releases, listing.Data),
		Runtime:        Runtime(raw.Runtime),
		Synopsis:       n.synopsis(raw.Synopsis),
	}
	if raw.Poster != nil {
		movie.PosterHiRes = strings.TrimSpace(raw.Poster.URL)
	}
	return movie, nil
}

func title(s string) (string, error) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "", ErrMissingTitle
	}
	if n := utf8.RuneCountInString(s); n < minTitleLen || n > maxTitleLen {
		return "", fmt.Errorf("%w: title must be %d..%d characters, got %d", ErrInvalidMovie, minTitleLen, maxTitleLen, n)
	}
	return s, nil
}

// Cast joins first and last names. Entries with neither are skipped.
func Cast(cast *internal.RawCast) []string {
	if cast == nil {
		return nil
	}
	var names []string
	for _, edge := range cast.Edges {
		actor := edge.Node.Actor
		if actor == nil {
			continue
		}
		name := strings.TrimSpace(strings.Join(strings.Fields(actor.FirstName+" "+actor.LastName), " "))
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names
}

func genres(raw []internal.RawGenre) []string {
	tags := make([]string, 0, len(raw))
	for _, g := range raw {
		tags = append(tags, g.Tag)
	}
	return titleCaseAll(tags)
}

// titleCaseAll turns upstream enum-like values ("SCIENCE_FICTION") into display form ("Science Fiction").
func titleCaseAll(values []string) []string {
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(strings.ReplaceAll(v, "_", " "))
		if v == "" {
			continue
		}
		words := strings.Fields(strings.ToLower(v))
		for i, w := range words {
			r, size := utf8.DecodeRuneInString(w)
			words[i] = strings.ToUpper(string(r)) + w[size:]
		}
		out = append(out, strings.Join(words, " "))
	}
	return out
}

// CheckedList returns values when they encode as a storable list, and nil
// with a warning otherwise.
func CheckedList(movieID, field string, values []string) []string {
	if len(values) == 0 {
		return nil
	}
	if _, err := EncodeList(values); err != nil {
		slog.Warn("normalize: rejecting list field", "movie_id", movieID, "field", field, "error", err)
		return nil
	}
	return values
}

// ReleaseDate resolves the first theatrical release with a valid date, then
// January 1st of the production year. It returns nil when neither resolves.
func ReleaseDate(releases []internal.RawRelease, data *internal.RawListingData) *time.Time {
	for _, release := range releases {
		if release.Typename != "MovieRelease" && release.Name != "Released" {
			continue
		}
		if release.ReleaseDate == nil {
			continue
		}
		date, err := time.Parse(releaseLayout, strings.TrimSpace(release.ReleaseDate.Date))
		if err != nil {
			continue
		}
		return &date
	}
	if data == nil {
		return nil
	}
	year, ok := productionYear(data.ProductionYear)
	if !ok {
		return nil
	}
	date := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return &date
}

// productionYear accepts 1999 or "1999".
func productionYear(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var year int
	if err := json.Unmarshal(raw, &year); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &year); err != nil {
			return 0, false
		}
	}
	if year < 1850 || year > 9999 {
		return 0, false
	}
	return year, true
}

func (n *Normalizer) synopsis(s string) string {
	s = html.UnescapeString(n.sanitizer.Sanitize(s))
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > maxSynopsisLen {
		runes := []rune(s)
		s = string(runes[:maxSynopsisLen-1]) + "…"
	}
	return s
}

// Showings emits one showing per original-language start time. Unparseable
// entries are skipped and counted.
func Showings(movieID, cinemaID string, listing internal.RawListing) ([]internal.Showing, int) {
	raw, skipped := listing.OriginalShowtimes()
	showings := make([]internal.Showing, 0, len(raw))
	for _, st := range raw {
		start, err := time.Parse(StartsAtLayout, trimZone(st.StartsAt))
		if err != nil {
			skipped++
			continue
		}
		showings = append(showings, internal.Showing{
			MovieID:   movieID,
			CinemaID:  cinemaID,
			StartTime: start,
		})
	}
	return showings, skipped
}

// trimZone drops a trailing offset or fraction so that "2025-03-11T19:00:00+01:00"
// keeps its local wall clock.
func trimZone(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > len(StartsAtLayout) {
		return s[:len(StartsAtLayout)]
	}
	return s
}
