package internal

import (
	"encoding/json"
	"errors"
	"strings"
)

// OriginalLanguageCategories are the upstream showtime keys that count as
// original-language showings: undubbed, undubbed with subtitles, and undubbed
// with subtitles for the deaf and hard of hearing.
var OriginalLanguageCategories = []string{"original", "original_st", "original_st_sme"}

// ErrMalformedListing marks a listing missing the fields every record needs.
var ErrMalformedListing = errors.New("malformed listing")

// RawListing is one entry of a listing page's "results" array: a movie plus
// its showtimes at one cinema for one day. Nested fields are typed where the
// upstream shape is stable; showtimes stay raw per category so that a bad
// category or entry can be skipped without losing the rest of the listing.
type RawListing struct {
	Movie     *RawMovie                  `json:"movie"`
	Showtimes map[string]json.RawMessage `json:"showtimes"`
	Data      *RawListingData            `json:"data,omitempty"`

	raw json.RawMessage
}

// RawMovie is the movie metadata of a listing.
type RawMovie struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	OriginalTitle string          `json:"originalTitle"`
	Synopsis      string          `json:"synopsis"`
	Poster        *RawPoster      `json:"poster"`
	Runtime       json.RawMessage `json:"runtime"`
	Languages     []string        `json:"languages"`
	Genres        []RawGenre      `json:"genres"`
	Cast          *RawCast        `json:"cast"`
	Releases      []RawRelease    `json:"releases"`
}

// RawPoster points at the upstream poster image.
type RawPoster struct {
	URL string `json:"url"`
}

// RawGenre is one genre tag, upper case upstream.
type RawGenre struct {
	Tag string `json:"tag"`
}

// RawCast is the cast edge list of a movie.
type RawCast struct {
	Edges []RawCastEdge `json:"edges"`
}

// RawCastEdge wraps one cast member; the actor may be null.
type RawCastEdge struct {
	Node struct {
		Actor *RawPerson `json:"actor"`
	} `json:"node"`
}

// RawPerson is an actor name, either part of which may be empty.
type RawPerson struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// RawRelease is one release event; theatrical ones are MovieRelease entries named Released.
type RawRelease struct {
	Typename    string `json:"__typename"`
	Name        string `json:"name"`
	ReleaseDate *struct {
		Date string `json:"date"`
	} `json:"releaseDate"`
}

// RawListingData holds listing extras outside the movie object.
type RawListingData struct {
	ProductionYear json.RawMessage `json:"productionYear"`
}

// RawShowtime is a single start-time instance inside a showtime category.
type RawShowtime struct {
	StartsAt string `json:"startsAt"`
}

// UnmarshalJSON decodes the listing and keeps the original bytes for raw capture.
func (l *RawListing) UnmarshalJSON(data []byte) error {
	type plain RawListing
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*l = RawListing(p)
	l.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON re-emits the bytes the listing was decoded from, when available.
func (l RawListing) MarshalJSON() ([]byte, error) {
	if len(l.raw) > 0 {
		return l.raw, nil
	}
	type plain RawListing
	return json.Marshal(plain(l))
}

// Validate checks the minimum shape the normalizer relies on.
func (l *RawListing) Validate() error {
	if l.Movie == nil {
		return errors.Join(ErrMalformedListing, errors.New("missing movie"))
	}
	if strings.TrimSpace(l.Movie.ID) == "" {
		return errors.Join(ErrMalformedListing, errors.New("missing movie id"))
	}
	return nil
}

// HasLanguage reports whether the movie's language list contains lang (case-insensitive).
func (l *RawListing) HasLanguage(lang string) bool {
	if l.Movie == nil {
		return false
	}
	for _, candidate := range l.Movie.Languages {
		if strings.EqualFold(strings.TrimSpace(candidate), lang) {
			return true
		}
	}
	return false
}

// HasOriginalShowtimes reports whether at least one original-language category
// carries at least one entry.
func (l *RawListing) HasOriginalShowtimes() bool {
	for _, category := range OriginalLanguageCategories {
		var entries []json.RawMessage
		if err := json.Unmarshal(l.Showtimes[category], &entries); err != nil {
			continue
		}
		if len(entries) > 0 {
			return true
		}
	}
	return false
}

// OriginalShowtimes collects the entries of every original-language category.
// Entries (or whole categories) that do not decode are counted in malformed
// and skipped.
func (l *RawListing) OriginalShowtimes() (showtimes []RawShowtime, malformed int) {
	for _, category := range OriginalLanguageCategories {
		body, ok := l.Showtimes[category]
		if !ok || len(body) == 0 || string(body) == "null" {
			continue
		}
		var entries []json.RawMessage
		if err := json.Unmarshal(body, &entries); err != nil {
			malformed++
			continue
		}
		for _, entry := range entries {
			var st RawShowtime
			if err := json.Unmarshal(entry, &st); err != nil || st.StartsAt == "" {
				malformed++
				continue
			}
			showtimes = append(showtimes, st)
		}
	}
	return showtimes, malformed
}
