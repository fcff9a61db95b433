package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/drewfead/vo-watcher/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeListing(t *testing.T, body string) internal.RawListing {
	t.Helper()
	var l internal.RawListing
	require.NoError(t, json.Unmarshal([]byte(body), &l))
	return l
}

const duneListing = `{
  "movie": {
    "id": "TW92aWU6MjY5MTIy",
    "title": "Dune : Deuxième Partie",
    "originalTitle": "Dune: Part Two",
    "synopsis": "<p>Paul Atreides s&#39;unit à Chani &amp; aux Fremen.</p>",
    "poster": {"url": "https://fr.web.img6.acsta.net/pictures/dune.jpg"},
    "runtime": "2h 46min",
    "languages": ["ENGLISH"],
    "genres": [{"tag": "SCIENCE_FICTION"}, {"tag": "ADVENTURE"}],
    "cast": {"edges": [
      {"node": {"actor": {"firstName": "Timothée", "lastName": "Chalamet"}}},
      {"node": {"actor": {"firstName": "", "lastName": ""}}},
      {"node": {"actor": null}},
      {"node": {"actor": {"firstName": "Zendaya", "lastName": ""}}}
    ]},
    "releases": [
      {"__typename": "MovieRelease", "name": "Released", "releaseDate": {"date": "2024-02-28"}}
    ]
  },
  "showtimes": {
    "original": [{"startsAt": "2025-03-11T19:00:00"}, {"startsAt": "not a time"}],
    "dubbed": [{"startsAt": "2025-03-11T14:00:00"}]
  },
  "data": {"productionYear": 2023}
}`

func TestUnit_Normalizer_Listing(t *testing.T) {
	n := New()
	res, err := n.Listing("P8110", decodeListing(t, duneListing))
	require.NoError(t, err)

	m := res.Movie
	assert.Equal(t, "TW92aWU6MjY5MTIy", m.ID)
	assert.Equal(t, "Dune: Part Two", m.OriginalTitle)
	assert.Equal(t, "Dune : Deuxième Partie", m.LocalizedTitle)
	assert.Equal(t, []string{"Timothée Chalamet", "Zendaya"}, m.Cast)
	assert.Equal(t, []string{"English"}, m.Languages)
	assert.Equal(t, []string{"Science Fiction", "Adventure"}, m.Genres)
	require.NotNil(t, m.ReleaseDate)
	assert.Equal(t, time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC), *m.ReleaseDate)
	assert.Equal(t, 166, m.Runtime)
	assert.Equal(t, "Paul Atreides s'unit à Chani & aux Fremen.", m.Synopsis)
	assert.Equal(t, "https://fr.web.img6.acsta.net/pictures/dune.jpg", m.PosterHiRes)

	require.Len(t, res.Showings, 1, "dubbed showings are not emitted")
	assert.Equal(t, internal.Showing{
		MovieID:   "TW92aWU6MjY5MTIy",
		CinemaID:  "P8110",
		StartTime: time.Date(2025, 3, 11, 19, 0, 0, 0, time.UTC),
	}, res.Showings[0])
	assert.Equal(t, 1, res.SkippedShowtimes)
}

func TestUnit_Normalizer_MissingTitle(t *testing.T) {
	n := New()
	_, err := n.Listing("P8110", decodeListing(t, `{"movie":{"id":"TW92aWU6MQ==","title":"Titre","originalTitle":"  "},"showtimes":{}}`))
	assert.ErrorIs(t, err, ErrMissingTitle)

	_, err = n.Listing("P8110", decodeListing(t, `{"movie":{"id":"TW92aWU6MQ==","originalTitle":"Title"},"showtimes":{}}`))
	assert.ErrorIs(t, err, ErrMissingTitle)
}

func TestUnit_Normalizer_PartialFailureIsolation(t *testing.T) {
	var listings []internal.RawListing
	for i := range 10 {
		if i == 4 {
			listings = append(listings, decodeListing(t, `{"movie":{"id":"TW92aWU6NA==","title":"","originalTitle":""},"showtimes":{"original":[{"startsAt":"2025-03-11T19:00:00"}]}}`))
			continue
		}
		listings = append(listings, decodeListing(t, fmt.Sprintf(
			`{"movie":{"id":"TW92aWU6%d","title":"Film %d","originalTitle":"Movie %d","languages":["ENGLISH"]},"showtimes":{"original":[{"startsAt":"2025-03-11T19:00:00"}]}}`,
			i, i, i)))
	}

	results := New().Listings("P8110", listings)
	assert.Len(t, results, 9)
	for _, r := range results {
		assert.Len(t, r.Showings, 1)
	}
}

func TestUnit_Cast(t *testing.T) {
	cast := &internal.RawCast{Edges: []internal.RawCastEdge{
		edge("Cillian", "Murphy"),
		edge("", ""),
		edge("  ", "Cher"),
		edge("Emily", ""),
	}}
	assert.Equal(t, []string{"Cillian Murphy", "Cher", "Emily"}, Cast(cast))
	assert.Nil(t, Cast(nil))
}

func edge(first, last string) internal.RawCastEdge {
	var e internal.RawCastEdge
	e.Node.Actor = &internal.RawPerson{FirstName: first, LastName: last}
	return e
}

func TestUnit_ReleaseDate(t *testing.T) {
	date := func(s string) *struct {
		Date string `json:"date"`
	} {
		return &struct {
			Date string `json:"date"`
		}{Date: s}
	}
	year := func(raw string) *internal.RawListingData {
		return &internal.RawListingData{ProductionYear: json.RawMessage(raw)}
	}
	jan1 := func(y int) *time.Time {
		d := time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
		return &d
	}

	tests := []struct {
		name     string
		releases []internal.RawRelease
		data     *internal.RawListingData
		want     *time.Time
	}{
		{
			name: "first theatrical release wins",
			releases: []internal.RawRelease{
				{Typename: "DvdRelease", ReleaseDate: date("2020-01-01")},
				{Typename: "MovieRelease", ReleaseDate: date("2019-05-22")},
				{Typename: "MovieRelease", ReleaseDate: date("2019-06-01")},
			},
			data: year("2018"),
			want: func() *time.Time { d := time.Date(2019, 5, 22, 0, 0, 0, 0, time.UTC); return &d }(),
		},
		{
			name:     "unparseable theatrical date falls back to production year",
			releases: []internal.RawRelease{{Typename: "MovieRelease", ReleaseDate: date("soon")}},
			data:     year("2018"),
			want:     jan1(2018),
		},
		{
			name: "production year as string",
			data: year(`"2001"`),
			want: jan1(2001),
		},
		{
			name:     "nothing resolves",
			releases: []internal.RawRelease{{Typename: "MovieRelease"}},
			data:     year("null"),
			want:     nil,
		},
		{
			name: "no data",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReleaseDate(tt.releases, tt.data))
		})
	}
}

func TestUnit_Runtime(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{`119`, 119},
		{`"1h 59min"`, 119},
		{`"2h"`, 120},
		{`"45min"`, 45},
		{`"PT1H59M"`, 119},
		{`"unknown"`, 0},
		{`null`, 0},
		{`-5`, 0},
		{`70000`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, Runtime(json.RawMessage(tt.raw)))
		})
	}
}

func TestUnit_EncodeList(t *testing.T) {
	encoded, err := EncodeList([]string{"English", "French"})
	require.NoError(t, err)
	assert.Equal(t, "English,French", encoded)
	assert.Equal(t, []string{"English", "French"}, DecodeList(encoded))

	_, err = EncodeList([]string{"Drama, Comedy"})
	assert.ErrorIs(t, err, ErrInvalidList, "delimiter inside an element")

	_, err = EncodeList([]string{strings.Repeat("a", 100), strings.Repeat("b", 91)})
	assert.ErrorIs(t, err, ErrInvalidList, "192 characters once joined")

	_, err = EncodeList([]string{strings.Repeat("a", 100), strings.Repeat("b", 90)})
	assert.NoError(t, err, "exactly 191 characters")

	assert.Nil(t, DecodeList(""))
}

func TestUnit_Normalizer_RejectsOversizedListField(t *testing.T) {
	var genres []string
	for i := range 40 {
		genres = append(genres, fmt.Sprintf(`{"tag":"GENRE_%02d"}`, i))
	}
	body := fmt.Sprintf(`{"movie":{"id":"TW92aWU6OQ==","title":"Film","originalTitle":"Movie","languages":["ENGLISH"],"genres":[%s]},"showtimes":{}}`,
		strings.Join(genres, ","))

	res, err := New().Listing("P8110", decodeListing(t, body))
	require.NoError(t, err, "the movie is still emitted")
	assert.Nil(t, res.Movie.Genres)
	assert.Equal(t, []string{"English"}, res.Movie.Languages)
}
