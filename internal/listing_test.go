package internal

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleListing = `{
  "movie": {"id": "TW92aWU6MjY5MTIy", "title": "Dune", "originalTitle": "Dune: Part Two", "languages": ["ENGLISH", "FRENCH"]},
  "showtimes": {
    "dubbed": [{"startsAt": "2025-03-11T16:00:00"}],
    "original": [{"startsAt": "2025-03-11T19:00:00"}, {"nope": true}],
    "original_st": "garbage",
    "original_st_sme": [{"startsAt": "2025-03-11T21:30:00"}]
  }
}`

func TestUnit_RawListing_OriginalShowtimes(t *testing.T) {
	var l RawListing
	require.NoError(t, json.Unmarshal([]byte(sampleListing), &l))
	require.NoError(t, l.Validate())

	assert.True(t, l.HasLanguage("english"))
	assert.False(t, l.HasLanguage("german"))
	assert.True(t, l.HasOriginalShowtimes())

	showtimes, malformed := l.OriginalShowtimes()
	assert.Equal(t, []RawShowtime{{StartsAt: "2025-03-11T19:00:00"}, {StartsAt: "2025-03-11T21:30:00"}}, showtimes)
	assert.Equal(t, 2, malformed, "one bad entry and one bad category")
}

func TestUnit_RawListing_NoOriginalShowtimes(t *testing.T) {
	var l RawListing
	require.NoError(t, json.Unmarshal([]byte(`{"movie":{"id":"x"},"showtimes":{"dubbed":[{"startsAt":"2025-03-11T16:00:00"}],"original":[]}}`), &l))
	assert.False(t, l.HasOriginalShowtimes())
}

func TestUnit_RawListing_Validate(t *testing.T) {
	var l RawListing
	require.NoError(t, json.Unmarshal([]byte(`{"showtimes":{}}`), &l))
	assert.ErrorIs(t, l.Validate(), ErrMalformedListing)

	require.NoError(t, json.Unmarshal([]byte(`{"movie":{"id":"  "}}`), &l))
	assert.ErrorIs(t, l.Validate(), ErrMalformedListing)
}

func TestUnit_RawListing_MarshalKeepsSourceBytes(t *testing.T) {
	src := []byte(`{"movie":{"id":"abc","extra":{"kept":1}},"showtimes":{}}`)
	var l RawListing
	require.NoError(t, json.Unmarshal(src, &l))

	out, err := json.Marshal(l)
	require.NoError(t, err)
	assert.JSONEq(t, string(src), string(out), "fields the decoder ignores survive raw capture")
}
