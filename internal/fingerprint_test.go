package internal

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnit_Fingerprint_KnownVectors(t *testing.T) {
	tests := []struct {
		name     string
		movieID  string
		cinemaID string
		start    time.Time
		want     string
	}{
		{
			name:     "evening show",
			movieID:  "TW92aWU6MjY5MTIy",
			cinemaID: "P8110",
			start:    time.Date(2024, 5, 1, 18, 30, 0, 0, time.UTC),
			want:     "ddbbc9ba948d1e9c37b611314117efa48ef0be3408fd5a8dd165445a9e630063",
		},
		{
			name:     "seven pm",
			movieID:  "TW92aWU6MjY5MTIy",
			cinemaID: "P8110",
			start:    time.Date(2025, 3, 11, 19, 0, 0, 0, time.UTC),
			want:     "ea0aac89649ef5b2d0845eb23a2bf5470219fcf5068e503463504d403a194b0a",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fingerprint(tt.movieID, tt.cinemaID, tt.start)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, 64)
		})
	}
}

func TestUnit_Fingerprint_Deterministic(t *testing.T) {
	start := time.Date(2025, 3, 11, 19, 0, 0, 0, time.UTC)
	base := Fingerprint("M1", "P8110", start)

	assert.Equal(t, base, Fingerprint("M1", "P8110", start), "identical inputs")
	assert.NotEqual(t, base, Fingerprint("M2", "P8110", start), "movie changed")
	assert.NotEqual(t, base, Fingerprint("M1", "P8111", start), "cinema changed")
	assert.NotEqual(t, base, Fingerprint("M1", "P8110", start.Add(time.Minute)), "start changed")
}

func TestUnit_Fingerprint_MinuteResolution(t *testing.T) {
	start := time.Date(2025, 3, 11, 19, 0, 0, 0, time.UTC)
	assert.Equal(t,
		Fingerprint("M1", "P8110", start),
		Fingerprint("M1", "P8110", start.Add(42*time.Second+time.Millisecond)),
	)
}

func TestUnit_Fingerprint_IgnoresLocation(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	local := time.Date(2025, 3, 11, 19, 0, 0, 0, paris)
	utc := time.Date(2025, 3, 11, 19, 0, 0, 0, time.UTC)
	assert.Equal(t, Fingerprint("M1", "P8110", utc), Fingerprint("M1", "P8110", local),
		"the wall clock is what counts")
}

func TestUnit_Showing_Fingerprint(t *testing.T) {
	s := Showing{MovieID: "TW92aWU6MjY5MTIy", CinemaID: "P8110", StartTime: time.Date(2025, 3, 11, 19, 0, 0, 0, time.UTC)}
	assert.Equal(t, "ea0aac89649ef5b2d0845eb23a2bf5470219fcf5068e503463504d403a194b0a", s.Fingerprint())
}
