package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// FingerprintTimeLayout is the fixed textual form of a start time inside a fingerprint.
const FingerprintTimeLayout = "2006-01-02 15:04:05"

// Fingerprint computes the SHA-256 digest (lowercase hex) of movieID, cinemaID
// and the start time truncated to the minute, concatenated in that order.
// Two showings that differ only below minute resolution share a fingerprint.
func Fingerprint(movieID, cinemaID string, start time.Time) string {
	wall := WallClock(start).Truncate(time.Minute)
	sum := sha256.Sum256([]byte(movieID + cinemaID + wall.Format(FingerprintTimeLayout)))
	return hex.EncodeToString(sum[:])
}

// WallClock re-anchors t's wall-clock reading in UTC, dropping its location.
// Showing start times are compared this way since the store keeps them as
// naive local datetimes.
func WallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
