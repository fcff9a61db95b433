package rawdata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/drewfead/vo-watcher/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const duneListing = `{"movie":{"id":"TW92aWU6MjY5MTIy","title":"Dune : Deuxième partie","originalTitle":"Dune: Part Two","languages":["ENGLISH"]},"showtimes":{"original":[{"startsAt":"2025-03-11T19:00:00"}]}}`

func testCapture(t *testing.T) internal.RawCapture {
	t.Helper()
	var listing internal.RawListing
	require.NoError(t, json.Unmarshal([]byte(duneListing), &listing))
	return internal.RawCapture{"P8110": {listing}}
}

func TestUnit_RawData_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2025, 3, 11, 8, 5, 9, 0, time.UTC)

	path, err := Save(dir, "run-1", at, testCapture(t))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "raw_data_2025-03-11_08-05-09.json"), path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.True(t, at.Equal(loaded.CapturedAt))
	require.Len(t, loaded.Cinemas["P8110"], 1)
	listing := loaded.Cinemas["P8110"][0]
	assert.Equal(t, "TW92aWU6MjY5MTIy", listing.Movie.ID)
	assert.True(t, listing.HasOriginalShowtimes())
}

func TestUnit_RawData_LoadBareMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw_data_2024-05-01_10-00-00.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"P8110":[`+duneListing+`]}`), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, loaded.RunID)
	require.Len(t, loaded.Cinemas["P8110"], 1)
}

func TestUnit_RawData_LoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	require.Error(t, err)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{}`), 0o600))
	_, err = Load(empty)
	require.ErrorIs(t, err, ErrEmptyCapture)

	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte(`<html>`), 0o600))
	_, err = Load(garbage)
	require.Error(t, err)
}
