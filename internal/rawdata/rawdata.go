// Package rawdata persists the raw listings of an ingestion run so the run can
// be replayed without touching the network.
package rawdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/drewfead/vo-watcher/internal"
)

const fileTimeLayout = "2006-01-02_15-04-05"

var ErrEmptyCapture = errors.New("raw capture has no cinemas")

// Capture is the on-disk form of a run's raw listings.
type Capture struct {
	RunID      string              `json:"run_id,omitempty"`
	CapturedAt time.Time           `json:"captured_at"`
	Cinemas    internal.RawCapture `json:"cinemas"`
}

// FileName is the capture file name for a run started at t.
func FileName(t time.Time) string {
	return "raw_data_" + t.Format(fileTimeLayout) + ".json"
}

// Save writes capture to dir/raw_data_<timestamp>.json and returns the path.
// The file is written under a temporary name and renamed into place.
func Save(dir, runID string, capturedAt time.Time, capture internal.RawCapture) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create raw data dir: %w", err)
	}
	body, err := json.MarshalIndent(Capture{
		RunID:      runID,
		CapturedAt: capturedAt,
		Cinemas:    capture,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode raw capture: %w", err)
	}
	body = append(body, '\n')

	path := filepath.Join(dir, FileName(capturedAt))
	tmp, err := os.CreateTemp(dir, ".raw_data_*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create raw data file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write raw data file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write raw data file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move raw data file into place: %w", err)
	}
	return path, nil
}

// Load reads a capture written by Save. A bare cinema-to-listings object, as
// older captures were written, is accepted too.
func Load(path string) (Capture, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Capture{}, fmt.Errorf("failed to read raw data file: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return Capture{}, fmt.Errorf("failed to decode raw data file %s: %w", path, err)
	}

	var capture Capture
	if _, ok := fields["cinemas"]; ok {
		if err := json.Unmarshal(body, &capture); err != nil {
			return Capture{}, fmt.Errorf("failed to decode raw data file %s: %w", path, err)
		}
	} else {
		if err := json.Unmarshal(body, &capture.Cinemas); err != nil {
			return Capture{}, fmt.Errorf("failed to decode raw data file %s: %w", path, err)
		}
	}
	if len(capture.Cinemas) == 0 {
		return Capture{}, fmt.Errorf("%w: %s", ErrEmptyCapture, path)
	}
	return capture, nil
}
