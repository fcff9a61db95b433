package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/drewfead/vo-watcher/internal"
)

func indentJSON(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// writeGoldenFiles creates goldenDir and writes each map entry as a pretty-printed JSON file.
func writeGoldenFiles(goldenDir string, files map[string][]byte) error {
	if err := os.MkdirAll(goldenDir, 0o750); err != nil {
		return fmt.Errorf("failed to create golden dir: %w", err)
	}
	for key, body := range files {
		pretty, err := indentJSON(body)
		if err != nil {
			return fmt.Errorf("failed to format %s golden file: %w", key, err)
		}
		if err := os.WriteFile(filepath.Join(goldenDir, key+".json"), pretty, 0o600); err != nil {
			return fmt.Errorf("failed to write %s golden file: %w", key, err)
		}
	}
	return nil
}

// PullGolden fetches every page of cinemaID in window with the primary strategy
// and writes them under goldenDir/<cinemaID>/d-<offset>.json. Listings are
// written unfiltered so fixtures exercise the filter too.
func (s *Scraper) PullGolden(ctx context.Context, goldenDir, cinemaID string, window internal.DayWindow) error {
	files := make(map[string][]byte)
	for i, pageURL := range s.URLs(cinemaID, window) {
		page, err := s.primary.FetchPage(ctx, pageURL)
		if err != nil {
			return fmt.Errorf("failed to fetch golden page %s: %w", pageURL, err)
		}
		body, err := json.Marshal(struct {
			Results []internal.RawListing `json:"results"`
		}{Results: page.Listings})
		if err != nil {
			return fmt.Errorf("failed to encode golden page %s: %w", pageURL, err)
		}
		files[fmt.Sprintf("d-%d", window.Start+i)] = body
	}
	return writeGoldenFiles(filepath.Join(goldenDir, cinemaID), files)
}

var goldenPathPattern = regexp.MustCompile(`([A-Z]\d{4})/d-(\d+)/?$`)

// MountGolden serves goldenDir the way the listing site serves pages: any path
// ending in <cinemaID>/d-<offset>/ answers with goldenDir/<cinemaID>/d-<offset>.json,
// or 404 when no such file exists.
func MountGolden(goldenDir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := goldenPathPattern.FindStringSubmatch(r.URL.Path)
		if m == nil {
			http.NotFound(w, r)
			return
		}
		body, err := os.ReadFile(filepath.Join(goldenDir, m[1], "d-"+m[2]+".json"))
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			_, _ = fmt.Fprintf(w, "not found (golden file not found: %s/d-%s.json)", m[1], m[2])
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	})
}
