package fetch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/drewfead/vo-watcher/internal"
)

// DecodePage parses a listing page body. Bodies rendered by a browser or a
// proxy may wrap the JSON in HTML (typically a <pre> element); the JSON is
// extracted before decoding. Entries of "results" that do not decode as
// listings are counted in Malformed rather than failing the page.
func DecodePage(pageURL string, body []byte) (internal.ListingPage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return internal.ListingPage{}, fmt.Errorf("%w: empty body", ErrUnexpectedPayload)
	}
	if body[0] == '<' {
		unwrapped, err := unwrapHTML(body)
		if err != nil {
			return internal.ListingPage{}, err
		}
		body = unwrapped
	}

	var envelope struct {
		Results *[]json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return internal.ListingPage{}, fmt.Errorf("%w: %w", ErrUnexpectedPayload, err)
	}
	if envelope.Results == nil {
		return internal.ListingPage{}, fmt.Errorf("%w: missing results", ErrUnexpectedPayload)
	}

	page := internal.ListingPage{
		URL:      pageURL,
		Listings: make([]internal.RawListing, 0, len(*envelope.Results)),
	}
	for i, raw := range *envelope.Results {
		var listing internal.RawListing
		if err := json.Unmarshal(raw, &listing); err != nil {
			slog.Debug("fetch: undecodable listing", "url", pageURL, "index", i, "error", err)
			page.Malformed++
			continue
		}
		page.Listings = append(page.Listings, listing)
	}
	return page, nil
}

func unwrapHTML(body []byte) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedPayload, err)
	}
	text := strings.TrimSpace(doc.Find("pre").First().Text())
	if text == "" {
		text = strings.TrimSpace(doc.Find("body").Text())
	}
	if !strings.HasPrefix(text, "{") {
		return nil, fmt.Errorf("%w: html without embedded json", ErrUnexpectedPayload)
	}
	return []byte(text), nil
}
