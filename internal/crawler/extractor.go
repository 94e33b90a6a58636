package crawler

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// linkFields is the fixed list of payload fields known to hold arrays of
// outbound resource URLs.
var linkFields = []string{
	"characters",
	"films",
	"people",
	"pilots",
	"planets",
	"residents",
	"species",
	"starships",
	"vehicles",
}

// Extractor parses fetched JSON payloads into outbound links and a stored
// record. Only well-formed absolute URLs under the crawl root are kept, so
// the crawl never follows off-domain links.
type Extractor struct {
	rootURL string
}

// NewExtractor builds an Extractor rooted at rootURL.
func NewExtractor(rootURL string) *Extractor {
	return &Extractor{rootURL: rootURL}
}

// Extract returns the outbound links found in payload plus the Record to
// persist for srcURL. A payload that is not a JSON object is an extraction
// error, terminal for this URL.
func (e *Extractor) Extract(srcURL string, payload []byte, fetchedAt time.Time) ([]string, Record, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, Record{}, fmt.Errorf("decode payload for %s: %w", srcURL, err)
	}

	var links []string
	for _, field := range linkFields {
		raw, ok := doc[field]
		if !ok {
			continue
		}
		var values []string
		if err := json.Unmarshal(raw, &values); err != nil {
			// Field exists but is not an array of strings; skip it.
			continue
		}
		for _, v := range values {
			if e.allowed(v) {
				links = append(links, v)
			}
		}
	}

	rec := Record{
		URL:       srcURL,
		FetchedAt: fetchedAt,
		Payload:   json.RawMessage(payload),
	}
	return links, rec, nil
}

func (e *Extractor) allowed(raw string) bool {
	if raw == "" || !strings.HasPrefix(raw, e.rootURL) {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.IsAbs()
}
