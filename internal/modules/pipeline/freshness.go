package pipeline

import "time"

// FreshnessIndex answers "was this URL analyzed recently" for one run. It
// is built once from a single query before the resource loop and never
// mutated, so mid-run detections cannot shift skip decisions.
type FreshnessIndex struct {
	window time.Duration
	byURL  map[string]time.Time
}

// NewFreshnessIndex wraps the newest open detection time per target URL.
func NewFreshnessIndex(window time.Duration, newest map[string]time.Time) *FreshnessIndex {
	copied := make(map[string]time.Time, len(newest))
	for url, at := range newest {
		copied[url] = at
	}
	return &FreshnessIndex{window: window, byURL: copied}
}

// Lookup returns the newest open detection time for a URL.
func (idx *FreshnessIndex) Lookup(url string) (time.Time, bool) {
	at, ok := idx.byURL[url]
	return at, ok
}

// Fresh reports whether the URL has an open detection newer than the
// window. URLs with no open issues are never fresh.
func (idx *FreshnessIndex) Fresh(url string, now time.Time) bool {
	at, ok := idx.byURL[url]
	if !ok {
		return false
	}
	return now.Sub(at) < idx.window
}

// Len returns the number of indexed URLs.
func (idx *FreshnessIndex) Len() int { return len(idx.byURL) }
