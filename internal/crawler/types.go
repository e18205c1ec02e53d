package crawler

import (
	"strings"
	"time"

	"github.com/JakeFAU/job-listing-crawler/internal/listing"
)

// Status classifies the result of one (keyword, source) fetch.
type Status string

// Fetch outcome values.
const (
	StatusSuccess Status = "success"
	StatusEmpty   Status = "empty"
	StatusError   Status = "error"
)

// Outcome records what happened for one keyword on one source.
type Outcome struct {
	Keyword  string         `json:"keyword"`
	Source   listing.Source `json:"source"`
	Status   Status         `json:"status"`
	Count    int            `json:"count"`
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration_ns"`
}

// Report is the full result of a crawl.
type Report struct {
	ID         string            `json:"id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Keywords   []string          `json:"keywords"`
	Listings   []listing.Listing `json:"listings"`
	Outcomes   []Outcome         `json:"outcomes"`
	// Raw is the number of listings collected before deduplication.
	Raw int `json:"raw_count"`
	// Err is set only when no browser session could be started.
	Err string `json:"error,omitempty"`
}

// Duration is the wall time the crawl took.
func (r Report) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failed reports whether any fetch ended in error or the session never started.
func (r Report) Failed() bool {
	if r.Err != "" {
		return true
	}
	for _, o := range r.Outcomes {
		if o.Status == StatusError {
			return true
		}
	}
	return false
}

// NormalizeKeywords trims each keyword and drops blanks and repeats, keeping
// the first occurrence.
func NormalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, kw := range in {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}
