// Package listing defines the normalized job posting record shared by every
// source adapter, plus the cross-source deduplication pass.
package listing

import "strings"

// Source identifies the listing provider that produced a record.
type Source string

// Supported listing sources. The string values are the tags emitted in the
// JSON payload handed to downstream consumers.
const (
	SourceGoogle   Source = "Google"
	SourceLinkedIn Source = "LinkedIn"
)

// PlaceholderDescription is used when a source exposes no snippet for a card.
const PlaceholderDescription = "No description available."

// Listing is one job posting as observed by one source.
type Listing struct {
	Source      Source `json:"source"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location,omitempty"`
	Link        string `json:"link"`
	Description string `json:"description"`
}

// Key is the identity used to collapse the same posting seen more than once.
type Key struct {
	Title   string
	Company string
}

// Key returns the deduplication key. Comparison is exact text equality.
func (l Listing) Key() Key {
	return Key{Title: l.Title, Company: l.Company}
}

// Valid reports whether the record carries both required fields.
func (l Listing) Valid() bool {
	return strings.TrimSpace(l.Title) != "" && strings.TrimSpace(l.Company) != ""
}

// Dedupe keeps the first listing for every (title, company) pair and drops the
// rest, preserving the relative order of the survivors. The input is not
// modified.
func Dedupe(in []Listing) []Listing {
	if len(in) == 0 {
		return []Listing{}
	}
	seen := make(map[Key]struct{}, len(in))
	out := make([]Listing, 0, len(in))
	for _, l := range in {
		k := l.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, l)
	}
	return out
}

// CountBySource tallies listings per source tag.
func CountBySource(in []Listing) map[Source]int {
	out := make(map[Source]int)
	for _, l := range in {
		out[l.Source]++
	}
	return out
}
