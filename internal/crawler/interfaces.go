package crawler

import (
	"context"
	"time"

	"github.com/JakeFAU/job-listing-crawler/internal/browser"
	"github.com/JakeFAU/job-listing-crawler/internal/listing"
)

// Session is a live browser tab that must be released exactly once.
type Session interface {
	browser.Page
	Release()
}

// SessionSource starts browser sessions.
type SessionSource interface {
	Acquire(ctx context.Context) (Session, error)
}

// Adapter fetches listings for a keyword from one source.
type Adapter interface {
	Source() listing.Source
	Fetch(ctx context.Context, page browser.Page, keyword string) ([]listing.Listing, error)
}

// Observer receives crawl lifecycle notifications. Implementations must not
// block.
type Observer interface {
	CrawlStarted(crawlID string)
	FetchFinished(crawlID string, outcome Outcome)
	CrawlFinished(report Report)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces crawl IDs.
type IDGenerator interface {
	NewID() (string, error)
}

type nopObserver struct{}

func (nopObserver) CrawlStarted(string)           {}
func (nopObserver) FetchFinished(string, Outcome) {}
func (nopObserver) CrawlFinished(Report)          {}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }
