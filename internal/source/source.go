// Package source implements the supported listing providers. Each adapter
// drives a browser page through one search and extracts normalized listings
// from the rendered document.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/job-listing-crawler/internal/browser"
	"github.com/JakeFAU/job-listing-crawler/internal/listing"
)

// DefaultMaxResults caps the listings kept per source and keyword.
const DefaultMaxResults = 10

// ErrUnknownSource is returned by New for an unsupported source name.
var ErrUnknownSource = errors.New("unknown source")

// Adapter fetches listings for one keyword from one provider. The set of
// implementations is closed.
type Adapter interface {
	Source() listing.Source
	Fetch(ctx context.Context, page browser.Page, keyword string) ([]listing.Listing, error)
	sealed()
}

// Options tunes adapter behaviour shared across providers.
type Options struct {
	// MaxResults caps listings per fetch. Zero means unlimited, negative
	// selects DefaultMaxResults.
	MaxResults int
	// LoadMoreDelay is waited after a load-more control is clicked.
	LoadMoreDelay time.Duration
	Pager         *browser.Pager
	Logger        *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxResults < 0 {
		o.MaxResults = DefaultMaxResults
	}
	if o.LoadMoreDelay < 0 {
		o.LoadMoreDelay = 0
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Pager == nil {
		o.Pager = browser.NewPager(0, browser.DefaultPagerDelay, o.Logger)
	}
	return o
}

// New builds the adapter registered under name. Matching is case-insensitive.
func New(name string, opts Options) (Adapter, error) {
	opts = opts.withDefaults()
	switch strings.ToLower(strings.TrimSpace(name)) {
	case strings.ToLower(string(listing.SourceGoogle)):
		return &google{opts: opts, logger: opts.Logger.Named("google")}, nil
	case strings.ToLower(string(listing.SourceLinkedIn)):
		return &linkedIn{opts: opts, logger: opts.Logger.Named("linkedin")}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
}

// Names lists the supported sources in crawl order.
func Names() []listing.Source {
	return []listing.Source{listing.SourceGoogle, listing.SourceLinkedIn}
}

// Defaults returns every supported adapter in crawl order.
func Defaults(opts Options) []Adapter {
	out := make([]Adapter, 0, len(Names()))
	for _, name := range Names() {
		a, err := New(string(name), opts)
		if err != nil {
			panic(err) // unreachable: Names only lists registered sources
		}
		out = append(out, a)
	}
	return out
}

// FromNames builds adapters for the given names, keeping their order and
// skipping repeats. An empty list yields Defaults.
func FromNames(names []string, opts Options) ([]Adapter, error) {
	if len(names) == 0 {
		return Defaults(opts), nil
	}
	seen := make(map[listing.Source]struct{}, len(names))
	out := make([]Adapter, 0, len(names))
	for _, name := range names {
		a, err := New(name, opts)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[a.Source()]; ok {
			continue
		}
		seen[a.Source()] = struct{}{}
		out = append(out, a)
	}
	return out, nil
}

// plan describes how one provider's result page is driven and read.
type plan struct {
	source    listing.Source
	url       string
	container string
	loadMore  string
	extract   func(html, base string) ([]listing.Listing, error)
}

// run executes the steps shared by every provider: navigate, wait for the
// results container, optionally expand the list, scroll, then extract. A
// failure is logged with the search URL before it is returned.
func run(ctx context.Context, page browser.Page, p plan, opts Options, logger *zap.Logger) (out []listing.Listing, err error) {
	defer func() {
		if err != nil {
			logger.Warn("search failed", zap.String("url", p.url), zap.Error(err))
		}
	}()
	if err := page.Navigate(ctx, p.url); err != nil {
		return nil, fmt.Errorf("%s: %w", p.source, err)
	}
	if err := page.WaitFor(ctx, p.container); err != nil {
		return nil, fmt.Errorf("%s: results container: %w", p.source, err)
	}
	if p.loadMore != "" {
		clicked, err := page.ClickIfPresent(ctx, p.loadMore)
		switch {
		case err != nil:
			logger.Debug("load more click failed", zap.Error(err))
		case clicked:
			if !wait(ctx, opts.LoadMoreDelay) {
				return nil, fmt.Errorf("%s: %w", p.source, ctx.Err())
			}
		}
	}
	scrolls := opts.Pager.Paginate(ctx, page)
	logger.Debug("paged results", zap.Int("scrolls", scrolls))

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.source, err)
	}
	out, err = p.extract(html, p.url)
	if err != nil {
		return nil, fmt.Errorf("%s: extract: %w", p.source, err)
	}
	return capResults(out, opts.MaxResults), nil
}

func capResults(in []listing.Listing, limit int) []listing.Listing {
	if limit > 0 && len(in) > limit {
		return in[:limit]
	}
	return in
}

func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
