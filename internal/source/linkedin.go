package source

import (
	"context"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/job-listing-crawler/internal/browser"
	"github.com/JakeFAU/job-listing-crawler/internal/listing"
)

const (
	linkedInSearchURL   = "https://www.linkedin.com/jobs/search/"
	linkedInContainer   = "ul.jobs-search__results-list"
	linkedInLoadMore    = "button.infinite-scroller__show-more-button"
	linkedInCard        = "div.base-search-card"
	linkedInTitle       = "h3.base-search-card__title"
	linkedInCompany     = "h4.base-search-card__subtitle"
	linkedInLocation    = "span.job-search-card__location"
	linkedInLink        = "a.base-card__full-link"
	linkedInDescription = "p.job-search-card__snippet"
)

type linkedIn struct {
	opts   Options
	logger *zap.Logger
}

func (*linkedIn) sealed() {}

func (*linkedIn) Source() listing.Source { return listing.SourceLinkedIn }

func (l *linkedIn) Fetch(ctx context.Context, page browser.Page, keyword string) ([]listing.Listing, error) {
	logger := l.logger.With(zap.String("keyword", keyword))
	return run(ctx, page, plan{
		source:    listing.SourceLinkedIn,
		url:       linkedInJobsURL(keyword),
		container: linkedInContainer,
		loadMore:  linkedInLoadMore,
		extract:   extractLinkedIn,
	}, l.opts, logger)
}

func linkedInJobsURL(query string) string {
	return linkedInSearchURL + "?" + url.Values{"keywords": {query}}.Encode()
}

// extractLinkedIn reads the public guest search results. Cards without a
// detail link are skipped.
func extractLinkedIn(html, base string) ([]listing.Listing, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return nil, err
	}
	var out []listing.Listing
	doc.Find(linkedInCard).Each(func(_ int, card *goquery.Selection) {
		l := listing.Listing{
			Source:      listing.SourceLinkedIn,
			Title:       textOf(card, linkedInTitle),
			Company:     textOf(card, linkedInCompany),
			Location:    textOf(card, linkedInLocation),
			Description: textOf(card, linkedInDescription),
		}
		if href, ok := card.Find(linkedInLink).First().Attr("href"); ok {
			l.Link = resolveLink(base, href)
		}
		if !l.Valid() || l.Link == "" {
			return
		}
		if l.Description == "" {
			l.Description = listing.PlaceholderDescription
		}
		out = append(out, l)
	})
	return out, nil
}
