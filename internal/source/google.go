package source

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/job-listing-crawler/internal/browser"
	"github.com/JakeFAU/job-listing-crawler/internal/listing"
)

const (
	googleSearchURL   = "https://www.google.com/search"
	googleContainer   = "div.gws-plugins-horizon-jobs__tl-lvc"
	googleCard        = "li.iFjolb"
	googleTitle       = "div.BjJfJf.PUpOsf"
	googleCompany     = "div.vNEEBe"
	googleLocation    = "div.Qk80Jf"
	googleDescription = "span.HBvzbc"
)

type google struct {
	opts   Options
	logger *zap.Logger
}

func (*google) sealed() {}

func (*google) Source() listing.Source { return listing.SourceGoogle }

func (g *google) Fetch(ctx context.Context, page browser.Page, keyword string) ([]listing.Listing, error) {
	logger := g.logger.With(zap.String("keyword", keyword))
	return run(ctx, page, plan{
		source:    listing.SourceGoogle,
		url:       googleJobsURL(keyword),
		container: googleContainer,
		extract:   extractGoogle,
	}, g.opts, logger)
}

// googleJobsURL builds the jobs vertical search for query. The ibp value is
// kept unescaped so the semicolon reaches Google as-is.
func googleJobsURL(query string) string {
	return googleSearchURL + "?q=" + url.QueryEscape(query) + "&ibp=htl;jobs"
}

func extractGoogle(html, base string) ([]listing.Listing, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return nil, err
	}
	var out []listing.Listing
	doc.Find(googleCard).Each(func(_ int, card *goquery.Selection) {
		l := listing.Listing{
			Source:      listing.SourceGoogle,
			Title:       textOf(card, googleTitle),
			Company:     textOf(card, googleCompany),
			Location:    textOf(card, googleLocation),
			Description: textOf(card, googleDescription),
		}
		if !l.Valid() {
			return
		}
		l.Link = googleCardLink(card, base)
		if l.Link == "" {
			l.Link = googleJobsURL(strings.TrimSpace(l.Title + " " + l.Company))
		}
		if l.Description == "" {
			l.Description = listing.PlaceholderDescription
		}
		out = append(out, l)
	})
	return out, nil
}

// googleCardLink prefers an anchor wrapping the card, then one inside it.
func googleCardLink(card *goquery.Selection, base string) string {
	for _, a := range []*goquery.Selection{card.Closest("a[href]"), card.Find("a[href]").First()} {
		if href, ok := a.Attr("href"); ok {
			if link := resolveLink(base, href); link != "" {
				return link
			}
		}
	}
	return ""
}
