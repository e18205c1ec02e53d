package source

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

// cleanText collapses runs of whitespace, including non-breaking spaces, and
// puts the text in Unicode NFC form.
func cleanText(s string) string {
	s = norm.NFC.String(strings.ReplaceAll(s, "\u00a0", " "))
	return strings.Join(strings.Fields(s), " ")
}

// textOf returns the normalized text of the first match of selector in sel.
func textOf(sel *goquery.Selection, selector string) string {
	return cleanText(sel.Find(selector).First().Text())
}

var trackingParams = map[string]struct{}{
	"trackingid": {},
	"refid":      {},
	"position":   {},
	"pagenum":    {},
	"gclid":      {},
	"fbclid":     {},
}

// resolveLink makes href absolute against base and drops tracking
// parameters. It returns "" for hrefs that cannot be parsed or that do not
// point at an http(s) resource.
func resolveLink(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if b, err := url.Parse(base); err == nil {
		ref = b.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	ref.Fragment = ""
	ref.RawQuery = stripTracking(ref.RawQuery)
	return ref.String()
}

// stripTracking drops tracking pairs from a raw query and keeps every other
// pair byte for byte, in order.
func stripTracking(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "&")
	kept := parts[:0]
	for _, part := range parts {
		if part == "" {
			continue
		}
		key, _, _ := strings.Cut(part, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if isTrackingParam(key) {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, "&")
}

func isTrackingParam(key string) bool {
	key = strings.ToLower(key)
	if strings.HasPrefix(key, "utm_") {
		return true
	}
	_, ok := trackingParams[key]
	return ok
}

func parseDocument(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}
