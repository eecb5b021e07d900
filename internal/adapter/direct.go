package adapter

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/amishk599/oppradar/internal/fetch"
	"github.com/amishk599/oppradar/internal/model"
)

var directLinkWords = []string{"job", "career", "position", "opening"}

// ParseDirect collects anchors whose text mentions a job, career, position
// or opening. Relative hrefs resolve against base.
func ParseDirect(base string, page []byte) []model.Posting {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil
	}

	var out []model.Posting
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		text := cleanText(s.Text())
		if !mentionsJob(text) {
			return
		}
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := baseURL.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		out = appendUnique(out, seen, model.Posting{
			Title:    text,
			Location: unknownLocation,
			URL:      abs.String(),
		})
	})
	return out
}

func mentionsJob(text string) bool {
	lower := strings.ToLower(text)
	for _, w := range directLinkWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// DirectAdapter scrapes job-looking links from a company's own page.
type DirectAdapter struct {
	pages fetch.Fetcher
}

// NewDirectAdapter returns an adapter that fetches through pages.
func NewDirectAdapter(pages fetch.Fetcher) *DirectAdapter {
	return &DirectAdapter{pages: pages}
}

// ListPostings fetches rawURL and parses job links out of it.
func (a *DirectAdapter) ListPostings(ctx context.Context, rawURL string) ([]model.Posting, error) {
	page, err := a.pages.Fetch(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("direct fetch for %s: %w", rawURL, err)
	}
	base := page.URL
	if base == "" {
		base = rawURL
	}
	return ParseDirect(base, page.Body), nil
}
