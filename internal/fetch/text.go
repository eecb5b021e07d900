package fetch

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultSummaryLength caps homepage text kept for relevance checks.
const DefaultSummaryLength = 1024

// TextSummary returns the best short description of a page: the meta
// description, else the first paragraph, else the whole body text.
// Whitespace is collapsed and the result is cut to max runes.
func TextSummary(doc *goquery.Document, max int) string {
	if max <= 0 {
		max = DefaultSummaryLength
	}
	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		if text := collapse(desc); text != "" {
			return truncate(text, max)
		}
	}
	if text := collapse(doc.Find("p").First().Text()); text != "" {
		return truncate(text, max)
	}
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript").Remove()
	return truncate(collapse(body.Text()), max)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
