package adapter

import (
	"html"
	"strings"

	"github.com/amishk599/oppradar/internal/model"
)

const unknownLocation = "Unknown"

// cleanText unescapes entities and collapses whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}

// appendUnique adds p unless its URL has been seen or it lacks a title or URL.
func appendUnique(out []model.Posting, seen map[string]struct{}, p model.Posting) []model.Posting {
	if p.Title == "" || p.URL == "" {
		return out
	}
	if _, ok := seen[p.URL]; ok {
		return out
	}
	seen[p.URL] = struct{}{}
	return append(out, p)
}
