package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/amishk599/oppradar/internal/model"
)

// DefaultLeverBaseURL is the public postings API host.
const DefaultLeverBaseURL = "https://api.lever.co"

type leverPosting struct {
	Text       string          `json:"text"`
	HostedURL  string          `json:"hostedUrl"`
	Categories leverCategories `json:"categories"`
}

type leverCategories struct {
	Location string `json:"location"`
}

// ParseLever maps a postings API array to postings. A missing location
// becomes "Unknown"; malformed payloads yield nothing.
func ParseLever(data []byte) []model.Posting {
	var postings []leverPosting
	if err := json.Unmarshal(data, &postings); err != nil {
		return nil
	}

	out := make([]model.Posting, 0, len(postings))
	seen := make(map[string]struct{}, len(postings))
	for _, p := range postings {
		loc := cleanText(p.Categories.Location)
		if loc == "" {
			loc = unknownLocation
		}
		out = appendUnique(out, seen, model.Posting{
			Title:    cleanText(p.Text),
			Location: loc,
			URL:      strings.TrimSpace(p.HostedURL),
		})
	}
	return out
}

// LeverAdapter lists postings from the Lever postings API.
type LeverAdapter struct {
	baseURL string
	client  *http.Client
}

// NewLeverAdapter returns an adapter. An empty baseURL uses the public API.
func NewLeverAdapter(baseURL string, client *http.Client) *LeverAdapter {
	if baseURL == "" {
		baseURL = DefaultLeverBaseURL
	}
	return &LeverAdapter{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// ListPostings fetches GET /v1/postings/{slug}?mode=json.
func (a *LeverAdapter) ListPostings(ctx context.Context, slug string) ([]model.Posting, error) {
	endpoint := fmt.Sprintf("%s/v1/postings/%s?mode=json", a.baseURL, url.PathEscape(slug))
	body, err := getBody(ctx, a.client, endpoint)
	if err != nil {
		return nil, fmt.Errorf("lever fetch for %s: %w", slug, err)
	}
	return ParseLever(body), nil
}
