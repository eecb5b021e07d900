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

// DefaultGreenhouseBaseURL is the public boards API host.
const DefaultGreenhouseBaseURL = "https://boards-api.greenhouse.io"

type greenhouseJob struct {
	Title       string             `json:"title"`
	Location    greenhouseLocation `json:"location"`
	AbsoluteURL string             `json:"absolute_url"`
}

type greenhouseLocation struct {
	Name string `json:"name"`
}

type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
}

// ParseGreenhouse maps a boards API payload to postings. Malformed payloads
// and entries without a title or URL are dropped, never an error.
func ParseGreenhouse(data []byte) []model.Posting {
	var resp greenhouseResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil
	}

	out := make([]model.Posting, 0, len(resp.Jobs))
	seen := make(map[string]struct{}, len(resp.Jobs))
	for _, j := range resp.Jobs {
		loc := cleanText(j.Location.Name)
		if loc == "" {
			loc = unknownLocation
		}
		out = appendUnique(out, seen, model.Posting{
			Title:    cleanText(j.Title),
			Location: loc,
			URL:      strings.TrimSpace(j.AbsoluteURL),
		})
	}
	return out
}

// GreenhouseAdapter lists postings from the Greenhouse boards API.
type GreenhouseAdapter struct {
	baseURL string
	client  *http.Client
}

// NewGreenhouseAdapter returns an adapter. An empty baseURL uses the public API.
func NewGreenhouseAdapter(baseURL string, client *http.Client) *GreenhouseAdapter {
	if baseURL == "" {
		baseURL = DefaultGreenhouseBaseURL
	}
	return &GreenhouseAdapter{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// ListPostings fetches GET /v1/boards/{slug}/jobs.
func (a *GreenhouseAdapter) ListPostings(ctx context.Context, slug string) ([]model.Posting, error) {
	endpoint := fmt.Sprintf("%s/v1/boards/%s/jobs", a.baseURL, url.PathEscape(slug))
	body, err := getBody(ctx, a.client, endpoint)
	if err != nil {
		return nil, fmt.Errorf("greenhouse fetch for %s: %w", slug, err)
	}
	return ParseGreenhouse(body), nil
}
