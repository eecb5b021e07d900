package sourcing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/amishk599/oppradar/internal/fetch"
	"github.com/amishk599/oppradar/internal/model"
)

// DefaultSerpAPIBaseURL is the SerpAPI search endpoint host.
const DefaultSerpAPIBaseURL = "https://serpapi.com"

// DefaultResultsPerQuery is the num parameter sent with each query.
const DefaultResultsPerQuery = 10

// SerpAPISearcher queries Google through SerpAPI.
type SerpAPISearcher struct {
	baseURL string
	apiKey  string
	num     int
	client  *http.Client
}

// NewSerpAPISearcher returns a searcher. An empty baseURL uses the public
// endpoint; num <= 0 uses DefaultResultsPerQuery.
func NewSerpAPISearcher(baseURL, apiKey string, num int, client *http.Client) *SerpAPISearcher {
	if baseURL == "" {
		baseURL = DefaultSerpAPIBaseURL
	}
	if num <= 0 {
		num = DefaultResultsPerQuery
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &SerpAPISearcher{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, num: num, client: client}
}

type serpResponse struct {
	OrganicResults []struct {
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
	Error string `json:"error"`
}

// Search implements Searcher.
func (s *SerpAPISearcher) Search(ctx context.Context, query string) ([]Result, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("num", strconv.Itoa(s.num))
	params.Set("api_key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search.json?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("User-Agent", fetch.DefaultUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			URL:        s.baseURL + "/search.json",
			StatusCode: resp.StatusCode,
			RetryAfter: fetch.ParseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("search returned HTTP %d", resp.StatusCode),
		}
	}

	var parsed serpResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("search error: %s", parsed.Error)
	}

	out := make([]Result, 0, len(parsed.OrganicResults))
	for _, r := range parsed.OrganicResults {
		out = append(out, Result{Link: r.Link, Snippet: r.Snippet})
	}
	return out, nil
}
