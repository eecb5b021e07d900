package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/amishk599/oppradar/internal/fetch"
	"github.com/amishk599/oppradar/internal/model"
)

const (
	workdayLocation = "Workday"
	workdayPageSize = 20
	workdayMaxPages = 10
)

var localeSegment = regexp.MustCompile(`^[a-z]{2}-[A-Z]{2}$`)

// ParseWorkday extracts job links from a rendered Workday listing page.
// Titles come from the anchor text and URLs are https://{host}{href}.
func ParseWorkday(host string, page []byte) []model.Posting {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil
	}

	var out []model.Posting
	seen := make(map[string]struct{})
	doc.Find(`a[data-automation-id='jobPostingLink']`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		u := href
		if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
			u = "https://" + host + href
		}
		out = appendUnique(out, seen, model.Posting{
			Title:    cleanText(s.Text()),
			Location: workdayLocation,
			URL:      u,
		})
	})
	return out
}

type workdayListingRequest struct {
	AppliedFacets map[string]any `json:"appliedFacets"`
	Limit         int            `json:"limit"`
	Offset        int            `json:"offset"`
	SearchText    string         `json:"searchText"`
}

type workdayListingResponse struct {
	Total       int              `json:"total"`
	JobPostings []workdayListing `json:"jobPostings"`
}

type workdayListing struct {
	Title         string `json:"title"`
	ExternalPath  string `json:"externalPath"`
	LocationsText string `json:"locationsText"`
}

// parseWorkdayListings maps one page of the cxs listing API.
func parseWorkdayListings(host, site string, data []byte) ([]model.Posting, int) {
	var resp workdayListingResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, 0
	}
	var out []model.Posting
	seen := make(map[string]struct{}, len(resp.JobPostings))
	for _, l := range resp.JobPostings {
		if l.ExternalPath == "" {
			continue
		}
		loc := cleanText(l.LocationsText)
		if loc == "" {
			loc = workdayLocation
		}
		out = appendUnique(out, seen, model.Posting{
			Title:    cleanText(l.Title),
			Location: loc,
			URL:      "https://" + host + "/" + site + l.ExternalPath,
		})
	}
	return out, resp.Total
}

// WorkdayAdapter lists postings from a Workday tenant site. It reads the
// listing page first; most tenants render listings client-side, so an empty
// page falls back to the site's cxs listing API.
type WorkdayAdapter struct {
	pages  fetch.Fetcher
	client *http.Client
}

// NewWorkdayAdapter returns an adapter using pages for HTML and client for the API.
func NewWorkdayAdapter(pages fetch.Fetcher, client *http.Client) *WorkdayAdapter {
	return &WorkdayAdapter{pages: pages, client: client}
}

// ListPostings lists the site at path, e.g. acme.wd5.myworkdayjobs.com/External.
func (a *WorkdayAdapter) ListPostings(ctx context.Context, path string) ([]model.Posting, error) {
	host, site := splitWorkdayPath(path)
	if host == "" {
		return nil, nil
	}

	page, err := a.pages.Fetch(ctx, "https://"+strings.TrimRight(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("workday fetch for %s: %w", path, err)
	}
	if postings := ParseWorkday(host, page.Body); len(postings) > 0 || site == "" {
		return postings, nil
	}

	return a.listFromAPI(ctx, host, site)
}

func (a *WorkdayAdapter) listFromAPI(ctx context.Context, host, site string) ([]model.Posting, error) {
	tenant := strings.SplitN(host, ".", 2)[0]
	endpoint := fmt.Sprintf("https://%s/wday/cxs/%s/%s/jobs", host, tenant, site)

	var all []model.Posting
	for pageNum := 0; pageNum < workdayMaxPages; pageNum++ {
		offset := pageNum * workdayPageSize
		reqBody, err := json.Marshal(workdayListingRequest{
			AppliedFacets: map[string]any{},
			Limit:         workdayPageSize,
			Offset:        offset,
		})
		if err != nil {
			return nil, fmt.Errorf("workday listing marshal for %s: %w", host, err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
		if err != nil {
			return nil, fmt.Errorf("workday listing request for %s: %w", host, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		data, err := doRequest(a.client, req)
		if err != nil {
			return nil, fmt.Errorf("workday listing fetch for %s: %w", host, err)
		}
		postings, total := parseWorkdayListings(host, site, data)
		all = append(all, postings...)
		if len(postings) == 0 || offset+workdayPageSize >= total {
			break
		}
	}
	return all, nil
}

// splitWorkdayPath returns the host and the career site name, skipping a
// locale segment such as en-US.
func splitWorkdayPath(path string) (host, site string) {
	path = strings.TrimPrefix(strings.TrimPrefix(path, "https://"), "http://")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	host = parts[0]
	for _, seg := range parts[1:] {
		if seg != "" && !localeSegment.MatchString(seg) {
			site = seg
		}
	}
	return host, site
}
