// Package fetch retrieves homepages and careers pages for classification and
// board detection.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/amishk599/oppradar/internal/model"
)

// DefaultUserAgent is sent with every page request unless overridden.
const DefaultUserAgent = "Mozilla/5.0 Chrome/124"

// Fetcher retrieves a single page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

// Page is a fetched document. URL is the final URL after redirects.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
}

// Doc parses the page body as HTML.
func (p *Page) Doc() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
}

// Config controls the colly collector behind CollyFetcher.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// CollyFetcher fetches pages with a colly collector cloned per request.
type CollyFetcher struct {
	base *colly.Collector
}

var _ Fetcher = (*CollyFetcher)(nil)

// NewCollyFetcher builds a fetcher. Redirects are followed and the same URL
// may be fetched repeatedly.
func NewCollyFetcher(cfg Config) *CollyFetcher {
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := colly.NewCollector(colly.UserAgent(ua), colly.Async(false))
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	c.SetRequestTimeout(timeout)
	return &CollyFetcher{base: c}
}

// Fetch GETs rawURL. Non-2xx statuses come back as *model.HTTPError.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	collector := f.base.Clone()
	collector.Context = ctx

	var (
		page     *Page
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		page = &Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r == nil || r.StatusCode == 0 {
			fetchErr = err
			return
		}
		httpErr := &model.HTTPError{URL: rawURL, StatusCode: r.StatusCode, Err: err}
		if r.Headers != nil {
			httpErr.RetryAfter = ParseRetryAfter(r.Headers.Get("Retry-After"))
		}
		fetchErr = httpErr
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch %s: %w", rawURL, ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			var httpErr *model.HTTPError
			if errors.As(fetchErr, &httpErr) {
				return nil, httpErr
			}
			return nil, fmt.Errorf("fetch %s: %w", rawURL, fetchErr)
		}
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
		}
		if page == nil {
			return nil, fmt.Errorf("fetch %s: no response", rawURL)
		}
		return page, nil
	}
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an HTTP
// date. Zero means absent or unparseable.
func ParseRetryAfter(val string) time.Duration {
	if val == "" {
		return 0
	}
	if secs, err := strconv.Atoi(val); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(val); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
