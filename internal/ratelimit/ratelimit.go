package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/time/rate"

	"github.com/amishk599/oppradar/internal/fetch"
)

// HostLimiter enforces a token-bucket rate per hostname, so that fan-out
// across companies never floods a shared board host such as
// boards-api.greenhouse.io. Build one per pipeline run.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewHostLimiter allows perSecond requests per host with the given burst.
// A non-positive perSecond disables limiting.
func NewHostLimiter(perSecond float64, burst int) *HostLimiter {
	lim := rate.Limit(perSecond)
	if perSecond <= 0 {
		lim = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    lim,
		burst:    burst,
	}
}

func (h *HostLimiter) limiterFor(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	if l, ok := h.limiters[host]; ok {
		return l
	}
	l := rate.NewLimiter(h.limit, h.burst)
	h.limiters[host] = l
	return l
}

// Wait blocks until a request to host is allowed or ctx is done.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	if err := h.limiterFor(host).Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait for %s: %w", host, err)
	}
	return nil
}

// WaitURL is Wait keyed by the host of raw.
func (h *HostLimiter) WaitURL(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return h.Wait(ctx, "_")
	}
	return h.Wait(ctx, u.Host)
}

// RateLimitedFetcher waits on the host limiter before delegating to the
// wrapped page fetcher.
type RateLimitedFetcher struct {
	inner   fetch.Fetcher
	limiter *HostLimiter
}

var _ fetch.Fetcher = (*RateLimitedFetcher)(nil)

// NewRateLimitedFetcher wraps a page fetcher with per-host limiting.
func NewRateLimitedFetcher(inner fetch.Fetcher, limiter *HostLimiter) *RateLimitedFetcher {
	return &RateLimitedFetcher{inner: inner, limiter: limiter}
}

// Fetch implements fetch.Fetcher.
func (f *RateLimitedFetcher) Fetch(ctx context.Context, rawURL string) (*fetch.Page, error) {
	if err := f.limiter.WaitURL(ctx, rawURL); err != nil {
		return nil, err
	}
	return f.inner.Fetch(ctx, rawURL)
}

// Transport applies the host limiter to every request of an http.Client,
// which is how the JSON board APIs are throttled.
type Transport struct {
	Base    http.RoundTripper
	Limiter *HostLimiter
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.Limiter.Wait(req.Context(), req.URL.Host); err != nil {
		return nil, err
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
