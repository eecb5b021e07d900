package adapter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amishk599/oppradar/internal/model"
)

func TestParseGreenhouse(t *testing.T) {
	payload := `{
		"jobs": [
			{
				"id": 12345,
				"title": "Machine Learning Engineer",
				"location": {"name": "Remote"},
				"absolute_url": "https://boards.greenhouse.io/acme/jobs/1",
				"updated_at": "2026-02-13T10:00:00Z"
			},
			{
				"id": 67890,
				"title": "  Backend   Engineer ",
				"location": {"name": "Austin, TX"},
				"absolute_url": "https://boards.greenhouse.io/acme/jobs/2"
			}
		]
	}`

	postings := ParseGreenhouse([]byte(payload))
	if len(postings) != 2 {
		t.Fatalf("expected 2 postings, got %d", len(postings))
	}

	p := postings[0]
	if p.Title != "Machine Learning Engineer" {
		t.Errorf("expected title Machine Learning Engineer, got %q", p.Title)
	}
	if p.Location != "Remote" {
		t.Errorf("expected location Remote, got %q", p.Location)
	}
	if p.URL != "https://boards.greenhouse.io/acme/jobs/1" {
		t.Errorf("expected absolute_url, got %q", p.URL)
	}
	if postings[1].Title != "Backend Engineer" {
		t.Errorf("expected collapsed title, got %q", postings[1].Title)
	}
}

func TestParseGreenhouse_Degrades(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
	}{
		{"empty board", `{"jobs": []}`, 0},
		{"missing jobs key", `{"meta": {}}`, 0},
		{"malformed json", `{not json`, 0},
		{"wrong shape", `[1, 2, 3]`, 0},
		{"entry without url", `{"jobs":[{"title":"Engineer","location":{"name":"NYC"}}]}`, 0},
		{"duplicate urls", `{"jobs":[
			{"title":"Engineer","absolute_url":"https://x/1"},
			{"title":"Engineer","absolute_url":"https://x/1"}]}`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseGreenhouse([]byte(tt.payload))
			if len(got) != tt.want {
				t.Fatalf("expected %d postings, got %d", tt.want, len(got))
			}
		})
	}
}

func TestParseGreenhouse_MissingLocation(t *testing.T) {
	got := ParseGreenhouse([]byte(`{"jobs":[{"title":"Data Engineer","absolute_url":"https://x/9"}]}`))
	if len(got) != 1 || got[0].Location != "Unknown" {
		t.Fatalf("expected Unknown location, got %+v", got)
	}
}

func TestGreenhouseAdapter_ListPostings(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jobs":[{"title":"Data Scientist","location":{"name":"Remote"},"absolute_url":"https://boards.greenhouse.io/acme/jobs/3"}]}`))
	}))
	defer srv.Close()

	a := NewGreenhouseAdapter("", rewriteClient(srv))
	postings, err := a.ListPostings(context.Background(), "acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/v1/boards/acme/jobs" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if len(postings) != 1 || postings[0].Title != "Data Scientist" {
		t.Fatalf("unexpected postings: %+v", postings)
	}
}

func TestGreenhouseAdapter_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := NewGreenhouseAdapter(srv.URL, srv.Client())
	_, err := a.ListPostings(context.Background(), "acme")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %T", err)
	}
	if httpErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", httpErr.StatusCode)
	}
	if httpErr.RetryAfter.Seconds() != 30 {
		t.Errorf("expected 30s retry-after, got %v", httpErr.RetryAfter)
	}
	if !strings.Contains(err.Error(), "greenhouse fetch for acme") {
		t.Errorf("error should name the board: %v", err)
	}
}

// --- helpers ---

// roundTripFunc adapts a function into an http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// rewriteClient sends every request to srv regardless of the original host.
func rewriteClient(srv *httptest.Server) *http.Client {
	return &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			req.URL.Scheme = "http"
			req.URL.Host = srv.Listener.Addr().String()
			return http.DefaultTransport.RoundTrip(req)
		}),
	}
}
