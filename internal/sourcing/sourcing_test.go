package sourcing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amishk599/oppradar/internal/model"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// cannedSearcher returns fixed results per query.
type cannedSearcher map[string][]Result

func (c cannedSearcher) Search(_ context.Context, q string) ([]Result, error) {
	if q == "broken" {
		return nil, errors.New("quota exhausted")
	}
	return c[q], nil
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		link string
		want string
		ok   bool
	}{
		{"https://www.Acme-AI.com/about", "acme-ai.com", true},
		{"http://buildsmart.io", "buildsmart.io", true},
		{"https://sub.example.org/path?q=1", "sub.example.org", true},
		{"ftp://example.com", "", false},
		{"example.com", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ExtractDomain(tt.link)
		assert.Equal(t, tt.ok, ok, tt.link)
		assert.Equal(t, tt.want, got, tt.link)
	}
}

func TestReadColumn(t *testing.T) {
	dir := t.TempDir()

	withHeader := writeFile(t, dir, "seeds.csv", "domain\nacme-ai.com\n\nbuildsmart.io,extra\n")
	got, err := ReadColumn(withHeader, "domain")
	require.NoError(t, err)
	assert.Equal(t, []string{"acme-ai.com", "buildsmart.io"}, got)

	plain := writeFile(t, dir, "plain.csv", "acme-ai.com\nbimbot.com\n")
	got, err = ReadColumn(plain, "domain")
	require.NoError(t, err)
	assert.Equal(t, []string{"acme-ai.com", "bimbot.com"}, got)

	got, err = ReadColumn(filepath.Join(dir, "missing.csv"), "domain")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = ReadColumn("", "domain")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadLines_KeepsQuotesAndCommas(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "keywords.csv",
		"query\nconstruction AI, startup jobs\n\n  \"computer vision\" jobsite safety  \r\nBIM \"machine learning\n")

	got, err := ReadLines(path, "query")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"construction AI, startup jobs",
		`"computer vision" jobsite safety`,
		`BIM "machine learning`,
	}, got)

	got, err = ReadLines(filepath.Join(dir, "missing.csv"), "query")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSource_QueriesWithSearchSyntax(t *testing.T) {
	dir := t.TempDir()
	keywords := writeFile(t, dir, "keywords.csv", "construction AI, startup jobs\n\"computer vision\" jobsite safety\n")

	searcher := cannedSearcher{
		"construction AI, startup jobs":    {{Link: "https://acme-ai.com", Snippet: "a"}},
		`"computer vision" jobsite safety`: {{Link: "https://sitevision.ai", Snippet: "b"}},
	}

	got, err := New(filepath.Join(dir, "none.csv"), keywords, searcher, zap.NewNop()).Source(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "construction AI, startup jobs", got[0].SourceQuery)
	assert.Equal(t, `"computer vision" jobsite safety`, got[1].SourceQuery)
}

func TestSource_SeedsFirstThenSearchDeduped(t *testing.T) {
	dir := t.TempDir()
	seeds := writeFile(t, dir, "seeds.csv", "domain\nacme-ai.com\nwww.BuildSmart.io\n")
	keywords := writeFile(t, dir, "keywords.csv", "query\nai construction\nbroken\nbim ml\n")

	searcher := cannedSearcher{
		"ai construction": {
			{Link: "https://www.acme-ai.com/", Snippet: "dup of a seed"},
			{Link: "https://sitevision.ai/product", Snippet: "computer vision for sites"},
			{Link: "not a url", Snippet: "skipped"},
		},
		"bim ml": {
			{Link: "https://sitevision.ai", Snippet: "second hit"},
			{Link: "https://bimbot.com", Snippet: "bim assistant"},
		},
	}

	got, err := New(seeds, keywords, searcher, zap.NewNop()).Source(context.Background())
	require.NoError(t, err)

	want := []model.Candidate{
		{Domain: "acme-ai.com", Link: "https://acme-ai.com", SourceQuery: SeedQuery},
		{Domain: "buildsmart.io", Link: "https://buildsmart.io", SourceQuery: SeedQuery},
		{Domain: "sitevision.ai", Snippet: "computer vision for sites", Link: "https://sitevision.ai/product", SourceQuery: "ai construction"},
		{Domain: "bimbot.com", Snippet: "bim assistant", Link: "https://bimbot.com", SourceQuery: "bim ml"},
	}
	assert.Equal(t, want, got)
}

func TestSource_NoSearcherUsesSeedsOnly(t *testing.T) {
	dir := t.TempDir()
	seeds := writeFile(t, dir, "seeds.csv", "acme-ai.com\n")

	got, err := New(seeds, filepath.Join(dir, "none.csv"), nil, zap.NewNop()).Source(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "acme-ai.com", got[0].Domain)
}

func TestSource_MissingFilesAreEmpty(t *testing.T) {
	dir := t.TempDir()
	got, err := New(filepath.Join(dir, "a.csv"), filepath.Join(dir, "b.csv"), cannedSearcher{}, zap.NewNop()).Source(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSerpAPISearcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.json", r.URL.Path)
		assert.Equal(t, "ai construction", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("num"))
		assert.Equal(t, "k", r.URL.Query().Get("api_key"))
		json.NewEncoder(w).Encode(map[string]any{
			"organic_results": []map[string]string{
				{"link": "https://acme-ai.com", "snippet": "AI for builders"},
			},
		})
	}))
	defer srv.Close()

	got, err := NewSerpAPISearcher(srv.URL, "k", 5, srv.Client()).Search(context.Background(), "ai construction")
	require.NoError(t, err)
	assert.Equal(t, []Result{{Link: "https://acme-ai.com", Snippet: "AI for builders"}}, got)
}

func TestSerpAPISearcher_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "limited" {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"error": "Invalid API key."})
	}))
	defer srv.Close()

	s := NewSerpAPISearcher(srv.URL, "bad", 0, srv.Client())

	_, err := s.Search(context.Background(), "limited")
	var httpErr *model.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
	assert.NotContains(t, httpErr.Error(), "bad", "api key must not leak into errors")

	_, err = s.Search(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API key")
}
