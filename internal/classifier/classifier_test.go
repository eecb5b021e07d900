package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amishk599/oppradar/internal/embedding"
	"github.com/amishk599/oppradar/internal/fetch"
	"github.com/amishk599/oppradar/internal/filter"
	"github.com/amishk599/oppradar/internal/model"
	"github.com/amishk599/oppradar/internal/store"
)

// homepageFetcher serves canned homepages keyed by URL. Domains starting with
// "slow" block until the context ends.
type homepageFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls map[string]int
}

func newHomepageFetcher(pages map[string]string) *homepageFetcher {
	return &homepageFetcher{pages: pages, calls: make(map[string]int)}
}

func (f *homepageFetcher) Fetch(ctx context.Context, rawURL string) (*fetch.Page, error) {
	f.mu.Lock()
	f.calls[rawURL]++
	body, ok := f.pages[rawURL]
	f.mu.Unlock()

	if strings.HasPrefix(rawURL, "https://slow") {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if !ok {
		return nil, &model.HTTPError{URL: rawURL, StatusCode: 404}
	}
	return &fetch.Page{URL: rawURL, StatusCode: 200, Body: []byte(body)}, nil
}

func (f *homepageFetcher) count(rawURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[rawURL]
}

func metaPage(desc string) string {
	return `<html><head><meta name="description" content="` + desc + `"></head><body><p>ignored</p></body></html>`
}

func anyMatcher() *filter.KeywordMatcher {
	return filter.NewKeywordMatcher(filter.MatchAny, filter.DefaultDomainKeywords, filter.DefaultAIKeywords)
}

func newTestClassifier(st Store, f fetch.Fetcher, ix Indexer, cfg Config) *Classifier {
	return New(st, f, anyMatcher(), ix, cfg, nil, zap.NewNop())
}

func TestClassify_AcceptsRelevantCompany(t *testing.T) {
	s := store.NewMemoryStore()
	f := newHomepageFetcher(map[string]string{
		"https://acme-ai.com": metaPage("Computer vision for jobsite safety"),
	})
	ix := embedding.NewIndexer(embedding.NewHashingEmbedder(16), s)

	out := newTestClassifier(s, f, ix, Config{}).Classify(context.Background(), []model.Candidate{
		{Domain: "acme-ai.com", Snippet: "Acme builds AI", SourceQuery: "seed"},
	})

	require.Len(t, out, 1)
	assert.Equal(t, "acme-ai.com", out[0].Domain)

	company, err := s.CompanyByDomain(context.Background(), "acme-ai.com")
	require.NoError(t, err)
	assert.Equal(t, out[0].CompanyID, company.ID)
	assert.Equal(t, "Acme-Ai", company.Name)
	assert.Equal(t, "Computer vision for jobsite safety", company.Description)

	vec, err := s.CompanyEmbedding(context.Background(), company.ID)
	require.NoError(t, err)
	assert.Len(t, vec, 16)
}

func TestClassify_SecondCallReturnsSameID(t *testing.T) {
	s := store.NewMemoryStore()
	f := newHomepageFetcher(map[string]string{
		"https://acme-ai.com": metaPage("machine learning for contractors"),
	})
	c := newTestClassifier(s, f, nil, Config{})
	cands := []model.Candidate{{Domain: "acme-ai.com"}}

	first := c.Classify(context.Background(), cands)
	second := c.Classify(context.Background(), cands)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].CompanyID, second[0].CompanyID)
	assert.Equal(t, 1, f.count("https://acme-ai.com"), "known domain must not be refetched")

	all, err := s.Companies(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestClassify_RejectsIrrelevantAndUnreachable(t *testing.T) {
	s := store.NewMemoryStore()
	f := newHomepageFetcher(map[string]string{
		"https://bakery.com": metaPage("Fresh bread every morning"),
	})

	out := newTestClassifier(s, f, nil, Config{}).Classify(context.Background(), []model.Candidate{
		{Domain: "bakery.com", Snippet: "croissants"},
		{Domain: "gone.com", Snippet: "ai construction"},
	})

	assert.Empty(t, out)
	all, _ := s.Companies(context.Background())
	assert.Empty(t, all)
}

func TestClassify_SnippetCountsTowardRelevance(t *testing.T) {
	s := store.NewMemoryStore()
	f := newHomepageFetcher(map[string]string{
		"https://plain.com": metaPage("Welcome to our website"),
	})

	out := newTestClassifier(s, f, nil, Config{}).Classify(context.Background(), []model.Candidate{
		{Domain: "plain.com", Snippet: "predictive scheduling for builders"},
	})
	assert.Len(t, out, 1)
}

func TestClassify_TimeoutsDropOnlySlowCandidates(t *testing.T) {
	s := store.NewMemoryStore()
	pages := map[string]string{}
	var cands []model.Candidate
	for i := 0; i < 7; i++ {
		d := fmt.Sprintf("fast%d.com", i)
		pages["https://"+d] = metaPage("construction ai platform")
		cands = append(cands, model.Candidate{Domain: d})
	}
	for i := 0; i < 3; i++ {
		cands = append(cands, model.Candidate{Domain: fmt.Sprintf("slow%d.com", i)})
	}
	f := newHomepageFetcher(pages)

	c := newTestClassifier(s, f, nil, Config{FetchTimeout: 50 * time.Millisecond})
	start := time.Now()
	out := c.Classify(context.Background(), cands)

	assert.Len(t, out, 7)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClassify_BatchDeadlineKeepsAccepted(t *testing.T) {
	s := store.NewMemoryStore()
	pages := map[string]string{}
	var cands []model.Candidate
	for i := 0; i < 3; i++ {
		d := fmt.Sprintf("fast%d.com", i)
		pages["https://"+d] = metaPage("construction ai platform")
		cands = append(cands, model.Candidate{Domain: d})
	}
	for i := 0; i < 5; i++ {
		cands = append(cands, model.Candidate{Domain: fmt.Sprintf("slow%d.com", i)})
	}
	f := newHomepageFetcher(pages)

	c := newTestClassifier(s, f, nil, Config{
		Concurrency:  4,
		FetchTimeout: time.Minute,
		BatchTimeout: 100 * time.Millisecond,
	})
	start := time.Now()
	out := c.Classify(context.Background(), cands)
	elapsed := time.Since(start)

	require.Len(t, out, 3)
	for _, cc := range out {
		assert.True(t, strings.HasPrefix(cc.Domain, "fast"), cc.Domain)
	}
	assert.Less(t, elapsed, 2*time.Second)

	slowFetches := 0
	for i := 0; i < 5; i++ {
		slowFetches += f.count(fmt.Sprintf("https://slow%d.com", i))
	}
	assert.LessOrEqual(t, slowFetches, 4, "queued candidates must not start after the deadline")

	all, err := s.Companies(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestClassify_DedupesByDomain(t *testing.T) {
	s := store.NewMemoryStore()
	f := newHomepageFetcher(map[string]string{
		"https://acme-ai.com": metaPage("ai for construction"),
	})

	out := newTestClassifier(s, f, nil, Config{}).Classify(context.Background(), []model.Candidate{
		{Domain: "acme-ai.com"},
		{Domain: " ACME-AI.com "},
		{Domain: ""},
	})
	assert.Len(t, out, 1)
	assert.Equal(t, 1, f.count("https://acme-ai.com"))
}

func TestClassify_AllModeNeedsEverySet(t *testing.T) {
	s := store.NewMemoryStore()
	f := newHomepageFetcher(map[string]string{
		"https://ai-only.com": metaPage("machine learning platform"),
		"https://both.com":    metaPage("machine learning for construction"),
	})
	matcher := filter.NewKeywordMatcher(filter.MatchAll,
		[]string{"construction", "jobsite"},
		[]string{"machine learning"},
	)

	c := New(s, f, matcher, nil, Config{}, nil, zap.NewNop())
	out := c.Classify(context.Background(), []model.Candidate{{Domain: "ai-only.com"}, {Domain: "both.com"}})

	require.Len(t, out, 1)
	assert.Equal(t, "both.com", out[0].Domain)
}

type failingIndexer struct{}

func (failingIndexer) Index(context.Context, model.Company, string) error {
	return errors.New("embedding service down")
}

func TestClassify_IndexFailureKeepsCompany(t *testing.T) {
	s := store.NewMemoryStore()
	f := newHomepageFetcher(map[string]string{
		"https://acme-ai.com": metaPage("ai construction"),
	})

	out := newTestClassifier(s, f, failingIndexer{}, Config{}).Classify(context.Background(), []model.Candidate{{Domain: "acme-ai.com"}})
	assert.Len(t, out, 1)
}

// racingStore reports not-found on the first lookup, then conflicts on
// insert, as if another run stored the domain in between.
type racingStore struct {
	*store.MemoryStore
	once sync.Once
}

func (r *racingStore) CompanyByDomain(ctx context.Context, domain string) (model.Company, error) {
	var miss bool
	r.once.Do(func() { miss = true })
	if miss {
		return model.Company{}, store.ErrNotFound
	}
	return r.MemoryStore.CompanyByDomain(ctx, domain)
}

func TestClassify_ConflictRereadsExisting(t *testing.T) {
	mem := store.NewMemoryStore()
	existing := model.Company{Name: "Acme", Domain: "acme-ai.com"}
	require.NoError(t, mem.InsertCompany(context.Background(), &existing))

	f := newHomepageFetcher(map[string]string{
		"https://acme-ai.com": metaPage("ai construction"),
	})
	out := newTestClassifier(&racingStore{MemoryStore: mem}, f, nil, Config{}).Classify(context.Background(), []model.Candidate{{Domain: "acme-ai.com"}})

	require.Len(t, out, 1)
	assert.Equal(t, existing.ID, out[0].CompanyID)
}

func TestClassify_Empty(t *testing.T) {
	c := newTestClassifier(store.NewMemoryStore(), newHomepageFetcher(nil), nil, Config{})
	assert.Empty(t, c.Classify(context.Background(), nil))
}

func TestCompanyName(t *testing.T) {
	tests := map[string]string{
		"acme-ai.com":      "Acme-Ai",
		"buildsmart.io":    "Buildsmart",
		"AI4construct.com": "Ai4Construct",
		"localhost":        "Localhost",
	}
	for in, want := range tests {
		assert.Equal(t, want, CompanyName(in), in)
	}
}
