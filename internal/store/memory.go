package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/amishk599/oppradar/internal/model"
)

// MemoryStore keeps everything in process memory. It backs --dry-run and
// tests; nothing survives the process.
type MemoryStore struct {
	mu         sync.Mutex
	companies  map[string]model.Company // by id
	byDomain   map[string]string        // domain -> id
	postings   map[string]model.JobPosting
	byURL      map[string]string // url -> id
	order      []string          // posting ids in insert order
	embeddings map[string][]float32
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		companies:  make(map[string]model.Company),
		byDomain:   make(map[string]string),
		postings:   make(map[string]model.JobPosting),
		byURL:      make(map[string]string),
		embeddings: make(map[string][]float32),
	}
}

func (m *MemoryStore) CompanyByDomain(_ context.Context, domain string) (model.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byDomain[domain]
	if !ok {
		return model.Company{}, fmt.Errorf("company by domain %s: %w", domain, ErrNotFound)
	}
	return m.companies[id], nil
}

func (m *MemoryStore) Company(_ context.Context, id string) (model.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.companies[id]
	if !ok {
		return model.Company{}, fmt.Errorf("company %s: %w", id, ErrNotFound)
	}
	return c, nil
}

func (m *MemoryStore) Companies(_ context.Context) ([]model.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Company, 0, len(m.companies))
	for _, c := range m.companies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out, nil
}

func (m *MemoryStore) InsertCompany(_ context.Context, c *model.Company) error {
	if err := prepareCompany(c); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byDomain[c.Domain]; ok {
		return fmt.Errorf("inserting company %s: %w", c.Domain, ErrConflict)
	}
	m.companies[c.ID] = *c
	m.byDomain[c.Domain] = c.ID
	return nil
}

func (m *MemoryStore) InsertPostingIfNew(_ context.Context, p *model.JobPosting) (bool, error) {
	if err := preparePosting(p); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.companies[p.CompanyID]; !ok {
		return false, fmt.Errorf("inserting posting %s: unknown company %s", p.URL, p.CompanyID)
	}
	if _, ok := m.byURL[p.URL]; ok {
		return false, nil
	}
	stored := *p
	stored.Score = nil
	m.postings[p.ID] = stored
	m.byURL[p.URL] = p.ID
	m.order = append(m.order, p.ID)
	return true, nil
}

func (m *MemoryStore) UnscoredPostings(_ context.Context) ([]model.ScoredPosting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ScoredPosting
	for _, id := range m.order {
		p := m.postings[id]
		if p.Score == nil {
			out = append(out, model.ScoredPosting{Posting: p, Company: m.companies[p.CompanyID]})
		}
	}
	return out, nil
}

func (m *MemoryStore) SetScores(_ context.Context, scores map[string]float64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	updated := 0
	for id, score := range scores {
		p, ok := m.postings[id]
		if !ok || p.Score != nil {
			continue
		}
		v := score
		p.Score = &v
		m.postings[id] = p
		updated++
	}
	return updated, nil
}

func (m *MemoryStore) AboveThreshold(_ context.Context, threshold float64) ([]model.ScoredPosting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ScoredPosting
	for _, id := range m.order {
		p := m.postings[id]
		if p.Score != nil && *p.Score >= threshold {
			out = append(out, model.ScoredPosting{Posting: p, Company: m.companies[p.CompanyID]})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := *out[i].Posting.Score, *out[j].Posting.Score
		if si != sj {
			return si > sj
		}
		return out[i].Posting.URL < out[j].Posting.URL
	})
	return out, nil
}

func (m *MemoryStore) UpsertCompanyEmbedding(_ context.Context, companyID string, vec []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeddings[companyID] = append([]float32(nil), vec...)
	return nil
}

// CompanyEmbedding returns the stored vector for a company.
func (m *MemoryStore) CompanyEmbedding(_ context.Context, companyID string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vec, ok := m.embeddings[companyID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]float32(nil), vec...), nil
}

func (m *MemoryStore) Close() error { return nil }
