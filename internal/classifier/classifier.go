// Package classifier decides which sourced domains are relevant companies
// and records them.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/amishk599/oppradar/internal/fetch"
	"github.com/amishk599/oppradar/internal/filter"
	"github.com/amishk599/oppradar/internal/metrics"
	"github.com/amishk599/oppradar/internal/model"
	"github.com/amishk599/oppradar/internal/store"
)

// Defaults for Config fields left at zero.
const (
	DefaultConcurrency  = 8
	DefaultFetchTimeout = 30 * time.Second
	DefaultBatchTimeout = 5 * time.Minute
)

const pool = "classify"

// Store is the persistence the classifier needs.
type Store interface {
	CompanyByDomain(ctx context.Context, domain string) (model.Company, error)
	InsertCompany(ctx context.Context, c *model.Company) error
}

// Indexer records a vector for an accepted company.
type Indexer interface {
	Index(ctx context.Context, company model.Company, text string) error
}

// Config bounds one Classify call.
type Config struct {
	Concurrency  int
	FetchTimeout time.Duration
	BatchTimeout time.Duration
	SummaryLen   int
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = DefaultBatchTimeout
	}
	if c.SummaryLen <= 0 {
		c.SummaryLen = fetch.DefaultSummaryLength
	}
	return c
}

// Classifier fetches each candidate's homepage, keeps the relevant ones and
// stores them as companies.
type Classifier struct {
	store   Store
	fetcher fetch.Fetcher
	matcher *filter.KeywordMatcher
	indexer Indexer
	cfg     Config
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New creates a classifier. indexer and m may be nil.
func New(
	st Store,
	fetcher fetch.Fetcher,
	matcher *filter.KeywordMatcher,
	indexer Indexer,
	cfg Config,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Classifier {
	return &Classifier{
		store:   st,
		fetcher: fetcher,
		matcher: matcher,
		indexer: indexer,
		cfg:     cfg.withDefaults(),
		metrics: m,
		logger:  logger,
	}
}

// Classify returns the relevant candidates as stored companies, in
// completion order. Candidates that fail to fetch, are irrelevant, or are
// still running at the batch deadline are dropped; companies already accepted
// are kept.
func (c *Classifier) Classify(ctx context.Context, candidates []model.Candidate) []model.ClassifiedCompany {
	candidates = dedupe(candidates)
	if len(candidates) == 0 {
		return nil
	}
	c.logger.Info("classifying candidates", zap.Int("count", len(candidates)))

	ctx, cancel := context.WithTimeout(ctx, c.cfg.BatchTimeout)
	defer cancel()

	sem := semaphore.NewWeighted(int64(c.cfg.Concurrency))
	var (
		g   errgroup.Group
		mu  sync.Mutex
		out []model.ClassifiedCompany
	)

	for i, cand := range candidates {
		err := ctx.Err()
		if err == nil {
			err = sem.Acquire(ctx, 1)
		}
		if err != nil {
			c.logger.Warn("classify deadline reached, dropping remaining candidates",
				zap.Int("dropped", len(candidates)-i),
				zap.Error(err),
			)
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			cc, ok, err := c.classifyOne(ctx, cand)
			if err != nil {
				c.metrics.TaskFailed(pool)
				c.logger.Error("classify task failed", zap.String("domain", cand.Domain), zap.Error(err))
				return nil
			}
			if ok {
				mu.Lock()
				out = append(out, cc)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	c.logger.Info("classification complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("accepted", len(out)),
	)
	return out
}

func (c *Classifier) classifyOne(ctx context.Context, cand model.Candidate) (cc model.ClassifiedCompany, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic classifying %s: %v", cand.Domain, r)
		}
	}()
	defer c.metrics.TaskStarted(pool)()

	domain := cand.Domain

	existing, err := c.store.CompanyByDomain(ctx, domain)
	switch {
	case err == nil:
		c.logger.Debug("company already known", zap.String("domain", domain))
		return model.ClassifiedCompany{CompanyID: existing.ID, Domain: domain}, true, nil
	case !errors.Is(err, store.ErrNotFound):
		return cc, false, fmt.Errorf("looking up %s: %w", domain, err)
	}

	home, err := c.homepageText(ctx, domain)
	if err != nil {
		c.metrics.CandidateRejected("fetch")
		c.logger.Warn("homepage fetch failed", zap.String("domain", domain), zap.Error(err))
		return cc, false, nil
	}

	text := cand.Snippet + "  " + home
	if !c.matcher.Match(text) {
		c.metrics.CandidateRejected("irrelevant")
		c.logger.Info("rejected candidate", zap.String("domain", domain))
		return cc, false, nil
	}

	company := model.Company{
		Name:        CompanyName(domain),
		Domain:      domain,
		Description: home,
	}
	err = c.store.InsertCompany(ctx, &company)
	if errors.Is(err, store.ErrConflict) {
		company, err = c.store.CompanyByDomain(ctx, domain)
	}
	if err != nil {
		return cc, false, fmt.Errorf("storing %s: %w", domain, err)
	}

	if c.indexer != nil {
		if err := c.indexer.Index(ctx, company, text); err != nil {
			c.logger.Warn("indexing company failed", zap.String("domain", domain), zap.Error(err))
		}
	}

	c.metrics.CompanyAccepted()
	c.logger.Info("kept company", zap.String("domain", domain), zap.String("id", company.ID))
	return model.ClassifiedCompany{CompanyID: company.ID, Domain: domain}, true, nil
}

func (c *Classifier) homepageText(ctx context.Context, domain string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	page, err := c.fetcher.Fetch(ctx, "https://"+domain)
	if err != nil {
		return "", err
	}
	doc, err := page.Doc()
	if err != nil {
		return "", fmt.Errorf("parsing homepage: %w", err)
	}
	return fetch.TextSummary(doc, c.cfg.SummaryLen), nil
}

// CompanyName derives a display name from the first domain label, with the
// first letter of each word upper-cased: "acme-ai.com" becomes "Acme-Ai".
func CompanyName(domain string) string {
	label, _, _ := strings.Cut(domain, ".")
	var b strings.Builder
	prevLetter := false
	for _, r := range label {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

func dedupe(candidates []model.Candidate) []model.Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]model.Candidate, 0, len(candidates))
	for _, cand := range candidates {
		cand.Domain = strings.TrimSpace(strings.ToLower(cand.Domain))
		if cand.Domain == "" {
			continue
		}
		if _, ok := seen[cand.Domain]; ok {
			continue
		}
		seen[cand.Domain] = struct{}{}
		out = append(out, cand)
	}
	return out
}
