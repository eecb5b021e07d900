// Package harvester pulls postings for classified companies from their job
// boards and stores the ones whose titles pass the filter.
package harvester

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/amishk599/oppradar/internal/adapter"
	"github.com/amishk599/oppradar/internal/board"
	"github.com/amishk599/oppradar/internal/filter"
	"github.com/amishk599/oppradar/internal/metrics"
	"github.com/amishk599/oppradar/internal/model"
)

// Defaults for Config fields left at zero.
const (
	DefaultConcurrency  = 5
	DefaultTaskTimeout  = 2 * time.Minute
	DefaultBatchTimeout = 20 * time.Minute
)

const pool = "harvest"

// Store is the persistence the harvester needs.
type Store interface {
	Company(ctx context.Context, id string) (model.Company, error)
	InsertPostingIfNew(ctx context.Context, p *model.JobPosting) (bool, error)
}

// Detector finds the job board behind a domain.
type Detector interface {
	Detect(ctx context.Context, domain string) board.Descriptor
}

// Config bounds one Harvest call.
type Config struct {
	Concurrency  int
	TaskTimeout  time.Duration
	BatchTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = DefaultTaskTimeout
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = DefaultBatchTimeout
	}
	return c
}

// Stats summarizes one Harvest call.
type Stats struct {
	Companies int // distinct ids requested
	Skipped   int // never started before the batch deadline
	Failed    int // includes TimedOut
	TimedOut  int // task or batch deadline hit while the company was running
	Found     int
	Matched   int
	Inserted  int
}

// Harvester owns the per-company flow: load, detect, list, filter, insert.
type Harvester struct {
	store    Store
	detector Detector
	lister   adapter.Lister
	titles   *filter.TitleFilter
	cfg      Config
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a harvester wired with all its dependencies. m may be nil.
func New(
	store Store,
	detector Detector,
	lister adapter.Lister,
	titles *filter.TitleFilter,
	cfg Config,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Harvester {
	return &Harvester{
		store:    store,
		detector: detector,
		lister:   lister,
		titles:   titles,
		cfg:      cfg.withDefaults(),
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type companyResult struct {
	found, matched, inserted int
}

// Harvest processes companyIDs with at most Concurrency tasks in flight. A
// failing or panicking task is logged and counted; it never cancels the
// others. When the batch deadline passes, unstarted companies are skipped and
// whatever was inserted stays inserted.
func (h *Harvester) Harvest(ctx context.Context, companyIDs []string) Stats {
	ids := dedupe(companyIDs)
	stats := Stats{Companies: len(ids)}
	if len(ids) == 0 {
		return stats
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.BatchTimeout)
	defer cancel()

	sem := semaphore.NewWeighted(int64(h.cfg.Concurrency))
	var (
		g  errgroup.Group
		mu sync.Mutex
	)

	for i, id := range ids {
		err := ctx.Err()
		if err == nil {
			err = sem.Acquire(ctx, 1)
		}
		if err != nil {
			stats.Skipped = len(ids) - i
			h.logger.Warn("harvest deadline reached, skipping remaining companies",
				zap.Int("skipped", stats.Skipped),
				zap.Error(err),
			)
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			res, err := h.harvestCompany(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			stats.Found += res.found
			stats.Matched += res.matched
			stats.Inserted += res.inserted
			if err != nil {
				stats.Failed++
				if errors.Is(err, context.DeadlineExceeded) {
					stats.TimedOut++
				}
				h.metrics.TaskFailed(pool)
				h.logger.Error("harvest task failed", zap.String("company_id", id), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	h.logger.Info("harvest complete",
		zap.Int("companies", stats.Companies),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Int("timed_out", stats.TimedOut),
		zap.Int("found", stats.Found),
		zap.Int("matched", stats.Matched),
		zap.Int("inserted", stats.Inserted),
	)
	return stats
}

func (h *Harvester) harvestCompany(ctx context.Context, id string) (res companyResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic harvesting %s: %v", id, r)
		}
	}()
	defer h.metrics.TaskStarted(pool)()

	ctx, cancel := context.WithTimeout(ctx, h.cfg.TaskTimeout)
	defer cancel()

	company, err := h.store.Company(ctx, id)
	if err != nil {
		return res, fmt.Errorf("loading company: %w", err)
	}

	desc := h.detector.Detect(ctx, company.Domain)
	postings, err := h.lister.ListPostings(ctx, desc)
	if err != nil && ctx.Err() != nil {
		return res, fmt.Errorf("listing %s: %w", board.Describe(desc), ctx.Err())
	}
	if err != nil {
		h.logger.Warn("listing postings failed",
			zap.String("domain", company.Domain),
			zap.String("board", board.Describe(desc)),
			zap.Error(err),
		)
		return res, nil
	}
	res.found = len(postings)

	matched := h.titles.Apply(postings)
	res.matched = len(matched)

	today := h.now()
	var insertErrs []error
	for _, p := range matched {
		jp := &model.JobPosting{
			CompanyID:   company.ID,
			Title:       p.Title,
			Location:    p.Location,
			URL:         p.URL,
			Remote:      filter.IsRemote(p.Location),
			PostingDate: today,
			CreatedAt:   today,
		}
		inserted, err := h.store.InsertPostingIfNew(ctx, jp)
		if err != nil {
			insertErrs = append(insertErrs, err)
			continue
		}
		if inserted {
			res.inserted++
		}
	}
	h.metrics.PostingsHarvested(res.found, res.inserted)

	h.logger.Info("harvested company",
		zap.String("domain", company.Domain),
		zap.String("board", board.Describe(desc)),
		zap.Int("found", res.found),
		zap.Int("matched", res.matched),
		zap.Int("inserted", res.inserted),
	)

	if len(insertErrs) > 0 {
		return res, fmt.Errorf("storing postings for %s: %w", company.Domain, errors.Join(insertErrs...))
	}
	return res, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
