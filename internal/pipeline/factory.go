package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/amishk599/oppradar/internal/adapter"
	"github.com/amishk599/oppradar/internal/board"
	"github.com/amishk599/oppradar/internal/classifier"
	"github.com/amishk599/oppradar/internal/config"
	"github.com/amishk599/oppradar/internal/digest"
	"github.com/amishk599/oppradar/internal/embedding"
	"github.com/amishk599/oppradar/internal/fetch"
	"github.com/amishk599/oppradar/internal/filter"
	"github.com/amishk599/oppradar/internal/harvester"
	"github.com/amishk599/oppradar/internal/metrics"
	"github.com/amishk599/oppradar/internal/model"
	"github.com/amishk599/oppradar/internal/notifier"
	"github.com/amishk599/oppradar/internal/ratelimit"
	"github.com/amishk599/oppradar/internal/retry"
	"github.com/amishk599/oppradar/internal/scoring"
	"github.com/amishk599/oppradar/internal/sourcing"
	"github.com/amishk599/oppradar/internal/store"
)

// ConfigFactory builds run components from the loaded configuration.
type ConfigFactory struct {
	cfg     *config.Config
	store   store.Store
	metrics *metrics.Metrics
	logger  *zap.Logger
}

var _ Factory = (*ConfigFactory)(nil)

// NewFactory returns a factory over st. m may be nil.
func NewFactory(cfg *config.Config, st store.Store, m *metrics.Metrics, logger *zap.Logger) *ConfigFactory {
	return &ConfigFactory{cfg: cfg, store: st, metrics: m, logger: logger}
}

// Build wires a fresh host limiter, page fetcher and HTTP client, then every
// stage collaborator on top of them.
func (f *ConfigFactory) Build(_ context.Context) (*Components, error) {
	cfg := f.cfg
	pages, client := f.transport()

	titles, err := filter.NewTitleFilter(cfg.Harvester.TitlePattern)
	if err != nil {
		return nil, fmt.Errorf("title filter: %w", err)
	}
	matcher := filter.NewKeywordMatcher(cfg.Classifier.MatchMode, cfg.Classifier.DomainKeywords, cfg.Classifier.AIKeywords)

	embedder := NewEmbedder(cfg.Embedding)

	var searcher sourcing.Searcher
	if cfg.Sourcing.SerpAPIKey != "" {
		searcher = sourcing.NewSerpAPISearcher(cfg.Sourcing.SerpAPIBaseURL, cfg.Sourcing.SerpAPIKey, cfg.Sourcing.ResultsPerQuery, client)
	}

	lister := f.lister(pages, client)

	return &Components{
		Sourcer: sourcing.New(cfg.Sourcing.SeedsFile, cfg.Sourcing.KeywordsFile, searcher, f.logger),
		Classifier: classifier.New(
			f.store,
			pages,
			matcher,
			embedding.NewIndexer(embedder, f.store),
			classifier.Config{
				Concurrency:  cfg.Classifier.Concurrency,
				FetchTimeout: cfg.Classifier.FetchTimeout,
				BatchTimeout: cfg.Classifier.BatchTimeout,
			},
			f.metrics,
			f.logger,
		),
		Harvester: harvester.New(
			f.store,
			board.NewDetector(pages, cfg.Harvester.CareersPaths, f.logger),
			lister,
			titles,
			harvester.Config{
				Concurrency:  cfg.Harvester.Concurrency,
				TaskTimeout:  cfg.Harvester.TaskTimeout,
				BatchTimeout: cfg.Harvester.BatchTimeout,
			},
			f.metrics,
			f.logger,
		),
		Scorer: &referenceScorer{
			path: cfg.Scoring.ReferenceFile,
			build: func(reference string) Scorer {
				return scoring.New(f.store, embedder, reference, cfg.Scoring.Weights, f.metrics, f.logger)
			},
		},
		Emitter:  digest.NewEmitter(f.store, cfg.Digest.Dir, cfg.Digest.Threshold, f.logger),
		Notifier: NewNotifier(cfg.Notification, &http.Client{Timeout: cfg.HTTP.Timeout}, f.logger),
	}, nil
}

// transport builds the per-run host limiter shared by the page fetcher and
// the API client.
func (f *ConfigFactory) transport() (fetch.Fetcher, *http.Client) {
	cfg := f.cfg
	limiter := ratelimit.NewHostLimiter(cfg.HTTP.RatePerHost, cfg.HTTP.Burst)
	pages := ratelimit.NewRateLimitedFetcher(
		fetch.NewCollyFetcher(fetch.Config{UserAgent: cfg.HTTP.UserAgent, Timeout: cfg.HTTP.Timeout}),
		limiter,
	)
	client := &http.Client{
		Timeout:   cfg.HTTP.Timeout,
		Transport: &ratelimit.Transport{Limiter: limiter},
	}
	return pages, client
}

func (f *ConfigFactory) lister(pages fetch.Fetcher, client *http.Client) adapter.Lister {
	return retry.NewLister(
		adapter.NewDispatcher(adapter.Options{
			GreenhouseBaseURL: f.cfg.Providers.GreenhouseBaseURL,
			LeverBaseURL:      f.cfg.Providers.LeverBaseURL,
		}, client, pages),
		f.cfg.HTTP.MaxRetries,
		f.cfg.HTTP.RetryBaseDelay,
		f.logger,
	)
}

// Check detects the board of one domain and lists its postings that pass
// the title filter. Nothing is written to the store.
func (f *ConfigFactory) Check(ctx context.Context, domain string) (board.Descriptor, []model.Posting, error) {
	pages, client := f.transport()
	titles, err := filter.NewTitleFilter(f.cfg.Harvester.TitlePattern)
	if err != nil {
		return nil, nil, fmt.Errorf("title filter: %w", err)
	}

	desc := board.NewDetector(pages, f.cfg.Harvester.CareersPaths, f.logger).Detect(ctx, domain)
	postings, err := f.lister(pages, client).ListPostings(ctx, desc)
	if err != nil {
		return desc, nil, fmt.Errorf("listing %s: %w", board.Describe(desc), err)
	}
	return desc, titles.Apply(postings), nil
}

// NewEmbedder returns the configured embedder.
func NewEmbedder(cfg config.EmbeddingConfig) embedding.Embedder {
	if cfg.Provider == config.EmbeddingOpenAI {
		return embedding.NewOpenAIEmbedder(cfg.BaseURL, cfg.APIKey, cfg.Model, &http.Client{Timeout: cfg.Timeout})
	}
	return embedding.NewHashingEmbedder(cfg.Dimensions)
}

// NewNotifier returns the configured digest notifier.
func NewNotifier(cfg config.NotificationConfig, client *http.Client, logger *zap.Logger) notifier.Notifier {
	if cfg.Type == "slack" {
		return notifier.NewSlackNotifier(cfg.WebhookURL, client, cfg.Top, logger)
	}
	return notifier.NewLogNotifier(logger, cfg.Top)
}

// referenceScorer reads the reference text on first use, so runs that stop
// before scoring do not need the file.
type referenceScorer struct {
	path  string
	build func(reference string) Scorer

	once   sync.Once
	scorer Scorer
	err    error
}

func (r *referenceScorer) ScorePending(ctx context.Context) (scoring.Stats, error) {
	r.once.Do(func() {
		var ref string
		ref, r.err = scoring.ReadReference(r.path)
		if r.err == nil {
			r.scorer = r.build(ref)
		}
	})
	if r.err != nil {
		return scoring.Stats{}, r.err
	}
	return r.scorer.ScorePending(ctx)
}
