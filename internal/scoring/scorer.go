// Package scoring attaches a 0..100 fit score to each unscored posting.
package scoring

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/amishk599/oppradar/internal/embedding"
	"github.com/amishk599/oppradar/internal/metrics"
	"github.com/amishk599/oppradar/internal/model"
)

// Store is the persistence the scorer needs.
type Store interface {
	UnscoredPostings(ctx context.Context) ([]model.ScoredPosting, error)
	SetScores(ctx context.Context, scores map[string]float64) (int, error)
}

// Stats summarizes one ScorePending call.
type Stats struct {
	Pending int
	Scored  int
	Failed  int
}

// commitTimeout bounds the final write when the run has been cancelled.
const commitTimeout = 10 * time.Second

// Scorer computes features for unscored postings and writes the scores once.
type Scorer struct {
	store     Store
	embedder  embedding.Embedder
	reference string
	weights   Weights
	metrics   *metrics.Metrics
	logger    *zap.Logger

	refOnce sync.Once
	refVec  []float32
	refErr  error
}

// New creates a scorer. reference is the text postings are compared to,
// usually a resume. m may be nil.
func New(store Store, embedder embedding.Embedder, reference string, weights Weights, m *metrics.Metrics, logger *zap.Logger) *Scorer {
	return &Scorer{
		store:     store,
		embedder:  embedder,
		reference: reference,
		weights:   weights,
		metrics:   m,
		logger:    logger,
	}
}

// ReadReference loads the reference text from path.
func ReadReference(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading reference file: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("reference file %s is empty", path)
	}
	return text, nil
}

func (s *Scorer) referenceVector(ctx context.Context) ([]float32, error) {
	s.refOnce.Do(func() {
		s.refVec, s.refErr = s.embedder.Embed(ctx, s.reference)
		if s.refErr != nil {
			s.refErr = fmt.Errorf("embedding reference text: %w", s.refErr)
		}
	})
	return s.refVec, s.refErr
}

// Features computes the feature vector for one posting.
func (s *Scorer) Features(ctx context.Context, ref []float32, sp model.ScoredPosting) (Features, error) {
	p, c := sp.Posting, sp.Company
	vec, err := s.embedder.Embed(ctx, p.Title+" "+p.Description)
	if err != nil {
		return Features{}, fmt.Errorf("embedding posting: %w", err)
	}
	f := Features{
		SkillSimilarity:       clamp01(embedding.CosineSimilarity(ref, vec)),
		AIDepth:               AIDepth(p.Title),
		FundingStage:          FundingBucket(c.FundingStage),
		ConstructionRelevance: ConstructionRelevance(c.Description),
		GrowthVelocity:        GrowthVelocity,
	}
	if p.Remote {
		f.Remote = 1
	}
	return f, nil
}

// ScorePending scores every posting with a null score. A posting that fails
// keeps its null score for the next run; the rest are committed together.
// Failing to embed the reference text fails the whole call. On cancellation
// the scores computed so far are still committed and ctx's error is returned.
func (s *Scorer) ScorePending(ctx context.Context) (Stats, error) {
	ref, err := s.referenceVector(ctx)
	if err != nil {
		return Stats{}, err
	}

	pending, err := s.store.UnscoredPostings(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("loading unscored postings: %w", err)
	}
	stats := Stats{Pending: len(pending)}
	s.logger.Info("scoring postings", zap.Int("pending", stats.Pending))

	var cancelErr error
	scores := make(map[string]float64, len(pending))
	for _, sp := range pending {
		if cancelErr = ctx.Err(); cancelErr != nil {
			break
		}
		f, err := s.Features(ctx, ref, sp)
		if err != nil {
			if cancelErr = ctx.Err(); cancelErr != nil {
				break
			}
			stats.Failed++
			s.logger.Error("failed to score posting",
				zap.String("title", sp.Posting.Title),
				zap.String("url", sp.Posting.URL),
				zap.Error(err),
			)
			continue
		}
		score := s.weights.Score(f)
		scores[sp.Posting.ID] = score
		s.logger.Debug("scored posting",
			zap.String("title", sp.Posting.Title),
			zap.String("company", sp.Company.Domain),
			zap.Float64("score", score),
		)
	}

	commitCtx := ctx
	if cancelErr != nil {
		s.logger.Warn("scoring interrupted, committing partial scores",
			zap.Int("computed", len(scores)),
			zap.Int("pending", stats.Pending),
		)
		var cancel context.CancelFunc
		commitCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
		defer cancel()
	}

	n, err := s.store.SetScores(commitCtx, scores)
	if err != nil {
		return stats, fmt.Errorf("saving scores: %w", err)
	}
	stats.Scored = n
	s.metrics.Scored(n)

	s.logger.Info("scoring complete",
		zap.Int("pending", stats.Pending),
		zap.Int("scored", stats.Scored),
		zap.Int("failed", stats.Failed),
	)
	return stats, cancelErr
}

func clamp01(v float64) float64 {
	return max(0, min(v, 1))
}
