package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amishk599/oppradar/internal/config"
	"github.com/amishk599/oppradar/internal/embedding"
	"github.com/amishk599/oppradar/internal/model"
	"github.com/amishk599/oppradar/internal/notifier"
	"github.com/amishk599/oppradar/internal/store"
)

func TestConfigFactory_BuildsEveryComponent(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	comps, err := NewFactory(cfg, store.NewMemoryStore(), nil, zap.NewNop()).Build(context.Background())
	require.NoError(t, err)

	assert.NotNil(t, comps.Sourcer)
	assert.NotNil(t, comps.Classifier)
	assert.NotNil(t, comps.Harvester)
	assert.NotNil(t, comps.Scorer)
	assert.NotNil(t, comps.Emitter)
	assert.IsType(t, &notifier.LogNotifier{}, comps.Notifier)
}

func TestConfigFactory_MissingReferenceFailsScoreOnly(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Scoring.ReferenceFile = filepath.Join(t.TempDir(), "missing.txt")

	comps, err := NewFactory(cfg, store.NewMemoryStore(), nil, zap.NewNop()).Build(context.Background())
	require.NoError(t, err)

	_, err = comps.Scorer.ScorePending(context.Background())
	assert.ErrorContains(t, err, "reference")
}

func TestConfigFactory_ScoresWithReference(t *testing.T) {
	dir := t.TempDir()
	ref := filepath.Join(dir, "resume.txt")
	require.NoError(t, os.WriteFile(ref, []byte("machine learning engineer computer vision"), 0o644))

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Scoring.ReferenceFile = ref
	cfg.Digest.Dir = filepath.Join(dir, "digests")

	st := store.NewMemoryStore()
	ctx := context.Background()
	c := &model.Company{Name: "Acme-Ai", Domain: "acme-ai.com", Description: "construction AI"}
	require.NoError(t, st.InsertCompany(ctx, c))
	_, err = st.InsertPostingIfNew(ctx, &model.JobPosting{
		CompanyID: c.ID,
		Title:     "Machine Learning Engineer",
		URL:       "https://boards.greenhouse.io/acme/jobs/1",
		Remote:    true,
	})
	require.NoError(t, err)

	comps, err := NewFactory(cfg, st, nil, zap.NewNop()).Build(ctx)
	require.NoError(t, err)

	stats, err := comps.Scorer.ScorePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Scored)

	pending, err := st.UnscoredPostings(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestNewEmbedder(t *testing.T) {
	assert.IsType(t, &embedding.HashingEmbedder{}, NewEmbedder(config.EmbeddingConfig{Provider: config.EmbeddingHashing, Dimensions: 64}))
	assert.IsType(t, &embedding.OpenAIEmbedder{}, NewEmbedder(config.EmbeddingConfig{Provider: config.EmbeddingOpenAI, APIKey: "sk"}))
}

func TestNewNotifier(t *testing.T) {
	log := NewNotifier(config.NotificationConfig{Type: "log", Top: 3}, nil, zap.NewNop())
	assert.IsType(t, &notifier.LogNotifier{}, log)

	slack := NewNotifier(config.NotificationConfig{Type: "slack", WebhookURL: "https://hooks.slack.com/x", Top: 3}, nil, zap.NewNop())
	assert.IsType(t, &notifier.SlackNotifier{}, slack)
}
