package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/amishk599/oppradar/internal/filter"
	"github.com/amishk599/oppradar/internal/scoring"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	t.Setenv("TEST_SERPAPI_KEY", "serp-123")
	path := writeConfig(t, `
database:
  driver: postgres
  dsn: postgres://localhost/oppradar
http:
  timeout: 10s
  rate_per_host: 0.5
  max_retries: 0
sourcing:
  serpapi_key: ${TEST_SERPAPI_KEY}
classifier:
  concurrency: 4
  match_mode: all
  domain_keywords: [construction]
harvester:
  task_timeout: 90s
  title_pattern: "(?i)engineer"
scoring:
  weights:
    skill_similarity: 0.5
    ai_depth: 0.5
digest:
  threshold: 55
notification:
  type: slack
  webhook_url: https://hooks.slack.com/services/T/B/X
  top: 3
schedule:
  interval: 6h
metrics:
  addr: ":9100"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.DSN != "postgres://localhost/oppradar" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.HTTP.Timeout != 10*time.Second || cfg.HTTP.RatePerHost != 0.5 || cfg.HTTP.MaxRetries != 0 {
		t.Errorf("HTTP = %+v", cfg.HTTP)
	}
	if cfg.Sourcing.SerpAPIKey != "serp-123" {
		t.Errorf("SerpAPIKey = %q, want expanded env value", cfg.Sourcing.SerpAPIKey)
	}
	if cfg.Classifier.Concurrency != 4 || cfg.Classifier.MatchMode != filter.MatchAll {
		t.Errorf("Classifier = %+v", cfg.Classifier)
	}
	if len(cfg.Classifier.DomainKeywords) != 1 || cfg.Classifier.DomainKeywords[0] != "construction" {
		t.Errorf("DomainKeywords = %v", cfg.Classifier.DomainKeywords)
	}
	if len(cfg.Classifier.AIKeywords) != len(filter.DefaultAIKeywords) {
		t.Errorf("AIKeywords should fall back to defaults, got %v", cfg.Classifier.AIKeywords)
	}
	if cfg.Harvester.TaskTimeout != 90*time.Second || cfg.Harvester.BatchTimeout != 20*time.Minute {
		t.Errorf("Harvester = %+v", cfg.Harvester)
	}
	if cfg.Scoring.Weights.SkillSimilarity != 0.5 || cfg.Scoring.Weights.Remote != 0 {
		t.Errorf("Weights = %+v", cfg.Scoring.Weights)
	}
	if cfg.Digest.Threshold != 55 || cfg.Digest.Dir != "digests" {
		t.Errorf("Digest = %+v", cfg.Digest)
	}
	if cfg.Notification.Type != "slack" || cfg.Notification.Top != 3 {
		t.Errorf("Notification = %+v", cfg.Notification)
	}
	if cfg.Schedule.Interval != 6*time.Hour {
		t.Errorf("Interval = %v, want 6h", cfg.Schedule.Interval)
	}
	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q", cfg.Metrics.Addr)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.Path != "oppradar.db" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Classifier.Concurrency != 8 || cfg.Harvester.Concurrency != 5 {
		t.Errorf("concurrency = %d/%d, want 8/5", cfg.Classifier.Concurrency, cfg.Harvester.Concurrency)
	}
	if cfg.Classifier.MatchMode != filter.MatchAny {
		t.Errorf("MatchMode = %q, want any", cfg.Classifier.MatchMode)
	}
	if cfg.Scoring.Weights != scoring.DefaultWeights() {
		t.Errorf("Weights = %+v, want defaults", cfg.Scoring.Weights)
	}
	if cfg.Digest.Threshold != 70 {
		t.Errorf("Threshold = %v, want 70", cfg.Digest.Threshold)
	}
	if cfg.Embedding.Provider != EmbeddingHashing {
		t.Errorf("Embedding.Provider = %q, want hashing", cfg.Embedding.Provider)
	}
	if cfg.Notification.Type != "log" {
		t.Errorf("Notification.Type = %q, want log", cfg.Notification.Type)
	}
	if cfg.HTTP.MaxRetries != 3 || cfg.HTTP.RatePerHost != 2 {
		t.Errorf("HTTP = %+v", cfg.HTTP)
	}
	if cfg.Schedule.LockFile != "oppradar.db.lock" {
		t.Errorf("LockFile = %q, want oppradar.db.lock", cfg.Schedule.LockFile)
	}
}

func TestLoad_EmbeddingProviderFromKey(t *testing.T) {
	cfg, err := Load(writeConfig(t, "embedding:\n  api_key: sk-test\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Embedding.Provider != EmbeddingOpenAI {
		t.Errorf("Provider = %q, want openai when a key is set", cfg.Embedding.Provider)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "schedule: [broken"))
	if err == nil {
		t.Fatal("Load: expected error for invalid YAML")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := map[string]string{
		"unknown driver":       "database:\n  driver: mysql\n",
		"postgres without dsn": "database:\n  driver: postgres\n",
		"bad duration":         "harvester:\n  task_timeout: soon\n",
		"zero interval":        "schedule:\n  interval: 0s\n",
		"bad match mode":       "classifier:\n  match_mode: most\n",
		"bad title pattern":    "harvester:\n  title_pattern: \"(\"\n",
		"weights not summing":  "scoring:\n  weights:\n    skill_similarity: 0.5\n",
		"negative weight":      "scoring:\n  weights:\n    skill_similarity: 1.5\n    remote: -0.5\n",
		"threshold too high":   "digest:\n  threshold: 101\n",
		"slack without url":    "notification:\n  type: slack\n",
		"slack wrong host":     "notification:\n  type: slack\n  webhook_url: https://example.com/hook\n",
		"unknown notifier":     "notification:\n  type: email\n",
		"openai without key":   "embedding:\n  provider: openai\n",
		"negative concurrency": "classifier:\n  concurrency: -1\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Fatalf("Load: expected validation error for %s", name)
			}
		})
	}
}
