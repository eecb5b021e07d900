// Package config loads the oppradar YAML configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amishk599/oppradar/internal/digest"
	"github.com/amishk599/oppradar/internal/embedding"
	"github.com/amishk599/oppradar/internal/fetch"
	"github.com/amishk599/oppradar/internal/filter"
	"github.com/amishk599/oppradar/internal/notifier"
	"github.com/amishk599/oppradar/internal/scoring"
	"github.com/amishk599/oppradar/internal/sourcing"
)

// Config is the root configuration for an oppradar run.
type Config struct {
	Database     DatabaseConfig
	HTTP         HTTPConfig
	Sourcing     SourcingConfig
	Classifier   ClassifierConfig
	Harvester    HarvesterConfig
	Providers    ProvidersConfig
	Embedding    EmbeddingConfig
	Scoring      ScoringConfig
	Digest       DigestConfig
	Notification NotificationConfig
	Schedule     ScheduleConfig
	Metrics      MetricsConfig
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	Driver   string // "sqlite" or "postgres"
	Path     string // sqlite file
	DSN      string // postgres connection string
	MaxConns int32
}

// HTTPConfig controls outbound requests shared by every stage.
type HTTPConfig struct {
	UserAgent      string
	Timeout        time.Duration
	RatePerHost    float64 // requests per second per host; 0 disables limiting
	Burst          int
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// SourcingConfig locates the candidate inputs.
type SourcingConfig struct {
	SeedsFile       string
	KeywordsFile    string
	SerpAPIKey      string // expanded from env var by Load
	SerpAPIBaseURL  string
	ResultsPerQuery int
}

// ClassifierConfig bounds the relevance stage.
type ClassifierConfig struct {
	Concurrency    int
	FetchTimeout   time.Duration
	BatchTimeout   time.Duration
	MatchMode      filter.MatchMode
	DomainKeywords []string
	AIKeywords     []string
}

// HarvesterConfig bounds the harvesting stage.
type HarvesterConfig struct {
	Concurrency  int
	TaskTimeout  time.Duration
	BatchTimeout time.Duration
	TitlePattern string
	CareersPaths []string
}

// ProvidersConfig overrides board API endpoints, mainly for testing.
type ProvidersConfig struct {
	GreenhouseBaseURL string `yaml:"greenhouse_base_url"`
	LeverBaseURL      string `yaml:"lever_base_url"`
}

// EmbeddingConfig picks the embedder.
type EmbeddingConfig struct {
	Provider   string // "hashing" or "openai"
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// ScoringConfig holds the fit rubric.
type ScoringConfig struct {
	ReferenceFile string
	Weights       scoring.Weights
}

// DigestConfig controls the CSV output.
type DigestConfig struct {
	Dir       string  `yaml:"dir"`
	Threshold float64 `yaml:"threshold"`
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Type       string `yaml:"type"`        // "log" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
	Top        int    `yaml:"top"`
}

// ScheduleConfig drives the watch command. LockFile guards against two
// writers running the pipeline against the same store.
type ScheduleConfig struct {
	Interval time.Duration
	LockFile string
}

// MetricsConfig exposes Prometheus metrics when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Embedding providers.
const (
	EmbeddingHashing = "hashing"
	EmbeddingOpenAI  = "openai"
)

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as strings).
type rawConfig struct {
	Database     rawDatabaseConfig   `yaml:"database"`
	HTTP         rawHTTPConfig       `yaml:"http"`
	Sourcing     rawSourcingConfig   `yaml:"sourcing"`
	Classifier   rawClassifierConfig `yaml:"classifier"`
	Harvester    rawHarvesterConfig  `yaml:"harvester"`
	Providers    ProvidersConfig     `yaml:"providers"`
	Embedding    rawEmbeddingConfig  `yaml:"embedding"`
	Scoring      rawScoringConfig    `yaml:"scoring"`
	Digest       rawDigestConfig     `yaml:"digest"`
	Notification NotificationConfig  `yaml:"notification"`
	Schedule     rawScheduleConfig   `yaml:"schedule"`
	Metrics      MetricsConfig       `yaml:"metrics"`
}

type rawDatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
}

type rawHTTPConfig struct {
	UserAgent      string   `yaml:"user_agent"`
	Timeout        string   `yaml:"timeout"`
	RatePerHost    *float64 `yaml:"rate_per_host"`
	Burst          int      `yaml:"burst"`
	MaxRetries     *int     `yaml:"max_retries"`
	RetryBaseDelay string   `yaml:"retry_base_delay"`
}

type rawSourcingConfig struct {
	SeedsFile       string `yaml:"seeds_file"`
	KeywordsFile    string `yaml:"keywords_file"`
	SerpAPIKey      string `yaml:"serpapi_key"`
	SerpAPIBaseURL  string `yaml:"serpapi_base_url"`
	ResultsPerQuery int    `yaml:"results_per_query"`
}

type rawClassifierConfig struct {
	Concurrency    int      `yaml:"concurrency"`
	FetchTimeout   string   `yaml:"fetch_timeout"`
	BatchTimeout   string   `yaml:"batch_timeout"`
	MatchMode      string   `yaml:"match_mode"`
	DomainKeywords []string `yaml:"domain_keywords"`
	AIKeywords     []string `yaml:"ai_keywords"`
}

type rawHarvesterConfig struct {
	Concurrency  int      `yaml:"concurrency"`
	TaskTimeout  string   `yaml:"task_timeout"`
	BatchTimeout string   `yaml:"batch_timeout"`
	TitlePattern string   `yaml:"title_pattern"`
	CareersPaths []string `yaml:"careers_paths"`
}

type rawEmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	Timeout    string `yaml:"timeout"`
}

type rawScoringConfig struct {
	ReferenceFile string           `yaml:"reference_file"`
	Weights       *scoring.Weights `yaml:"weights"`
}

type rawDigestConfig struct {
	Dir       string   `yaml:"dir"`
	Threshold *float64 `yaml:"threshold"`
}

type rawScheduleConfig struct {
	Interval string `yaml:"interval"`
	LockFile string `yaml:"lock_file"`
}

// Load reads and parses the YAML config file at path, validates it, and
// returns Config. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse builds a validated Config from YAML. ${VAR} references are expanded
// from the environment first.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg, err := fromRaw(raw)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func duration(field, raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, raw, err)
	}
	return d, nil
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

func fromRaw(raw rawConfig) (*Config, error) {
	cfg := &Config{}
	var err error

	cfg.Database = DatabaseConfig{
		Driver:   strings.ToLower(orDefault(raw.Database.Driver, "sqlite")),
		Path:     orDefault(raw.Database.Path, "oppradar.db"),
		DSN:      raw.Database.DSN,
		MaxConns: raw.Database.MaxConns,
	}

	cfg.HTTP = HTTPConfig{
		UserAgent:   orDefault(raw.HTTP.UserAgent, fetch.DefaultUserAgent),
		RatePerHost: 2,
		Burst:       orDefault(raw.HTTP.Burst, 2),
		MaxRetries:  3,
	}
	if raw.HTTP.RatePerHost != nil {
		cfg.HTTP.RatePerHost = *raw.HTTP.RatePerHost
	}
	if raw.HTTP.MaxRetries != nil {
		cfg.HTTP.MaxRetries = *raw.HTTP.MaxRetries
	}
	if cfg.HTTP.Timeout, err = duration("http.timeout", raw.HTTP.Timeout, 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTP.RetryBaseDelay, err = duration("http.retry_base_delay", raw.HTTP.RetryBaseDelay, time.Second); err != nil {
		return nil, err
	}

	cfg.Sourcing = SourcingConfig{
		SeedsFile:       orDefault(raw.Sourcing.SeedsFile, "seeds.csv"),
		KeywordsFile:    orDefault(raw.Sourcing.KeywordsFile, "keywords.csv"),
		SerpAPIKey:      raw.Sourcing.SerpAPIKey,
		SerpAPIBaseURL:  raw.Sourcing.SerpAPIBaseURL,
		ResultsPerQuery: orDefault(raw.Sourcing.ResultsPerQuery, sourcing.DefaultResultsPerQuery),
	}

	mode, err := filter.ParseMatchMode(raw.Classifier.MatchMode)
	if err != nil {
		return nil, fmt.Errorf("classifier.match_mode: %w", err)
	}
	cfg.Classifier = ClassifierConfig{
		Concurrency:    orDefault(raw.Classifier.Concurrency, 8),
		MatchMode:      mode,
		DomainKeywords: raw.Classifier.DomainKeywords,
		AIKeywords:     raw.Classifier.AIKeywords,
	}
	if len(cfg.Classifier.DomainKeywords) == 0 {
		cfg.Classifier.DomainKeywords = filter.DefaultDomainKeywords
	}
	if len(cfg.Classifier.AIKeywords) == 0 {
		cfg.Classifier.AIKeywords = filter.DefaultAIKeywords
	}
	if cfg.Classifier.FetchTimeout, err = duration("classifier.fetch_timeout", raw.Classifier.FetchTimeout, 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.Classifier.BatchTimeout, err = duration("classifier.batch_timeout", raw.Classifier.BatchTimeout, 5*time.Minute); err != nil {
		return nil, err
	}

	cfg.Harvester = HarvesterConfig{
		Concurrency:  orDefault(raw.Harvester.Concurrency, 5),
		TitlePattern: orDefault(raw.Harvester.TitlePattern, filter.DefaultTitlePattern),
		CareersPaths: raw.Harvester.CareersPaths,
	}
	if cfg.Harvester.TaskTimeout, err = duration("harvester.task_timeout", raw.Harvester.TaskTimeout, 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Harvester.BatchTimeout, err = duration("harvester.batch_timeout", raw.Harvester.BatchTimeout, 20*time.Minute); err != nil {
		return nil, err
	}

	cfg.Providers = raw.Providers

	cfg.Embedding = EmbeddingConfig{
		Provider:   strings.ToLower(raw.Embedding.Provider),
		APIKey:     raw.Embedding.APIKey,
		BaseURL:    raw.Embedding.BaseURL,
		Model:      raw.Embedding.Model,
		Dimensions: orDefault(raw.Embedding.Dimensions, embedding.DefaultDimensions),
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = EmbeddingHashing
		if cfg.Embedding.APIKey != "" {
			cfg.Embedding.Provider = EmbeddingOpenAI
		}
	}
	if cfg.Embedding.Timeout, err = duration("embedding.timeout", raw.Embedding.Timeout, 30*time.Second); err != nil {
		return nil, err
	}

	cfg.Scoring = ScoringConfig{
		ReferenceFile: orDefault(raw.Scoring.ReferenceFile, "resume.txt"),
		Weights:       scoring.DefaultWeights(),
	}
	if raw.Scoring.Weights != nil {
		cfg.Scoring.Weights = *raw.Scoring.Weights
	}

	cfg.Digest = DigestConfig{
		Dir:       orDefault(raw.Digest.Dir, digest.DefaultDir),
		Threshold: digest.DefaultThreshold,
	}
	if raw.Digest.Threshold != nil {
		cfg.Digest.Threshold = *raw.Digest.Threshold
	}

	cfg.Notification = NotificationConfig{
		Type:       strings.ToLower(orDefault(raw.Notification.Type, "log")),
		WebhookURL: raw.Notification.WebhookURL,
		Top:        orDefault(raw.Notification.Top, notifier.DefaultTop),
	}

	if cfg.Schedule.Interval, err = duration("schedule.interval", raw.Schedule.Interval, 24*time.Hour); err != nil {
		return nil, err
	}
	cfg.Schedule.LockFile = raw.Schedule.LockFile
	if cfg.Schedule.LockFile == "" && cfg.Database.Driver == "sqlite" {
		cfg.Schedule.LockFile = cfg.Database.Path + ".lock"
	}

	cfg.Metrics = raw.Metrics
	return cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.Database.Driver {
	case "sqlite":
		if cfg.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres":
		if cfg.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("database.driver must be \"sqlite\" or \"postgres\", got %q", cfg.Database.Driver)
	}

	if cfg.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive, got %v", cfg.HTTP.Timeout)
	}
	if cfg.HTTP.RatePerHost < 0 {
		return fmt.Errorf("http.rate_per_host must not be negative, got %v", cfg.HTTP.RatePerHost)
	}
	if cfg.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must not be negative, got %d", cfg.HTTP.MaxRetries)
	}

	if cfg.Classifier.Concurrency <= 0 {
		return fmt.Errorf("classifier.concurrency must be positive, got %d", cfg.Classifier.Concurrency)
	}
	if cfg.Classifier.FetchTimeout <= 0 || cfg.Classifier.BatchTimeout <= 0 {
		return fmt.Errorf("classifier timeouts must be positive")
	}
	if cfg.Harvester.Concurrency <= 0 {
		return fmt.Errorf("harvester.concurrency must be positive, got %d", cfg.Harvester.Concurrency)
	}
	if cfg.Harvester.TaskTimeout <= 0 || cfg.Harvester.BatchTimeout <= 0 {
		return fmt.Errorf("harvester timeouts must be positive")
	}
	if _, err := filter.NewTitleFilter(cfg.Harvester.TitlePattern); err != nil {
		return fmt.Errorf("harvester.title_pattern: %w", err)
	}

	switch cfg.Embedding.Provider {
	case EmbeddingHashing:
	case EmbeddingOpenAI:
		if cfg.Embedding.APIKey == "" {
			return fmt.Errorf("embedding.api_key is required when embedding.provider is \"openai\"")
		}
	default:
		return fmt.Errorf("embedding.provider must be \"hashing\" or \"openai\", got %q", cfg.Embedding.Provider)
	}

	if err := cfg.Scoring.Weights.Validate(); err != nil {
		return fmt.Errorf("scoring.weights: %w", err)
	}

	if cfg.Digest.Threshold < 0 || cfg.Digest.Threshold > 100 {
		return fmt.Errorf("digest.threshold must be between 0 and 100, got %v", cfg.Digest.Threshold)
	}

	switch cfg.Notification.Type {
	case "log":
	case "slack":
		if cfg.Notification.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, "https://hooks.slack.com/") {
			return fmt.Errorf("notification.webhook_url must start with https://hooks.slack.com/")
		}
	default:
		return fmt.Errorf("notification.type must be \"log\" or \"slack\", got %q", cfg.Notification.Type)
	}

	if cfg.Schedule.Interval <= 0 {
		return fmt.Errorf("schedule.interval must be positive, got %v", cfg.Schedule.Interval)
	}

	return nil
}
