package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/amishk599/oppradar/internal/config"
	"github.com/amishk599/oppradar/internal/logging"
	"github.com/amishk599/oppradar/internal/metrics"
	"github.com/amishk599/oppradar/internal/pipeline"
	"github.com/amishk599/oppradar/internal/runlock"
	"github.com/amishk599/oppradar/internal/store"
)

// settings holds the CLI-level options: flags, overridable by OPPRADAR_* env vars.
var settings = viper.New()

var rootCmd = &cobra.Command{
	Use:   "oppradar",
	Short: "Opportunity radar for construction × AI roles",
	Long: `oppradar discovers companies working on AI for construction, harvests
their job boards, scores each posting against your resume and writes a daily
digest of the best matches.`,
	SilenceUsage: true,
	// Default to `run` so that `oppradar` with no args does one full pass.
	RunE: runPipeline,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "", "path to config file (default: OPPRADAR_CONFIG env var or ./config.yaml)")
	pf.Bool("debug", false, "enable debug logging")
	pf.String("db", "", "override database.path (sqlite) or database.dsn (postgres)")
	pf.Bool("dry-run", false, "use an in-memory store; nothing is persisted")
	pf.String("metrics-addr", "", "serve Prometheus metrics on this address (overrides metrics.addr)")
	if err := settings.BindPFlags(pf); err != nil {
		panic(err)
	}
	settings.SetEnvPrefix("OPPRADAR")
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()
}

// loadConfig resolves the config path and parses it.
// Priority: --config flag > OPPRADAR_CONFIG env var > "./config.yaml" > defaults.
func loadConfig() (*config.Config, error) {
	path := settings.GetString("config")
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if db := settings.GetString("db"); db != "" {
		if cfg.Database.Driver == "postgres" {
			cfg.Database.DSN = db
		} else {
			if cfg.Schedule.LockFile == cfg.Database.Path+".lock" {
				cfg.Schedule.LockFile = db + ".lock"
			}
			cfg.Database.Path = db
		}
	}
	if addr := settings.GetString("metrics-addr"); addr != "" {
		cfg.Metrics.Addr = addr
	}
	return cfg, nil
}

func setupLogger() (*zap.Logger, error) {
	return logging.New(settings.GetBool("debug"))
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	if settings.GetBool("dry-run") {
		logger.Info("dry-run mode enabled, using in-memory store")
		return store.NewMemoryStore(), nil
	}
	switch cfg.Database.Driver {
	case "postgres":
		return store.NewPostgresStore(ctx, store.PostgresConfig{
			DSN:      cfg.Database.DSN,
			MaxConns: cfg.Database.MaxConns,
		})
	default:
		return store.NewSQLiteStore(cfg.Database.Path)
	}
}

// app is everything a command needs after startup.
type app struct {
	cfg          *config.Config
	logger       *zap.Logger
	store        store.Store
	metrics      *metrics.Metrics
	orchestrator *pipeline.Orchestrator
	closers      []func()
}

// newApp loads config, opens the store and wires the orchestrator. Call
// close when done.
func newApp(ctx context.Context) (*app, error) {
	logger, err := setupLogger()
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("failed to load config", zap.Error(err))
		return nil, err
	}
	logger.Info("config loaded",
		zap.String("database", cfg.Database.Driver),
		zap.Int("classifier_concurrency", cfg.Classifier.Concurrency),
		zap.Int("harvester_concurrency", cfg.Harvester.Concurrency),
		zap.String("match_mode", string(cfg.Classifier.MatchMode)),
		zap.String("embedding", cfg.Embedding.Provider),
		zap.Float64("threshold", cfg.Digest.Threshold),
	)

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", zap.Error(err))
		return nil, err
	}

	m := metrics.New(nil)
	a := &app{
		cfg:          cfg,
		logger:       logger,
		store:        st,
		metrics:      m,
		orchestrator: pipeline.New(pipeline.NewFactory(cfg, st, m, logger), m, logger),
	}
	a.closers = append(a.closers, func() {
		if err := st.Close(); err != nil {
			logger.Warn("closing store", zap.Error(err))
		}
	})
	if cfg.Metrics.Addr != "" {
		a.closers = append(a.closers, serveMetrics(cfg.Metrics.Addr, m, logger))
	}
	return a, nil
}

// lock takes the run lock for commands that write to the store. Dry runs
// touch nothing shared and skip it.
func (a *app) lock() error {
	if settings.GetBool("dry-run") {
		return nil
	}
	l, err := runlock.Acquire(a.cfg.Schedule.LockFile)
	if err != nil {
		a.logger.Error("failed to take run lock", zap.Error(err))
		return err
	}
	if l.Path() != "" {
		a.logger.Debug("run lock held", zap.String("path", l.Path()))
	}
	a.closers = append(a.closers, func() {
		if err := l.Release(); err != nil {
			a.logger.Warn("releasing run lock", zap.Error(err))
		}
	})
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}

// serveMetrics exposes /metrics until the returned stop func is called.
func serveMetrics(addr string, m *metrics.Metrics, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// printSummary writes a short human report of a run to stdout.
func printSummary(st *pipeline.State) {
	if st == nil {
		return
	}
	fmt.Printf("run %s: %s\n", st.RunID, strings.Join(st.Completed, " → "))
	if len(st.Candidates) > 0 {
		fmt.Printf("  candidates:  %d\n", len(st.Candidates))
	}
	if len(st.Classified) > 0 {
		fmt.Printf("  classified:  %d\n", len(st.Classified))
	}
	if h := st.Harvest; h != nil {
		fmt.Printf("  harvested:   %d companies, %d found, %d matched, %d new (%d failed, %d timed out, %d skipped)\n",
			h.Companies, h.Found, h.Matched, h.Inserted, h.Failed, h.TimedOut, h.Skipped)
	}
	if s := st.Score; s != nil {
		fmt.Printf("  scored:      %d of %d (%d failed)\n", s.Scored, s.Pending, s.Failed)
	}
	if d := st.Digest; d != nil {
		if d.Created {
			fmt.Printf("  digest:      %s (%d rows ≥ %.0f)\n", d.Path, len(d.Rows), d.Threshold)
		} else {
			fmt.Printf("  digest:      nothing scored ≥ %.0f\n", d.Threshold)
		}
	}
}
