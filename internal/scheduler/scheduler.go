package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/amishk599/oppradar/internal/pipeline"
)

// Runner executes one full pipeline run.
type Runner interface {
	Run(ctx context.Context, in any) (*pipeline.State, error)
}

// Scheduler owns the watch loop: one run now, then one per interval. Every
// run builds its own components, so nothing is shared between runs.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *zap.Logger
}

// NewScheduler creates a scheduler that runs the pipeline at the given interval.
func NewScheduler(runner Runner, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger,
	}
}

// Run starts the loop. It runs one immediate pipeline, then ticks on the
// configured interval. It returns nil when ctx is cancelled (graceful shutdown).
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler", zap.Duration("interval", s.interval))

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down scheduler")
			return nil
		case <-time.After(s.interval):
			s.runOnce(ctx)
		}
	}
}

// runOnce logs a failed run and carries on; the next tick starts fresh.
func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	st, err := s.runner.Run(ctx, nil)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		fields := []zap.Field{zap.Error(err)}
		var se *pipeline.StageError
		if errors.As(err, &se) {
			fields = append(fields, zap.String("stage", se.Stage))
		}
		if st != nil {
			fields = append(fields, zap.String("run_id", st.RunID))
		}
		s.logger.Error("pipeline run failed", fields...)
		return
	}

	fields := []zap.Field{
		zap.String("run_id", st.RunID),
		zap.Int("candidates", len(st.Candidates)),
		zap.Int("classified", len(st.Classified)),
	}
	if st.Harvest != nil {
		fields = append(fields, zap.Int("inserted", st.Harvest.Inserted))
	}
	if st.Digest != nil && st.Digest.Created {
		fields = append(fields, zap.String("digest", st.Digest.Path))
	}
	s.logger.Info("pipeline run complete", fields...)
}
