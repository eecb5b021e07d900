// Package pipeline sequences the source, classify, harvest, score and notify
// stages of one run and hands the accumulated State from each to the next.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/amishk599/oppradar/internal/digest"
	"github.com/amishk599/oppradar/internal/harvester"
	"github.com/amishk599/oppradar/internal/metrics"
	"github.com/amishk599/oppradar/internal/model"
	"github.com/amishk599/oppradar/internal/notifier"
	"github.com/amishk599/oppradar/internal/scoring"
)

// Stage names in run order.
const (
	StageSource   = "source"
	StageClassify = "classify"
	StageHarvest  = "harvest"
	StageScore    = "score"
	StageNotify   = "notify"
)

// StageNames is the fixed stage order.
var StageNames = []string{StageSource, StageClassify, StageHarvest, StageScore, StageNotify}

// StageError attributes a run failure to the stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Stage is one step of the run.
type Stage struct {
	Name string
	Run  func(ctx context.Context, st *State) error
}

// Sourcer produces candidates.
type Sourcer interface {
	Source(ctx context.Context) ([]model.Candidate, error)
}

// Classifier turns candidates into stored companies.
type Classifier interface {
	Classify(ctx context.Context, candidates []model.Candidate) []model.ClassifiedCompany
}

// Harvester collects postings for stored companies.
type Harvester interface {
	Harvest(ctx context.Context, companyIDs []string) harvester.Stats
}

// Scorer scores postings that have no score yet.
type Scorer interface {
	ScorePending(ctx context.Context) (scoring.Stats, error)
}

// Emitter writes the dated digest.
type Emitter interface {
	Emit(ctx context.Context, day time.Time) (digest.Result, error)
}

// Components are the collaborators of one run.
type Components struct {
	Sourcer    Sourcer
	Classifier Classifier
	Harvester  Harvester
	Scorer     Scorer
	Emitter    Emitter
	Notifier   notifier.Notifier
}

// Factory builds fresh Components for each run, so limiters and pools are
// never shared between runs.
type Factory interface {
	Build(ctx context.Context) (*Components, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context) (*Components, error)

// Build implements Factory.
func (f FactoryFunc) Build(ctx context.Context) (*Components, error) { return f(ctx) }

// Orchestrator runs the stages in order.
type Orchestrator struct {
	factory Factory
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// New creates an orchestrator. m may be nil.
func New(factory Factory, m *metrics.Metrics, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		factory: factory,
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run executes every stage starting from source.
func (o *Orchestrator) Run(ctx context.Context, in any) (*State, error) {
	return o.RunRange(ctx, StageSource, StageNotify, in)
}

// RunFrom executes the stages from the named one through notify.
func (o *Orchestrator) RunFrom(ctx context.Context, from string, in any) (*State, error) {
	return o.RunRange(ctx, from, StageNotify, in)
}

// RunRange executes the stages from through to, inclusive. Committed store
// writes of earlier stages stay in place when a later stage fails; the
// returned state holds everything produced up to the failure.
func (o *Orchestrator) RunRange(ctx context.Context, from, to string, in any) (*State, error) {
	start, end := slices.Index(StageNames, from), slices.Index(StageNames, to)
	if start < 0 {
		return nil, fmt.Errorf("unknown stage %q", from)
	}
	if end < 0 {
		return nil, fmt.Errorf("unknown stage %q", to)
	}
	if end < start {
		return nil, fmt.Errorf("stage %q comes before %q", to, from)
	}

	st, err := Coerce(in)
	if err != nil {
		return nil, err
	}

	comps, err := o.factory.Build(ctx)
	if err != nil {
		return st, &StageError{Stage: from, Err: fmt.Errorf("building components: %w", err)}
	}

	logger := o.logger.With(zap.String("run_id", st.RunID))
	logger.Info("pipeline run starting",
		zap.String("from", from),
		zap.String("to", to),
	)

	for _, stage := range o.stages(comps)[start : end+1] {
		if err := ctx.Err(); err != nil {
			logger.Warn("pipeline run cancelled", zap.String("stage", stage.Name))
			return st, &StageError{Stage: stage.Name, Err: err}
		}

		began := time.Now()
		err := runStage(ctx, stage, st)
		elapsed := time.Since(began)
		o.metrics.ObserveStage(stage.Name, elapsed, err)

		if err != nil {
			logger.Error("stage failed",
				zap.String("stage", stage.Name),
				zap.Duration("elapsed", elapsed),
				zap.Error(err),
			)
			return st, &StageError{Stage: stage.Name, Err: err}
		}
		st.Completed = append(st.Completed, stage.Name)
		logger.Info("stage done",
			zap.String("stage", stage.Name),
			zap.Duration("elapsed", elapsed),
		)
	}

	logger.Info("pipeline run finished", zap.Strings("completed", st.Completed))
	return st, nil
}

// runStage converts a panic in a stage into an error so the run reports
// which stage broke.
func runStage(ctx context.Context, stage Stage, st *State) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return stage.Run(ctx, st)
}

func (o *Orchestrator) stages(c *Components) []Stage {
	return []Stage{
		{Name: StageSource, Run: func(ctx context.Context, st *State) error {
			if c.Sourcer == nil {
				return errors.New("no sourcer configured")
			}
			cands, err := c.Sourcer.Source(ctx)
			if err != nil {
				return err
			}
			st.Candidates = append(st.Candidates, cands...)
			return nil
		}},
		{Name: StageClassify, Run: func(ctx context.Context, st *State) error {
			st.Classified = append(st.Classified, c.Classifier.Classify(ctx, st.Candidates)...)
			return nil
		}},
		{Name: StageHarvest, Run: func(ctx context.Context, st *State) error {
			stats := c.Harvester.Harvest(ctx, st.CompanyIDs())
			st.Harvest = &stats
			return nil
		}},
		{Name: StageScore, Run: func(ctx context.Context, st *State) error {
			stats, err := c.Scorer.ScorePending(ctx)
			st.Score = &stats
			return err
		}},
		{Name: StageNotify, Run: func(ctx context.Context, st *State) error {
			res, err := c.Emitter.Emit(ctx, o.now())
			if err != nil {
				return err
			}
			st.Digest = &res
			o.metrics.DigestEmitted(len(res.Rows))
			if !res.Created || c.Notifier == nil {
				return nil
			}
			if err := c.Notifier.NotifyDigest(ctx, res); err != nil {
				o.logger.Warn("digest notification failed",
					zap.String("run_id", st.RunID),
					zap.String("path", res.Path),
					zap.Error(err),
				)
			}
			return nil
		}},
	}
}
