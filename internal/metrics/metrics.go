// Package metrics exposes Prometheus collectors for pipeline runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered on one registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	StageDuration      *prometheus.HistogramVec
	StageErrors        *prometheus.CounterVec
	InFlight           *prometheus.GaugeVec
	CompaniesAccepted  prometheus.Counter
	CandidatesRejected *prometheus.CounterVec
	PostingsFound      prometheus.Counter
	PostingsInserted   prometheus.Counter
	PostingsScored     prometheus.Counter
	TaskFailures       *prometheus.CounterVec
	DigestRows         prometheus.Gauge
}

// New registers the collectors on reg. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oppradar_stage_duration_seconds",
				Help:    "Wall time of each pipeline stage, labeled by stage.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 1200},
			},
			[]string{"stage"},
		),
		StageErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oppradar_stage_errors_total",
				Help: "Stage runs that aborted the pipeline, labeled by stage.",
			},
			[]string{"stage"},
		),
		InFlight: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "oppradar_tasks_in_flight",
				Help: "Tasks currently holding a pool slot, labeled by pool.",
			},
			[]string{"pool"},
		),
		CompaniesAccepted: f.NewCounter(prometheus.CounterOpts{
			Name: "oppradar_companies_accepted_total",
			Help: "Candidates classified as relevant.",
		}),
		CandidatesRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oppradar_candidates_rejected_total",
				Help: "Candidates dropped by the classifier, labeled by reason.",
			},
			[]string{"reason"},
		),
		PostingsFound: f.NewCounter(prometheus.CounterOpts{
			Name: "oppradar_postings_found_total",
			Help: "Postings returned by board extractors before filtering.",
		}),
		PostingsInserted: f.NewCounter(prometheus.CounterOpts{
			Name: "oppradar_postings_inserted_total",
			Help: "New postings written to the store.",
		}),
		PostingsScored: f.NewCounter(prometheus.CounterOpts{
			Name: "oppradar_postings_scored_total",
			Help: "Postings that received a score.",
		}),
		TaskFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oppradar_task_failures_total",
				Help: "Pool tasks that failed or panicked, labeled by pool.",
			},
			[]string{"pool"},
		),
		DigestRows: f.NewGauge(prometheus.GaugeOpts{
			Name: "oppradar_digest_rows",
			Help: "Rows in the most recent digest.",
		}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		m.StageErrors.WithLabelValues(stage).Inc()
	}
}

// TaskStarted marks a pool slot as taken and returns the func that frees it.
func (m *Metrics) TaskStarted(pool string) func() {
	if m == nil {
		return func() {}
	}
	g := m.InFlight.WithLabelValues(pool)
	g.Inc()
	return g.Dec
}

// TaskFailed counts a failed or panicked task.
func (m *Metrics) TaskFailed(pool string) {
	if m == nil {
		return
	}
	m.TaskFailures.WithLabelValues(pool).Inc()
}

// CompanyAccepted counts a relevant candidate.
func (m *Metrics) CompanyAccepted() {
	if m == nil {
		return
	}
	m.CompaniesAccepted.Inc()
}

// CandidateRejected counts a dropped candidate.
func (m *Metrics) CandidateRejected(reason string) {
	if m == nil {
		return
	}
	m.CandidatesRejected.WithLabelValues(reason).Inc()
}

// PostingsHarvested adds the per-company found and inserted counts.
func (m *Metrics) PostingsHarvested(found, inserted int) {
	if m == nil {
		return
	}
	m.PostingsFound.Add(float64(found))
	m.PostingsInserted.Add(float64(inserted))
}

// Scored adds to the scored postings counter.
func (m *Metrics) Scored(n int) {
	if m == nil {
		return
	}
	m.PostingsScored.Add(float64(n))
}

// DigestEmitted sets the row count of the latest digest.
func (m *Metrics) DigestEmitted(rows int) {
	if m == nil {
		return
	}
	m.DigestRows.Set(float64(rows))
}
