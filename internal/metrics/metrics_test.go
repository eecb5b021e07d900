package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveStage("source", time.Second, nil)
	m.TaskStarted("harvest")()
	m.TaskFailed("harvest")
	m.CompanyAccepted()
	m.CandidateRejected("irrelevant")
	m.PostingsHarvested(3, 1)
	m.Scored(2)
	m.DigestEmitted(4)
	assert.Nil(t, m.Registry())
}

func TestObserveStage(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveStage("harvest", 2*time.Second, nil)
	m.ObserveStage("harvest", time.Second, errors.New("boom"))

	assert.Equal(t, 1, testutil.CollectAndCount(m.StageDuration, "oppradar_stage_duration_seconds"))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StageErrors.WithLabelValues("harvest")))
}

func TestTaskStartedTracksInFlight(t *testing.T) {
	m := New(nil)

	done1 := m.TaskStarted("classify")
	done2 := m.TaskStarted("classify")
	assert.Equal(t, float64(2), testutil.ToFloat64(m.InFlight.WithLabelValues("classify")))

	done1()
	done2()
	assert.Equal(t, float64(0), testutil.ToFloat64(m.InFlight.WithLabelValues("classify")))
}

func TestCounters(t *testing.T) {
	m := New(nil)

	m.CompanyAccepted()
	m.CandidateRejected("fetch")
	m.CandidateRejected("fetch")
	m.PostingsHarvested(5, 2)
	m.Scored(3)
	m.TaskFailed("harvest")
	m.DigestEmitted(7)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CompaniesAccepted))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CandidatesRejected.WithLabelValues("fetch")))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.PostingsFound))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.PostingsInserted))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.PostingsScored))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TaskFailures.WithLabelValues("harvest")))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.DigestRows))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New(nil)
	m.Scored(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "oppradar_postings_scored_total 1"))
}
