package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveRun(StatusSuccess)
	m.ObserveRun(StatusSuccess)
	m.ObserveRun(StatusPartial)
	m.ObserveChain("osmosis", 120*time.Millisecond, 40)
	m.ObserveChain("osmosis", 80*time.Millisecond, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues(StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(StatusPartial)))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.votesProcessed.WithLabelValues("osmosis")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.chainDuration))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRun(StatusFailed)
		m.ObserveChain("juno", time.Second, 1)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveRun(StatusFailed)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `govlens_precompute_runs_total{status="failed"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
