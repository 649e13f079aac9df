package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("enumerate", 150*time.Millisecond)
	pr.IncStageResult("enumerate", ResultSuccess)
	pr.ObserveRunDuration(2 * time.Second)
	pr.IncRunOutcome(OutcomeSuccess)
	pr.IncWritten(KindPage, 512)
	pr.IncWritten(KindPage, 0)
	pr.IncWritten(KindAsset, 64)
	pr.IncFetchResult(true)
	pr.IncFetchResult(false)
	pr.IncBrokenLinks(3)
	pr.SetWriteConcurrency(8)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)

	assert.InDelta(t, 2, testutil.ToFloat64(pr.written.WithLabelValues(KindPage)), 0)
	assert.InDelta(t, 512, testutil.ToFloat64(pr.writtenBytes.WithLabelValues(KindPage)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.fetchResults.WithLabelValues("failed")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(pr.brokenLinks), 0)
	assert.InDelta(t, 8, testutil.ToFloat64(pr.writeConcurrency), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.runOutcome.WithLabelValues(string(OutcomeSuccess))), 0)
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.IncRunOutcome(OutcomeFailed)
		pr.IncWritten(KindAsset, 1)
		pr.SetWriteConcurrency(1)
	})
}

func TestHTTPHandlerServesRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncRunOutcome(OutcomeLocked)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `sitesnap_run_outcomes_total{outcome="locked"} 1`), body)
}
