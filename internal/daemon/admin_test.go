package daemon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitesnap/internal/config"
	"git.home.luguber.info/inful/sitesnap/internal/metrics"
	"git.home.luguber.info/inful/sitesnap/internal/snapshot"
)

type okRunner struct{}

func (okRunner) Run(context.Context) (*snapshot.Result, error) {
	return &snapshot.Result{RunID: "ok"}, nil
}

func newAdminFixture(t *testing.T) (*Daemon, *httptest.Server, *prom.Registry) {
	t.Helper()
	reg := prom.NewRegistry()
	admin := NewAdminServer("127.0.0.1:0", reg)
	d, err := New(config.DaemonConfig{}, okRunner{}, WithAdmin(admin), WithRunOnStart(false))
	require.NoError(t, err)
	srv := httptest.NewServer(admin.Handler())
	t.Cleanup(srv.Close)
	return d, srv, reg
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func TestHealthAndStatusEndpoints(t *testing.T) {
	d, srv, _ := newAdminFixture(t)

	var health HealthResponse
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", &health))
	assert.Equal(t, HealthStatusHealthy, health.Status)

	d.status.begin(ReasonAdmin, time.Now())
	d.status.end(nil, &snapshot.RunError{Code: 9, Stage: snapshot.StageFinalize, Message: "push rejected"}, time.Now())

	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", &health))
	assert.Equal(t, HealthStatusDegraded, health.Status)

	var status Snapshot
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/status", &status))
	assert.Equal(t, 1, status.Runs)
	assert.Equal(t, 1, status.Failures)
	require.NotNil(t, status.LastRun)
	assert.Equal(t, "push rejected", status.LastRun.Message)
}

func TestTriggerEndpoint(t *testing.T) {
	_, srv, _ := newAdminFixture(t)

	resp, err := http.Get(srv.URL + "/trigger")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	var body map[string]bool
	for i, want := range []bool{true, false} {
		resp, err := http.Post(srv.URL+"/trigger", "application/json", nil)
		require.NoError(t, err)
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		assert.Equal(t, want, body["queued"], "request %d", i)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, srv, reg := newAdminFixture(t)
	metrics.NewPrometheusRecorder(reg).IncRunOutcome(metrics.OutcomeSuccess)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "sitesnap_run_outcomes_total"))
}

func TestDaemonServesAdminWhileRunning(t *testing.T) {
	reg := prom.NewRegistry()
	admin := NewAdminServer("127.0.0.1:0", reg)
	d, err := New(config.DaemonConfig{}, okRunner{}, WithAdmin(admin))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return d.Status().Snapshot(time.Now()).Runs == 1 }, 5*time.Second, 10*time.Millisecond)

	var status Snapshot
	assert.Equal(t, http.StatusOK, getJSON(t, "http://"+admin.Addr()+"/status", &status))
	assert.Equal(t, "ok", status.LastRun.RunID)

	cancel()
	require.NoError(t, <-done)
}
