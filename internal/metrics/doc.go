// Package metrics provides run metrics for sitesnap.
//
// Components receive a Recorder through dependency injection. NoopRecorder is
// the default, so callers never need nil checks:
//
//	orch := snapshot.New(cfg, snapshot.WithRecorder(metrics.NoopRecorder{}))
//
// The daemon swaps in a PrometheusRecorder and serves its registry on
// /metrics through HTTPHandler.
package metrics
