package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// OutcomeLabel enumerates final run outcomes.
type OutcomeLabel string

const (
	OutcomeSuccess  OutcomeLabel = "success"
	OutcomeFailed   OutcomeLabel = "failed"
	OutcomeLocked   OutcomeLabel = "locked"
	OutcomeCanceled OutcomeLabel = "canceled"
)

// Mapping kinds used for the written counter.
const (
	KindPage  = "page"
	KindAsset = "asset"
)

// Recorder defines observability hooks for snapshot runs. Implementations must be
// safe for concurrent use; the write pool calls them from several goroutines.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome OutcomeLabel)
	IncWritten(kind string, bytes int64)
	IncFetchResult(success bool)
	IncBrokenLinks(n int)
	SetWriteConcurrency(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncRunOutcome(OutcomeLabel)                 {}
func (NoopRecorder) IncWritten(string, int64)                   {}
func (NoopRecorder) IncFetchResult(bool)                        {}
func (NoopRecorder) IncBrokenLinks(int)                         {}
func (NoopRecorder) SetWriteConcurrency(int)                    {}
