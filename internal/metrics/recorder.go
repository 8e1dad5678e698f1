package metrics

import "time"

// ResultLabel enumerates per-repository outcomes for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
)

// Recorder defines observability hooks for runs and their repositories.
type Recorder interface {
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome string) // outcome: succeeded|partial|failed
	ObserveStageDuration(stage string, d time.Duration)
	IncRepositoryResult(repo string, result ResultLabel)
	AddFilesPublished(repo string, n int)
	AddBrokenLinks(repo string, n int)
	IncRetry(operation string)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncRunOutcome(string)                       {}
func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncRepositoryResult(string, ResultLabel)    {}
func (NoopRecorder) AddFilesPublished(string, int)              {}
func (NoopRecorder) AddBrokenLinks(string, int)                 {}
func (NoopRecorder) IncRetry(string)                            {}
