package metrics

import "time"

// ResultLabel enumerates fetch outcomes for counters.
type ResultLabel string

const (
	ResultChanged     ResultLabel = "changed"
	ResultUnchanged   ResultLabel = "unchanged"
	ResultRateLimited ResultLabel = "rate_limited"
	ResultTransient   ResultLabel = "transient"
	ResultCanceled    ResultLabel = "canceled"
)

// PatchLabel enumerates optimistic patch outcomes.
type PatchLabel string

const (
	PatchApplied   PatchLabel = "applied"
	PatchDuplicate PatchLabel = "duplicate"
	PatchNoop      PatchLabel = "noop"
	PatchRejected  PatchLabel = "rejected"
)

// Recorder defines observability hooks for synchronization stores. Implementations
// may forward to Prometheus or drop everything (NoopRecorder).
type Recorder interface {
	IncFetch(store string, result ResultLabel)
	ObserveFetchDuration(store string, d time.Duration)
	SetBackoffDelay(store string, d time.Duration)
	SetSubscribers(store string, n int)
	IncPatch(store, kind string, result PatchLabel)
	IncBroadcast(store string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncFetch(string, ResultLabel)                 {}
func (NoopRecorder) ObserveFetchDuration(string, time.Duration)   {}
func (NoopRecorder) SetBackoffDelay(string, time.Duration)        {}
func (NoopRecorder) SetSubscribers(string, int)                   {}
func (NoopRecorder) IncPatch(string, string, PatchLabel)          {}
func (NoopRecorder) IncBroadcast(string)                          {}
