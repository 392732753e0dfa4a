package engine

import "time"

// MetricsObserver defines the interface for observing engine events.
type MetricsObserver interface {
	// OnRegister is called after each Register.
	OnRegister(duration time.Duration, err error)

	// OnUnregister is called after each Unregister.
	OnUnregister(duration time.Duration, err error)

	// OnQuery is called after each query. access names the plan's access path.
	OnQuery(access string, duration time.Duration, results int, cached bool, err error)

	// OnCompaction is called when a compaction completes.
	OnCompaction(duration time.Duration, removed int, err error)

	// OnCheckpoint is called when a checkpoint completes.
	OnCheckpoint(duration time.Duration, records int, err error)

	// OnRecovery is called once recovery finishes.
	OnRecovery(duration time.Duration, replayed int, err error)

	// OnQueueDepth reports the depth of a background queue.
	OnQueueDepth(name string, depth int)
}

// NoopMetricsObserver is a no-op implementation of MetricsObserver.
type NoopMetricsObserver struct{}

func (NoopMetricsObserver) OnRegister(time.Duration, error)                 {}
func (NoopMetricsObserver) OnUnregister(time.Duration, error)               {}
func (NoopMetricsObserver) OnQuery(string, time.Duration, int, bool, error) {}
func (NoopMetricsObserver) OnCompaction(time.Duration, int, error)          {}
func (NoopMetricsObserver) OnCheckpoint(time.Duration, int, error)          {}
func (NoopMetricsObserver) OnRecovery(time.Duration, int, error)            {}
func (NoopMetricsObserver) OnQueueDepth(string, int)                        {}
