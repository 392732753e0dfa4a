// Package resource implements admission control for queries and background work.
//
// The Controller governs three resources:
//
//   - Queries: a weighted semaphore bounds in-flight queries and an optional
//     token bucket bounds the query rate
//   - Memory: fail-fast accounting used by the result cache
//   - Background: a semaphore for compaction and checkpoint jobs
//
// # Queries
//
//	rc := resource.NewController(resource.Config{
//	    MaxConcurrentQueries: 64,
//	    QueriesPerSecond:     500,
//	})
//
//	release, err := rc.AcquireQuery(ctx)
//	if err != nil {
//	    return err // ctx ended while waiting
//	}
//	defer release()
//
// AcquireQuery waits on ctx. TryAcquireQuery never blocks and reports
// ErrBusy or ErrRateLimited instead.
//
// # Memory
//
//	if err := rc.AcquireMemory(n); err != nil {
//	    // ErrMemoryLimitExceeded - caller decides whether to skip or evict
//	}
//	defer rc.ReleaseMemory(n)
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully; they become no-ops.
package resource
