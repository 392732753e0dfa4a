package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

var (
	// ErrMemoryLimitExceeded is returned when memory limit would be exceeded.
	ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

	// ErrBusy is returned by TryAcquireQuery when all query slots are taken.
	ErrBusy = errors.New("too many concurrent queries")

	// ErrRateLimited is returned by TryAcquireQuery when the query rate is exhausted.
	ErrRateLimited = errors.New("query rate limit exceeded")
)

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for managed memory.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// MaxConcurrentQueries bounds in-flight queries. If 0, unlimited.
	MaxConcurrentQueries int64

	// QueriesPerSecond is the sustained query rate. If 0, unlimited.
	QueriesPerSecond float64

	// QueryBurst is the token bucket size. Defaults to max(1, QueriesPerSecond).
	QueryBurst int

	// MaxBackgroundWorkers is the maximum number of concurrent background jobs.
	// If 0, defaults to 1.
	MaxBackgroundWorkers int64
}

// Controller manages query admission, memory and background concurrency.
type Controller struct {
	cfg Config

	// Memory
	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	// Queries
	querySem     *semaphore.Weighted // nil if unlimited
	queryLimiter *rate.Limiter       // nil if unlimited
	inFlight     atomic.Int64

	// Background
	bgSem *semaphore.Weighted
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxBackgroundWorkers <= 0 {
		cfg.MaxBackgroundWorkers = 1
	}

	c := &Controller{
		cfg:   cfg,
		bgSem: semaphore.NewWeighted(cfg.MaxBackgroundWorkers),
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.MaxConcurrentQueries > 0 {
		c.querySem = semaphore.NewWeighted(cfg.MaxConcurrentQueries)
	}

	if cfg.QueriesPerSecond > 0 {
		burst := cfg.QueryBurst
		if burst <= 0 {
			burst = max(1, int(cfg.QueriesPerSecond))
		}
		c.queryLimiter = rate.NewLimiter(rate.Limit(cfg.QueriesPerSecond), burst)
	}

	return c
}

// Config returns the effective configuration.
func (c *Controller) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.cfg
}

// AcquireQuery waits for a rate token and a query slot. The returned release
// function must be called exactly once when the query finishes.
func (c *Controller) AcquireQuery(ctx context.Context) (func(), error) {
	if c == nil {
		return func() {}, nil
	}
	if c.queryLimiter != nil {
		if err := c.queryLimiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
	}
	if c.querySem != nil {
		if err := c.querySem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}
	return c.admit(), nil
}

// TryAcquireQuery is the non-blocking form of AcquireQuery.
func (c *Controller) TryAcquireQuery() (func(), error) {
	if c == nil {
		return func() {}, nil
	}
	if c.querySem != nil && !c.querySem.TryAcquire(1) {
		return nil, ErrBusy
	}
	if c.queryLimiter != nil && !c.queryLimiter.Allow() {
		if c.querySem != nil {
			c.querySem.Release(1)
		}
		return nil, ErrRateLimited
	}
	return c.admit(), nil
}

func (c *Controller) admit() func() {
	c.inFlight.Add(1)
	var once atomic.Bool
	return func() {
		if !once.CompareAndSwap(false, true) {
			return
		}
		c.inFlight.Add(-1)
		if c.querySem != nil {
			c.querySem.Release(1)
		}
	}
}

// InFlight returns the number of admitted, unreleased queries.
func (c *Controller) InFlight() int64 {
	if c == nil {
		return 0
	}
	return c.inFlight.Load()
}

// AcquireMemory attempts to reserve memory.
// Returns ErrMemoryLimitExceeded if limit would be exceeded.
// Non-blocking - callers control retry/backoff policy.
func (c *Controller) AcquireMemory(bytes int64) error {
	if !c.TryAcquireMemory(bytes) {
		return ErrMemoryLimitExceeded
	}
	return nil
}

// TryAcquireMemory reports whether bytes could be reserved.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}
	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return false
	}
	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured memory limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// AcquireBackground reserves a background worker slot.
// Blocks if all slots are busy.
func (c *Controller) AcquireBackground(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.bgSem.Acquire(ctx, 1)
}

// TryAcquireBackground attempts to reserve a background worker slot without blocking.
func (c *Controller) TryAcquireBackground() bool {
	if c == nil {
		return true
	}
	return c.bgSem.TryAcquire(1)
}

// ReleaseBackground releases a background worker slot.
func (c *Controller) ReleaseBackground() {
	if c == nil {
		return
	}
	c.bgSem.Release(1)
}
