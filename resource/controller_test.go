package resource

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.AcquireMemory(50))
	require.NoError(t, c.AcquireMemory(40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	// Limit exceeded
	assert.ErrorIs(t, c.AcquireMemory(20), ErrMemoryLimitExceeded)
	assert.Equal(t, int64(90), c.MemoryUsage())

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())

	assert.True(t, c.TryAcquireMemory(20))
	assert.Equal(t, int64(60), c.MemoryUsage())
	assert.Equal(t, int64(100), c.MemoryLimit())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.AcquireMemory(1000))
	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
}

func TestController_NilChecks(t *testing.T) {
	var c *Controller
	assert.NoError(t, c.AcquireMemory(10))
	assert.True(t, c.TryAcquireMemory(10))
	c.ReleaseMemory(10)

	release, err := c.AcquireQuery(context.Background())
	require.NoError(t, err)
	release()
	assert.Zero(t, c.InFlight())
	assert.True(t, c.TryAcquireBackground())
}

func TestController_QuerySlots(t *testing.T) {
	c := NewController(Config{MaxConcurrentQueries: 2})
	ctx := context.Background()

	r1, err := c.AcquireQuery(ctx)
	require.NoError(t, err)
	r2, err := c.AcquireQuery(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.InFlight())

	_, err = c.TryAcquireQuery()
	assert.ErrorIs(t, err, ErrBusy)

	tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = c.AcquireQuery(tctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	r1()
	r1() // idempotent
	assert.Equal(t, int64(1), c.InFlight())

	r3, err := c.TryAcquireQuery()
	require.NoError(t, err)
	r2()
	r3()
	assert.Zero(t, c.InFlight())
}

func TestController_QueryRate(t *testing.T) {
	c := NewController(Config{QueriesPerSecond: 1, QueryBurst: 1, MaxConcurrentQueries: 4})

	r, err := c.TryAcquireQuery()
	require.NoError(t, err)
	r()

	_, err = c.TryAcquireQuery()
	assert.ErrorIs(t, err, ErrRateLimited)

	// The slot taken before the rate check must be returned.
	for range 4 {
		require.True(t, c.querySem.TryAcquire(1))
	}
}

func TestController_AcquireQueryConcurrent(t *testing.T) {
	c := NewController(Config{MaxConcurrentQueries: 3})
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		peak int64
	)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := c.AcquireQuery(ctx)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			peak = max(peak, c.InFlight())
			mu.Unlock()
			time.Sleep(time.Millisecond)
			release()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, int64(3))
	assert.Zero(t, c.InFlight())
}

func TestController_Background(t *testing.T) {
	c := NewController(Config{MaxBackgroundWorkers: 1})
	require.NoError(t, c.AcquireBackground(context.Background()))

	assert.False(t, c.TryAcquireBackground())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, c.AcquireBackground(ctx))

	c.ReleaseBackground()
	assert.True(t, c.TryAcquireBackground())
}
