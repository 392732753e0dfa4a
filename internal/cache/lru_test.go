package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ledgerq/model"
	"github.com/hupe1980/ledgerq/resource"
)

func result(ids ...string) []*model.Record {
	out := make([]*model.Record, len(ids))
	for i, id := range ids {
		out[i] = &model.Record{ID: model.MustParseAccountID(id), Row: model.RowID(i)}
	}
	return out
}

func TestLRU_GetSet(t *testing.T) {
	c := New(1<<20, nil)
	k := Key{LSN: 1, Plan: `exact("a@b")`}

	_, ok := c.Get(k)
	assert.False(t, ok)

	r := result("a@b")
	c.Set(k, r)
	got, ok := c.Get(k)
	require.True(t, ok)
	assert.Equal(t, r, got)

	// Different LSN is a different key.
	_, ok = c.Get(Key{LSN: 2, Plan: k.Plan})
	assert.False(t, ok)

	st := c.Stats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(2), st.Misses)
	assert.Equal(t, 1, st.Entries)
	assert.Equal(t, SizeOf(r), st.Bytes)
}

func TestLRU_Eviction(t *testing.T) {
	one := SizeOf(result("x@y"))
	c := New(2*one, nil)

	k1, k2, k3 := Key{LSN: 1, Plan: "a"}, Key{LSN: 1, Plan: "b"}, Key{LSN: 1, Plan: "c"}
	c.Set(k1, result("x@y"))
	c.Set(k2, result("x@y"))
	_, _ = c.Get(k1) // k2 is now least recent
	c.Set(k3, result("x@y"))

	_, ok := c.Get(k2)
	assert.False(t, ok)
	_, ok = c.Get(k1)
	assert.True(t, ok)
	_, ok = c.Get(k3)
	assert.True(t, ok)
	assert.Equal(t, 2*one, c.Size())
}

func TestLRU_TooLarge(t *testing.T) {
	c := New(10, nil)
	c.Set(Key{Plan: "a"}, result("a@b"))
	assert.Zero(t, c.Len())
}

func TestLRU_ResourceController(t *testing.T) {
	r := result("a@b")
	rc := resource.NewController(resource.Config{MemoryLimitBytes: SizeOf(r)})
	c := New(1<<20, rc)

	c.Set(Key{Plan: "a"}, r)
	assert.Equal(t, SizeOf(r), rc.MemoryUsage())

	// Controller refuses, entry is skipped.
	c.Set(Key{Plan: "b"}, r)
	assert.Equal(t, 1, c.Len())

	c.Purge()
	assert.Zero(t, rc.MemoryUsage())
}

func TestLRU_InvalidateBefore(t *testing.T) {
	c := New(1<<20, nil)
	for lsn := uint64(1); lsn <= 5; lsn++ {
		c.Set(Key{LSN: lsn, Plan: "p"}, result("a@b"))
	}
	assert.Equal(t, 3, c.InvalidateBefore(4))
	assert.Equal(t, 2, c.Len())
}

func TestLRU_DoCoalesces(t *testing.T) {
	c := New(1<<20, nil)
	k := Key{LSN: 7, Plan: "scan"}

	var calls atomic.Int32
	gate := make(chan struct{})
	fn := func() ([]*model.Record, error) {
		calls.Add(1)
		<-gate
		return result("a@b", "c@d"), nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, _, err := c.Do(context.Background(), k, fn)
			assert.NoError(t, err)
			assert.Len(t, got, 2)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())

	// Now cached.
	_, cached, err := c.Do(context.Background(), k, fn)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLRU_DoError(t *testing.T) {
	c := New(1<<20, nil)
	boom := errors.New("boom")

	_, _, err := c.Do(context.Background(), Key{Plan: "x"}, func() ([]*model.Record, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, c.Len())
}

func TestLRU_DoContext(t *testing.T) {
	c := New(1<<20, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gate := make(chan struct{})
	defer close(gate)
	_, _, err := c.Do(ctx, Key{Plan: "slow"}, func() ([]*model.Record, error) {
		<-gate
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKey_String(t *testing.T) {
	k := Key{LSN: 3, Plan: `prefix("al")`, Offset: 10, Limit: 5}
	assert.Equal(t, `3|10|5|prefix("al")`, k.String())
	assert.NotEqual(t, k.String(), fmt.Sprint(Key{LSN: 3, Plan: `prefix("al")`}))
}
