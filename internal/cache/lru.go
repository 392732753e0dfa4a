package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/ledgerq/model"
	"github.com/hupe1980/ledgerq/resource"
)

// LRU is a byte-bounded LRU of query results.
// Cached slices and the records they point to must be treated as read-only.
type LRU struct {
	mu        sync.Mutex
	capacity  int64
	size      int64
	items     map[Key]*list.Element
	evictList *list.List
	rc        *resource.Controller

	group singleflight.Group

	hits      atomic.Int64
	misses    atomic.Int64
	coalesced atomic.Int64
}

type entry struct {
	key   Key
	value []*model.Record
	size  int64
}

// New creates a new LRU cache with the given capacity in bytes.
// If rc is provided, it will be used to track memory usage.
func New(capacity int64, rc *resource.Controller) *LRU {
	return &LRU{
		capacity:  capacity,
		items:     make(map[Key]*list.Element),
		evictList: list.New(),
		rc:        rc,
	}
}

// Get returns a cached result.
func (c *LRU) Get(key Key) ([]*model.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(ent)
		return ent.Value.(*entry).value, true
	}
	c.misses.Add(1)
	return nil, false
}

// Set caches a result. Results larger than the capacity, or that the
// resource controller refuses, are not cached.
func (c *LRU) Set(key Key, recs []*model.Record) {
	size := SizeOf(recs)

	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		// Same key means same LSN and plan, hence the same result.
		c.evictList.MoveToFront(ent)
		return
	}
	if size > c.capacity {
		return
	}

	// Evict locally first so released memory is available to the controller.
	for c.size+size > c.capacity {
		ent := c.evictList.Back()
		if ent == nil {
			break
		}
		c.removeElement(ent)
	}

	if !c.rc.TryAcquireMemory(size) {
		return
	}

	element := c.evictList.PushFront(&entry{key: key, value: recs, size: size})
	c.items[key] = element
	c.size += size
}

// Do returns the cached result for key, or runs fn once for all concurrent
// callers that miss on the same key and caches its result. The boolean
// reports whether the result came from the cache or from another caller's
// run of fn.
func (c *LRU) Do(ctx context.Context, key Key, fn func() ([]*model.Record, error)) ([]*model.Record, bool, error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}

	ch := c.group.DoChan(key.String(), func() (any, error) {
		v, err := fn()
		if err != nil {
			return nil, err
		}
		c.Set(key, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		if res.Shared {
			c.coalesced.Add(1)
		}
		return res.Val.([]*model.Record), res.Shared, nil
	}
}

// InvalidateBefore removes entries computed against versions older than lsn.
func (c *LRU) InvalidateBefore(lsn uint64) int {
	return c.Invalidate(func(k Key) bool { return k.LSN < lsn })
}

// Invalidate removes entries matching the predicate.
func (c *LRU) Invalidate(predicate func(key Key) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*list.Element
	for key, element := range c.items {
		if predicate(key) {
			toRemove = append(toRemove, element)
		}
	}
	for _, e := range toRemove {
		c.removeElement(e)
	}
	return len(toRemove)
}

// Purge removes all entries.
func (c *LRU) Purge() {
	c.Invalidate(func(Key) bool { return true })
}

func (c *LRU) removeElement(e *list.Element) {
	c.evictList.Remove(e)
	kv := e.Value.(*entry)
	delete(c.items, kv.key)
	c.size -= kv.size
	c.rc.ReleaseMemory(kv.size)
}

// Len returns the number of cached results.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Size returns the current size of the cache in bytes.
func (c *LRU) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *LRU) Stats() Stats {
	c.mu.Lock()
	n, size := len(c.items), c.size
	c.mu.Unlock()
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Coalesced: c.coalesced.Load(),
		Entries:   n,
		Bytes:     size,
	}
}
