// Package snapshot publishes immutable index versions to concurrent readers.
//
// Readers pin the current version with a single atomic load and never block.
// Writers are serialized by a mutex that readers do not take; each commit
// derives the next version from the current one and swaps the pointer.
package snapshot

import (
	"sync"
	"sync/atomic"

	"github.com/hupe1980/ledgerq/internal/identindex"
)

// Coordinator owns the current index version.
type Coordinator struct {
	mu      sync.Mutex // serializes writers
	current atomic.Pointer[identindex.Version]
	active  atomic.Int64
}

// New returns a coordinator publishing v. A nil v publishes an empty index.
func New(v *identindex.Version) *Coordinator {
	if v == nil {
		v = identindex.New()
	}
	c := &Coordinator{}
	c.current.Store(v)
	return c
}

// Current returns the latest published version without pinning it.
func (c *Coordinator) Current() *identindex.Version {
	return c.current.Load()
}

// Acquire pins the current version.
func (c *Coordinator) Acquire() *Snapshot {
	c.active.Add(1)
	return &Snapshot{version: c.current.Load(), coord: c}
}

// Active returns the number of acquired, unreleased snapshots.
func (c *Coordinator) Active() int {
	return int(c.active.Load())
}

// Commit computes the next version from the current one and publishes it.
// If fn fails, nothing is published and the error is returned unchanged.
// fn may return its input to publish nothing new.
func (c *Coordinator) Commit(fn func(cur *identindex.Version) (*identindex.Version, error)) (*identindex.Version, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.current.Load()
	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	if next != cur {
		c.current.Store(next)
	}
	return next, nil
}

// Install replaces the current version unconditionally.
func (c *Coordinator) Install(v *identindex.Version) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current.Store(v)
}

// Snapshot is a pinned, immutable view of the index.
type Snapshot struct {
	version  *identindex.Version
	coord    *Coordinator
	released atomic.Bool
}

// Version returns the pinned version.
func (s *Snapshot) Version() *identindex.Version { return s.version }

// LSN returns the commit sequence number of the pinned version.
func (s *Snapshot) LSN() uint64 { return s.version.LSN() }

// Release unpins the snapshot. Subsequent calls are no-ops.
func (s *Snapshot) Release() {
	if s.released.CompareAndSwap(false, true) {
		s.coord.active.Add(-1)
	}
}

// Released reports whether Release has been called.
func (s *Snapshot) Released() bool { return s.released.Load() }
