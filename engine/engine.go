package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/ledgerq/blobstore"
	"github.com/hupe1980/ledgerq/codec"
	"github.com/hupe1980/ledgerq/internal/cache"
	"github.com/hupe1980/ledgerq/internal/dirlock"
	"github.com/hupe1980/ledgerq/internal/snapshot"
	"github.com/hupe1980/ledgerq/internal/wal"
	"github.com/hupe1980/ledgerq/resource"
)

// CheckpointDir is the subdirectory of the data dir used as the default
// checkpoint store.
const CheckpointDir = "store"

// Engine is the account query engine.
type Engine struct {
	dir   string
	store blobstore.BlobStore
	lock  *dirlock.Lock
	wal   *wal.WAL

	walOptions WALOptions
	codec      codec.Codec

	coord *snapshot.Coordinator

	rc        *resource.Controller
	cache     *cache.LRU
	cacheSize int64

	policy       CompactionPolicy
	compactionCh chan struct{}

	checkpointEvery    int
	checkpointInterval time.Duration
	keepCheckpoints    int
	closeCheckpoint    bool
	checkpointCh       chan struct{}
	checkpointMu       sync.Mutex
	writesSince        atomic.Int64
	checkpointLSN      atomic.Uint64
	hasCheckpoint      atomic.Bool

	asyncRecovery bool
	readOnly      bool
	readyCh       chan struct{}
	recoverErr    error // written before readyCh is closed

	metrics MetricsObserver
	logger  *slog.Logger
	now     func() time.Time

	closeCh chan struct{}
	closed  atomic.Bool
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// Open creates an engine and recovers its state. Without WithDataDir or
// WithBlobStore the engine is purely in-memory.
func Open(ctx context.Context, opts ...Option) (*Engine, error) {
	e := &Engine{
		walOptions:      DefaultWALOptions(),
		codec:           codec.Default,
		cacheSize:       DefaultCacheSize,
		policy:          DefaultCompactionPolicy,
		compactionCh:    make(chan struct{}, 1),
		keepCheckpoints: DefaultKeepCheckpoints,
		closeCheckpoint: true,
		checkpointCh:    make(chan struct{}, 1),
		readyCh:         make(chan struct{}),
		metrics:         NoopMetricsObserver{},
		logger:          slog.New(slog.DiscardHandler),
		now:             time.Now,
		closeCh:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.readOnly && e.store == nil {
		if e.dir == "" {
			return nil, fmt.Errorf("%w: read-only engine needs a blob store or data dir", ErrInvalidArgument)
		}
		e.store = blobstore.NewLocalStore(filepath.Join(e.dir, CheckpointDir))
	}

	if e.dir != "" && !e.readOnly {
		lock, err := dirlock.Acquire(e.dir)
		if err != nil {
			return nil, err
		}
		e.lock = lock

		if e.store == nil {
			e.store = blobstore.NewLocalStore(filepath.Join(e.dir, CheckpointDir))
		}

		w, err := wal.Open(e.walOptions.apply(e.dir))
		if err != nil {
			_ = lock.Release()
			return nil, fmt.Errorf("open WAL: %w", err)
		}
		e.wal = w
		if w.Torn() {
			e.logger.WarnContext(ctx, "discarded torn WAL tail", "path", w.Path())
		}
	}

	e.coord = snapshot.New(nil)
	if e.cacheSize > 0 {
		e.cache = cache.New(e.cacheSize, e.rc)
	}

	e.ctx, e.cancel = context.WithCancel(context.Background())

	if e.asyncRecovery {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.finishRecovery(e.recover(e.ctx))
		}()
	} else {
		if err := e.recover(ctx); err != nil {
			e.cancel()
			_ = e.releaseResources()
			return nil, err
		}
		e.finishRecovery(nil)
	}

	e.wg.Add(2)
	go e.runCompactionLoop()
	go e.runCheckpointLoop()

	return e, nil
}

func (e *Engine) finishRecovery(err error) {
	e.recoverErr = err
	close(e.readyCh)
}

// Ready reports whether recovery finished successfully.
func (e *Engine) Ready() bool {
	select {
	case <-e.readyCh:
		return e.recoverErr == nil
	default:
		return false
	}
}

// WaitReady blocks until recovery finishes. It returns ErrUnavailable
// wrapping the cause if recovery failed.
func (e *Engine) WaitReady(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}
	select {
	case <-e.readyCh:
		if e.recoverErr != nil {
			return fmt.Errorf("%w: %w", ErrUnavailable, e.recoverErr)
		}
		return nil
	case <-e.closeCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// checkAvailable returns nil if the engine can serve requests.
func (e *Engine) checkAvailable(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-e.readyCh:
		if e.recoverErr != nil {
			return fmt.Errorf("%w: %w", ErrUnavailable, e.recoverErr)
		}
		return nil
	default:
		return fmt.Errorf("%w: %w", ErrUnavailable, ErrRecovering)
	}
}

func (e *Engine) checkWritable(ctx context.Context) error {
	if err := e.checkAvailable(ctx); err != nil {
		return err
	}
	if e.readOnly {
		return ErrReadOnly
	}
	return nil
}

// LSN returns the commit sequence number of the current version.
func (e *Engine) LSN() uint64 {
	return e.coord.Current().LSN()
}

// Stats holds engine statistics.
type Stats struct {
	Ready             bool
	ReadOnly          bool
	LSN               uint64
	Accounts          int
	Tombstones        int
	ActiveSnapshots   int
	InFlightQueries   int64
	WALSizeBytes      int64
	LastCheckpointLSN uint64
	CacheHits         int64
	CacheMisses       int64
	CacheEntries      int
	CacheBytes        int64
}

// Stats returns the current engine statistics.
func (e *Engine) Stats() Stats {
	v := e.coord.Current()
	st := Stats{
		Ready:             e.Ready(),
		ReadOnly:          e.readOnly,
		LSN:               v.LSN(),
		Accounts:          v.Len(),
		Tombstones:        v.Tombstones(),
		ActiveSnapshots:   e.coord.Active(),
		InFlightQueries:   e.rc.InFlight(),
		LastCheckpointLSN: e.checkpointLSN.Load(),
	}
	if e.wal != nil {
		if n, err := e.wal.Size(); err == nil {
			st.WALSizeBytes = n
		}
	}
	if e.cache != nil {
		cs := e.cache.Stats()
		st.CacheHits = cs.Hits
		st.CacheMisses = cs.Misses
		st.CacheEntries = cs.Entries
		st.CacheBytes = cs.Bytes
	}
	return st
}

// Close stops background work, writes a final checkpoint when a store is
// configured and the engine is writable and ready, and releases the WAL
// and the data directory.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	close(e.closeCh)
	e.cancel()
	e.wg.Wait()

	var errs []error
	if e.closeCheckpoint && e.store != nil && !e.readOnly && e.Ready() {
		if _, err := e.checkpoint(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("final checkpoint: %w", err))
		}
	}
	if err := e.releaseResources(); err != nil {
		errs = append(errs, err)
	}
	if e.cache != nil {
		e.cache.Purge()
	}
	return errors.Join(errs...)
}

func (e *Engine) releaseResources() error {
	var errs []error
	if e.wal != nil {
		errs = append(errs, e.wal.Close())
	}
	if e.lock != nil {
		errs = append(errs, e.lock.Release())
	}
	return errors.Join(errs...)
}

// afterWrite signals the background loops.
func (e *Engine) afterWrite() {
	select {
	case e.compactionCh <- struct{}{}:
	default:
	}
	if e.checkpointEvery > 0 && e.store != nil {
		if e.writesSince.Add(1) >= int64(e.checkpointEvery) {
			select {
			case e.checkpointCh <- struct{}{}:
			default:
			}
		}
	}
}

func (e *Engine) runCompactionLoop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.closeCh:
			return
		case <-e.compactionCh:
			e.metrics.OnQueueDepth("compaction_queue", len(e.compactionCh))
			e.checkCompaction()
		}
	}
}

func (e *Engine) checkCompaction() {
	if !e.Ready() {
		return
	}
	v := e.coord.Current()
	if e.cache != nil {
		// Entries of older versions are unreachable for new snapshots.
		e.cache.InvalidateBefore(v.LSN())
	}
	if !e.policy.ShouldCompact(v.Len(), v.Tombstones()) {
		return
	}
	if !e.rc.TryAcquireBackground() {
		return
	}
	defer e.rc.ReleaseBackground()

	if _, err := e.compact(); err != nil {
		e.logger.Error("background compaction failed", "error", err)
	}
}

func (e *Engine) runCheckpointLoop() {
	defer e.wg.Done()

	var tick <-chan time.Time
	if e.checkpointInterval > 0 && e.store != nil && !e.readOnly {
		t := time.NewTicker(e.checkpointInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-e.closeCh:
			return
		case <-e.checkpointCh:
		case <-tick:
		}
		e.metrics.OnQueueDepth("checkpoint_queue", len(e.checkpointCh))
		if !e.Ready() || e.store == nil || e.readOnly {
			continue
		}
		if _, err := e.checkpoint(e.ctx); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Error("background checkpoint failed", "error", err)
		}
	}
}
