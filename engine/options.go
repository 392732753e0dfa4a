package engine

import (
	"log/slog"
	"time"

	"github.com/hupe1980/ledgerq/blobstore"
	"github.com/hupe1980/ledgerq/codec"
	"github.com/hupe1980/ledgerq/internal/fs"
	"github.com/hupe1980/ledgerq/internal/wal"
	"github.com/hupe1980/ledgerq/resource"
)

const (
	// DefaultCacheSize is the default query result cache capacity in bytes.
	DefaultCacheSize = 32 << 20

	// DefaultKeepCheckpoints is the number of checkpoints retained.
	DefaultKeepCheckpoints = 2
)

// WALOptions configures the write-ahead log.
type WALOptions struct {
	// Compress enables zstd compression of the record stream.
	Compress bool
	// CompressionLevel is the zstd level. 0 keeps the default.
	CompressionLevel int
	// Sync fsyncs the log after every record.
	Sync bool

	fs fs.FileSystem
}

// DefaultWALOptions returns the default WAL options (uncompressed, synced).
func DefaultWALOptions() WALOptions {
	return WALOptions{Sync: true}
}

func (o WALOptions) apply(dir string) func(*wal.Options) {
	return func(w *wal.Options) {
		w.Dir = dir
		w.FS = o.fs
		w.Compress = o.Compress
		if o.CompressionLevel > 0 {
			w.CompressionLevel = o.CompressionLevel
		}
		if o.Sync {
			w.Durability = wal.DurabilitySync
		} else {
			w.Durability = wal.DurabilityAsync
		}
	}
}

// Option defines a configuration option for the Engine.
type Option func(*Engine)

// WithDataDir makes the engine durable: the directory holds the WAL and,
// unless WithBlobStore is given, the checkpoints. The directory is locked
// exclusively while the engine is open.
func WithDataDir(dir string) Option {
	return func(e *Engine) {
		e.dir = dir
	}
}

// WithBlobStore sets the store checkpoints are written to and recovered from.
func WithBlobStore(st blobstore.BlobStore) Option {
	return func(e *Engine) {
		if st != nil {
			e.store = st
		}
	}
}

// WithWALOptions sets the WAL options.
func WithWALOptions(opts WALOptions) Option {
	return func(e *Engine) {
		e.walOptions = opts
	}
}

// WithLogger sets the logger for the engine.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetricsObserver sets the metrics observer for the engine.
func WithMetricsObserver(observer MetricsObserver) Option {
	return func(e *Engine) {
		if observer != nil {
			e.metrics = observer
		}
	}
}

// WithResourceController sets the resource controller for the engine.
func WithResourceController(rc *resource.Controller) Option {
	return func(e *Engine) {
		e.rc = rc
	}
}

// WithCompactionPolicy sets the compaction policy used by the background loop.
func WithCompactionPolicy(policy CompactionPolicy) Option {
	return func(e *Engine) {
		if policy != nil {
			e.policy = policy
		}
	}
}

// WithCheckpointEvery triggers a background checkpoint after n writes.
// 0 disables write-triggered checkpoints.
func WithCheckpointEvery(n int) Option {
	return func(e *Engine) {
		e.checkpointEvery = n
	}
}

// WithCheckpointInterval triggers a background checkpoint periodically.
func WithCheckpointInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.checkpointInterval = d
	}
}

// WithKeepCheckpoints sets how many checkpoints are retained.
func WithKeepCheckpoints(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.keepCheckpoints = n
		}
	}
}

// WithCacheSize sets the query result cache capacity in bytes.
// 0 disables the cache.
func WithCacheSize(bytes int64) Option {
	return func(e *Engine) {
		e.cacheSize = bytes
	}
}

// WithCodec sets the metadata codec used by the WAL and checkpoints.
func WithCodec(c codec.Codec) Option {
	return func(e *Engine) {
		if c != nil {
			e.codec = c
		}
	}
}

// WithAsyncRecovery makes Open return before recovery finishes.
// Calls fail with ErrUnavailable until the engine is ready.
func WithAsyncRecovery() Option {
	return func(e *Engine) {
		e.asyncRecovery = true
	}
}

// WithReadOnly opens the engine as a read-only replica of the blob store's
// latest checkpoint. No WAL is opened and writes fail with ErrReadOnly.
// Refresh picks up newer checkpoints.
func WithReadOnly() Option {
	return func(e *Engine) {
		e.readOnly = true
	}
}

// WithoutCloseCheckpoint skips the checkpoint Close writes by default.
func WithoutCloseCheckpoint() Option {
	return func(e *Engine) {
		e.closeCheckpoint = false
	}
}

// WithClock overrides the registration timestamp source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// QueryOption configures a single query.
type QueryOption func(*queryOptions)

type queryOptions struct {
	offset  int
	limit   int
	noCache bool
}

// WithOffset skips the first n results.
func WithOffset(n int) QueryOption {
	return func(o *queryOptions) {
		o.offset = n
	}
}

// WithLimit returns at most n results. 0 means unlimited.
func WithLimit(n int) QueryOption {
	return func(o *queryOptions) {
		o.limit = n
	}
}

// WithoutCache bypasses the result cache.
func WithoutCache() QueryOption {
	return func(o *queryOptions) {
		o.noCache = true
	}
}
