package ledgerq

import (
	"context"
	"time"

	"github.com/hupe1980/ledgerq/blobstore"
	"github.com/hupe1980/ledgerq/codec"
	"github.com/hupe1980/ledgerq/engine"
	"github.com/hupe1980/ledgerq/resource"
)

// Builder is an immutable fluent builder for engines.
// Each method returns a new builder with the updated configuration.
type Builder struct {
	dir      string
	store    blobstore.BlobStore
	readOnly bool

	wal       engine.WALOptions
	logger    *Logger
	metrics   engine.MetricsObserver
	limits    *resource.Config
	codec     codec.Codec
	cacheSize *int64
	policy    engine.CompactionPolicy
	asyncOpen bool

	checkpointEvery    int
	checkpointInterval time.Duration
	keepCheckpoints    int
}

// InMemory returns a builder for a purely in-memory engine.
func InMemory() Builder {
	return Builder{wal: engine.DefaultWALOptions()}
}

// Local returns a builder for an engine persisted in dir.
//
// Example:
//
//	db, err := ledgerq.Local("./data").
//	    WAL(func(o *engine.WALOptions) { o.Compress = true }).
//	    CheckpointEvery(1000).
//	    Build(ctx)
func Local(dir string) Builder {
	return Builder{dir: dir, wal: engine.DefaultWALOptions()}
}

// Remote returns a builder for an engine that checkpoints into store.
// Without Dir there is no WAL: writes since the last checkpoint are lost
// on a crash.
func Remote(store blobstore.BlobStore) Builder {
	return Builder{store: store, wal: engine.DefaultWALOptions()}
}

// Replica returns a builder for a read-only engine serving the latest
// checkpoint of store.
func Replica(store blobstore.BlobStore) Builder {
	return Builder{store: store, readOnly: true, wal: engine.DefaultWALOptions()}
}

// Dir sets the data directory holding the WAL.
func (b Builder) Dir(dir string) Builder {
	b.dir = dir
	return b
}

// WAL adjusts the WAL options.
func (b Builder) WAL(optFns ...func(*engine.WALOptions)) Builder {
	for _, fn := range optFns {
		fn(&b.wal)
	}
	return b
}

// Logger sets the logger.
func (b Builder) Logger(l *Logger) Builder {
	b.logger = l
	return b
}

// Metrics sets the metrics observer.
func (b Builder) Metrics(m engine.MetricsObserver) Builder {
	b.metrics = m
	return b
}

// Limits enables admission control with the given resource limits.
func (b Builder) Limits(cfg resource.Config) Builder {
	b.limits = &cfg
	return b
}

// Codec sets the metadata codec.
func (b Builder) Codec(c codec.Codec) Builder {
	b.codec = c
	return b
}

// CacheSize sets the query result cache size in bytes. 0 disables it.
func (b Builder) CacheSize(bytes int64) Builder {
	b.cacheSize = &bytes
	return b
}

// Compaction sets the compaction policy.
func (b Builder) Compaction(p engine.CompactionPolicy) Builder {
	b.policy = p
	return b
}

// CheckpointEvery checkpoints after n writes.
func (b Builder) CheckpointEvery(n int) Builder {
	b.checkpointEvery = n
	return b
}

// CheckpointInterval checkpoints periodically.
func (b Builder) CheckpointInterval(d time.Duration) Builder {
	b.checkpointInterval = d
	return b
}

// KeepCheckpoints sets how many checkpoints are retained.
func (b Builder) KeepCheckpoints(n int) Builder {
	b.keepCheckpoints = n
	return b
}

// AsyncRecovery makes Build return before recovery finishes.
func (b Builder) AsyncRecovery() Builder {
	b.asyncOpen = true
	return b
}

// Options returns the engine options the builder describes.
func (b Builder) Options() []engine.Option {
	opts := []engine.Option{
		engine.WithWALOptions(b.wal),
		engine.WithCheckpointEvery(b.checkpointEvery),
		engine.WithCheckpointInterval(b.checkpointInterval),
		engine.WithKeepCheckpoints(b.keepCheckpoints),
		engine.WithMetricsObserver(b.metrics),
		engine.WithCompactionPolicy(b.policy),
		engine.WithCodec(b.codec),
		engine.WithBlobStore(b.store),
	}
	if b.dir != "" {
		opts = append(opts, engine.WithDataDir(b.dir))
	}
	if b.readOnly {
		opts = append(opts, engine.WithReadOnly())
	}
	if b.logger != nil {
		opts = append(opts, engine.WithLogger(b.logger.Logger))
	}
	if b.limits != nil {
		opts = append(opts, engine.WithResourceController(resource.NewController(*b.limits)))
	}
	if b.cacheSize != nil {
		opts = append(opts, engine.WithCacheSize(*b.cacheSize))
	}
	if b.asyncOpen {
		opts = append(opts, engine.WithAsyncRecovery())
	}
	return opts
}

// Build opens the engine.
func (b Builder) Build(ctx context.Context) (*engine.Engine, error) {
	return engine.Open(ctx, b.Options()...)
}

// MustBuild is like Build but panics on error.
func (b Builder) MustBuild(ctx context.Context) *engine.Engine {
	e, err := b.Build(ctx)
	if err != nil {
		panic(err)
	}
	return e
}
