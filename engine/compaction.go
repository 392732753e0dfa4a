package engine

import (
	"context"
	"time"

	"github.com/hupe1980/ledgerq/internal/checkpoint"
	"github.com/hupe1980/ledgerq/internal/identindex"
	"github.com/hupe1980/ledgerq/model"
)

// Compact removes tombstoned entries from the index. Visible content and
// the LSN do not change. It returns the number of removed entries.
func (e *Engine) Compact(ctx context.Context) (int, error) {
	if err := e.checkAvailable(ctx); err != nil {
		return 0, err
	}
	if err := e.rc.AcquireBackground(ctx); err != nil {
		return 0, err
	}
	defer e.rc.ReleaseBackground()
	return e.compact()
}

func (e *Engine) compact() (int, error) {
	start := time.Now()
	removed := 0
	_, err := e.coord.Commit(func(cur *identindex.Version) (*identindex.Version, error) {
		removed = cur.Tombstones()
		return cur.Compact(), nil
	})
	e.metrics.OnCompaction(time.Since(start), removed, err)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		e.logger.Info("compaction completed", "removed", removed, "duration", time.Since(start))
	}
	return removed, nil
}

// Checkpoint writes the live records of the current version to the blob
// store, points CURRENT at it, truncates the WAL up to its LSN and prunes
// old checkpoints. It returns the checkpoint LSN.
func (e *Engine) Checkpoint(ctx context.Context) (uint64, error) {
	if err := e.checkWritable(ctx); err != nil {
		return 0, err
	}
	if e.store == nil {
		return 0, ErrNoStore
	}
	return e.checkpoint(ctx)
}

func (e *Engine) checkpoint(ctx context.Context) (lsn uint64, err error) {
	e.checkpointMu.Lock()
	defer e.checkpointMu.Unlock()

	if err := e.rc.AcquireBackground(ctx); err != nil {
		return 0, err
	}
	defer e.rc.ReleaseBackground()

	v := e.coord.Current()
	if e.hasCheckpoint.Load() && e.checkpointLSN.Load() == v.LSN() {
		e.writesSince.Store(0)
		return v.LSN(), nil
	}

	start := time.Now()
	records := make([]model.Record, 0, v.Len())
	defer func() {
		e.metrics.OnCheckpoint(time.Since(start), len(records), err)
	}()

	for r := range v.Scan() {
		records = append(records, *r)
	}

	name, err := checkpoint.Save(ctx, e.store, v.LSN(), records, e.codec)
	if err != nil {
		e.logger.ErrorContext(ctx, "checkpoint failed", "lsn", v.LSN(), "error", err)
		return 0, err
	}
	e.checkpointLSN.Store(v.LSN())
	e.hasCheckpoint.Store(true)
	e.writesSince.Store(0)

	if e.wal != nil {
		if err := e.wal.TruncateBefore(v.LSN()); err != nil {
			return 0, err
		}
	}

	deleted, perr := checkpoint.Prune(ctx, e.store, e.keepCheckpoints)
	if perr != nil {
		e.logger.WarnContext(ctx, "pruning checkpoints failed", "error", perr)
	}

	e.logger.InfoContext(ctx, "checkpoint saved",
		"name", name,
		"lsn", v.LSN(),
		"records", len(records),
		"pruned", len(deleted),
		"duration", time.Since(start),
	)
	return v.LSN(), nil
}
