package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/ledgerq/codec"
	"github.com/hupe1980/ledgerq/internal/checkpoint"
	"github.com/hupe1980/ledgerq/internal/identindex"
	"github.com/hupe1980/ledgerq/internal/wal"
	"github.com/hupe1980/ledgerq/model"
)

// recover rebuilds the index from the latest checkpoint and the WAL records
// that follow it, then publishes the result.
func (e *Engine) recover(ctx context.Context) (err error) {
	start := time.Now()
	replayed := 0
	defer func() {
		e.metrics.OnRecovery(time.Since(start), replayed, err)
	}()

	v, err := e.loadCheckpoint(ctx)
	if err != nil {
		return err
	}
	base := v.LSN()

	if e.wal != nil {
		err = e.wal.Replay(func(rec wal.Record) error {
			if rec.LSN <= base {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			next, err := e.apply(v, rec)
			if err != nil {
				return err
			}
			v = next
			replayed++
			return nil
		})
		if err != nil {
			e.logger.ErrorContext(ctx, "WAL recovery failed", "entries_replayed", replayed, "error", err)
			return fmt.Errorf("replay WAL: %w", err)
		}
	}

	e.coord.Install(v)
	e.logger.InfoContext(ctx, "recovery completed",
		"checkpoint_lsn", base,
		"entries_replayed", replayed,
		"lsn", v.LSN(),
		"accounts", v.Len(),
		"duration", time.Since(start),
	)
	return nil
}

// loadCheckpoint returns the version stored in the current checkpoint, or
// an empty version if there is none.
func (e *Engine) loadCheckpoint(ctx context.Context) (*identindex.Version, error) {
	if e.store == nil {
		return identindex.New(), nil
	}
	cp, err := checkpoint.LoadCurrent(ctx, e.store)
	if errors.Is(err, checkpoint.ErrNoCheckpoint) {
		return identindex.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	v, err := identindex.Build(cp.Records, cp.LSN)
	if err != nil {
		return nil, fmt.Errorf("build index from checkpoint %d: %w", cp.LSN, err)
	}
	e.checkpointLSN.Store(cp.LSN)
	e.hasCheckpoint.Store(true)
	return v, nil
}

// apply replays one WAL record onto v.
func (e *Engine) apply(v *identindex.Version, rec wal.Record) (*identindex.Version, error) {
	id, err := model.ParseAccountID(rec.ID)
	if err != nil {
		return nil, err
	}
	switch rec.Type {
	case wal.RecordRegister:
		md, err := codec.DecodeMetadata(e.codec, rec.Metadata)
		if err != nil {
			return nil, err
		}
		return v.Insert(model.Record{
			ID:           id,
			RegisteredAt: model.FromUnixNano(rec.RegisteredAt),
			Metadata:     md,
		}, rec.LSN)
	case wal.RecordUnregister:
		return v.Tombstone(id, rec.LSN)
	default:
		return nil, fmt.Errorf("%w: %d", wal.ErrInvalidType, rec.Type)
	}
}

// Refresh loads the blob store's current checkpoint if it is newer than the
// published version. It is meant for read-only replicas and reports whether
// a new version was published.
func (e *Engine) Refresh(ctx context.Context) (bool, error) {
	if err := e.checkAvailable(ctx); err != nil {
		return false, err
	}
	if !e.readOnly {
		return false, fmt.Errorf("%w: refresh is only supported on read-only engines", ErrInvalidArgument)
	}

	cp, err := checkpoint.LoadCurrent(ctx, e.store)
	if errors.Is(err, checkpoint.ErrNoCheckpoint) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	published := false
	_, err = e.coord.Commit(func(cur *identindex.Version) (*identindex.Version, error) {
		if cp.LSN <= cur.LSN() {
			return cur, nil
		}
		next, err := identindex.Build(cp.Records, cp.LSN)
		if err != nil {
			return nil, err
		}
		published = true
		return next, nil
	})
	if err != nil {
		return false, err
	}
	if published {
		e.checkpointLSN.Store(cp.LSN)
		e.logger.InfoContext(ctx, "refreshed from checkpoint", "lsn", cp.LSN, "accounts", len(cp.Records))
	}
	return published, nil
}
