package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/hupe1980/ledgerq/codec"
	"github.com/hupe1980/ledgerq/internal/identindex"
	"github.com/hupe1980/ledgerq/internal/wal"
	"github.com/hupe1980/ledgerq/model"
)

// Register adds an account. The record is assigned the next LSN, logged to
// the WAL when one is configured and then published.
func (e *Engine) Register(ctx context.Context, id model.AccountID, metadata map[string]string) (model.Record, error) {
	start := time.Now()
	rec, err := e.register(ctx, id, metadata)
	e.metrics.OnRegister(time.Since(start), err)
	if err != nil {
		return model.Record{}, err
	}

	e.logger.DebugContext(ctx, "account registered", "id", rec.ID, "lsn", rec.LSN)
	e.afterWrite()
	return rec, nil
}

func (e *Engine) register(ctx context.Context, id model.AccountID, metadata map[string]string) (model.Record, error) {
	if err := e.checkWritable(ctx); err != nil {
		return model.Record{}, err
	}
	if _, err := model.NewAccountID(id.Name, id.Domain); err != nil {
		return model.Record{}, err
	}

	var meta []byte
	if e.wal != nil {
		b, err := codec.EncodeMetadata(e.codec, metadata)
		if err != nil {
			return model.Record{}, err
		}
		meta = b
	}

	var out model.Record
	_, err := e.coord.Commit(func(cur *identindex.Version) (*identindex.Version, error) {
		lsn := cur.LSN() + 1
		rec := model.Record{
			ID:           id,
			RegisteredAt: e.now().UTC(),
			Metadata:     maps.Clone(metadata),
		}
		next, err := cur.Insert(rec, lsn)
		if err != nil {
			if errors.Is(err, identindex.ErrDuplicateID) {
				return nil, fmt.Errorf("%w: %w", ErrAlreadyRegistered, err)
			}
			return nil, err
		}

		if e.wal != nil {
			err := e.wal.Append(wal.Record{
				Type:         wal.RecordRegister,
				LSN:          lsn,
				ID:           id.String(),
				RegisteredAt: model.UnixNano(rec.RegisteredAt),
				Metadata:     meta,
			})
			if err != nil {
				return nil, err
			}
		}

		stored, _ := next.LookupExact(id)
		out = stored.Clone()
		return next, nil
	})
	if err != nil {
		return model.Record{}, err
	}
	return out, nil
}

// Unregister tombstones the account. Snapshots acquired earlier still see it.
func (e *Engine) Unregister(ctx context.Context, id model.AccountID) error {
	start := time.Now()
	lsn, err := e.unregister(ctx, id)
	e.metrics.OnUnregister(time.Since(start), err)
	if err != nil {
		return err
	}

	e.logger.DebugContext(ctx, "account unregistered", "id", id, "lsn", lsn)
	e.afterWrite()
	return nil
}

func (e *Engine) unregister(ctx context.Context, id model.AccountID) (uint64, error) {
	if err := e.checkWritable(ctx); err != nil {
		return 0, err
	}

	var lsn uint64
	_, err := e.coord.Commit(func(cur *identindex.Version) (*identindex.Version, error) {
		lsn = cur.LSN() + 1
		next, err := cur.Tombstone(id, lsn)
		if err != nil {
			if errors.Is(err, identindex.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			return nil, err
		}

		if e.wal != nil {
			err := e.wal.Append(wal.Record{
				Type: wal.RecordUnregister,
				LSN:  lsn,
				ID:   id.String(),
			})
			if err != nil {
				return nil, err
			}
		}
		return next, nil
	})
	return lsn, err
}

// Get returns the live record for id in the current version.
func (e *Engine) Get(ctx context.Context, id model.AccountID) (model.Record, error) {
	if err := e.checkAvailable(ctx); err != nil {
		return model.Record{}, err
	}
	rec, ok := e.coord.Current().LookupExact(id)
	if !ok {
		return model.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec.Clone(), nil
}
