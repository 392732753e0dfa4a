package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/ledgerq/filter"
	"github.com/hupe1980/ledgerq/internal/cache"
	"github.com/hupe1980/ledgerq/internal/planner"
	"github.com/hupe1980/ledgerq/internal/snapshot"
	"github.com/hupe1980/ledgerq/model"
)

// Query returns the ids of all live accounts matching expr, in forward
// lexicographic order of their canonical form. A filter that matches
// nothing yields an empty result, not an error.
func (e *Engine) Query(ctx context.Context, expr filter.Expr, opts ...QueryOption) ([]model.AccountID, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer snap.Release()
	return snap.Query(ctx, expr, opts...)
}

// QueryRecords is like Query but returns copies of the full records.
func (e *Engine) QueryRecords(ctx context.Context, expr filter.Expr, opts ...QueryOption) ([]model.Record, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer snap.Release()
	return snap.QueryRecords(ctx, expr, opts...)
}

// Explain returns the plan chosen for expr.
func (e *Engine) Explain(expr filter.Expr) (string, error) {
	if err := filter.Validate(expr); err != nil {
		return "", err
	}
	return planner.Build(expr).String(), nil
}

// View runs fn with a snapshot that is released when fn returns.
func (e *Engine) View(ctx context.Context, fn func(*Snapshot) error) error {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return err
	}
	defer snap.Release()
	return fn(snap)
}

// Snapshot pins the current index version. The caller must Release it.
func (e *Engine) Snapshot(ctx context.Context) (*Snapshot, error) {
	if err := e.checkAvailable(ctx); err != nil {
		return nil, err
	}
	return &Snapshot{e: e, s: e.coord.Acquire()}, nil
}

// Snapshot is a consistent, immutable view of the registered accounts.
// Queries against the same snapshot return identical results.
type Snapshot struct {
	e *Engine
	s *snapshot.Snapshot
}

// LSN is the consistency token of the snapshot: it reflects every write
// with an LSN up to and including it.
func (s *Snapshot) LSN() uint64 { return s.s.LSN() }

// Len returns the number of live accounts in the snapshot.
func (s *Snapshot) Len() int { return s.s.Version().Len() }

// Release unpins the snapshot. It is safe to call more than once.
func (s *Snapshot) Release() { s.s.Release() }

// Query is Engine.Query against this snapshot.
func (s *Snapshot) Query(ctx context.Context, expr filter.Expr, opts ...QueryOption) ([]model.AccountID, error) {
	recs, err := s.run(ctx, expr, opts)
	if err != nil {
		return nil, err
	}
	ids := make([]model.AccountID, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids, nil
}

// QueryRecords is Engine.QueryRecords against this snapshot.
func (s *Snapshot) QueryRecords(ctx context.Context, expr filter.Expr, opts ...QueryOption) ([]model.Record, error) {
	recs, err := s.run(ctx, expr, opts)
	if err != nil {
		return nil, err
	}
	out := make([]model.Record, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out, nil
}

func (s *Snapshot) run(ctx context.Context, expr filter.Expr, opts []QueryOption) (recs []*model.Record, err error) {
	var o queryOptions
	for _, fn := range opts {
		fn(&o)
	}

	e := s.e
	start := time.Now()
	access := "invalid"
	cached := false
	defer func() {
		e.metrics.OnQuery(access, time.Since(start), len(recs), cached, err)
	}()

	if s.s.Released() {
		return nil, ErrSnapshotReleased
	}
	if o.offset < 0 || o.limit < 0 {
		return nil, fmt.Errorf("%w: negative offset or limit", ErrInvalidArgument)
	}
	if err := filter.Validate(expr); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	release, err := e.rc.AcquireQuery(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	plan := planner.Build(expr)
	access = plan.Access().String()
	v := s.s.Version()

	exec := func() ([]*model.Record, error) {
		return paginate(plan.Execute(v), o.offset, o.limit), nil
	}

	if e.cache != nil && !o.noCache {
		key := cache.Key{LSN: v.LSN(), Plan: plan.Key(), Offset: o.offset, Limit: o.limit}
		recs, cached, err = e.cache.Do(ctx, key, exec)
	} else {
		recs, err = exec()
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.logger.DebugContext(ctx, "query completed",
		"plan", plan.String(),
		"lsn", v.LSN(),
		"results", len(recs),
		"cached", cached,
	)
	return recs, nil
}

func paginate(recs []*model.Record, offset, limit int) []*model.Record {
	if offset >= len(recs) {
		return nil
	}
	recs = recs[offset:]
	if limit > 0 && limit < len(recs) {
		recs = recs[:limit]
	}
	return recs
}
