// Package engine provides the account query engine.
//
// The engine integrates:
//   - the identifier index (forward and reversed ordered trees)
//   - the filter planner
//   - the snapshot coordinator publishing immutable index versions
//   - the write-ahead log and blob store checkpoints for durability
//   - a query result cache and admission control
//
// # Consistency Model
//
// Every query runs against one snapshot acquired when the call starts and
// released on every exit path. A snapshot observes every write committed
// before it was acquired and none after:
//
//	snap, _ := eng.Snapshot(ctx)
//	defer snap.Release()
//
//	_, _ = eng.Register(ctx, model.MustParseAccountID("bob@wonderland"), nil)
//	ids, _ := snap.Query(ctx, filter.EndsWith{Suffix: "@wonderland"}) // no bob
//
// Readers never block writers and writers never block readers: a write
// derives a new version through copy-on-write B-tree clones and publishes
// it with a single atomic store.
//
// # Write Model
//
//   - Register: validate → derive version → append WAL → publish
//   - Unregister: tombstone (bitmap) → append WAL → publish; compaction
//     removes tombstoned entries in the background
//
// A WAL failure aborts the write before publication.
//
// # Availability
//
// An engine serves neither queries nor writes until recovery (checkpoint
// load and WAL replay) has finished. With WithAsyncRecovery, Open returns
// immediately and calls fail with ErrUnavailable meanwhile; callers poll
// with the retry package or block in WaitReady.
package engine
