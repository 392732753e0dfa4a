// Package cache provides the query result cache.
//
// Entries are keyed by the index version LSN and the plan key, so a write
// never makes a cached result stale: it only makes it unreachable. Old
// generations are dropped with InvalidateBefore.
//
// Key features:
//   - Byte-bounded LRU eviction
//   - Integrated with resource.Controller for memory limits
//   - Concurrent identical misses are coalesced with singleflight
package cache
