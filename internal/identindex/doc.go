// Package identindex provides an immutable, versioned index of account
// records keyed by canonical identifier.
//
// Every mutation returns a new *Version and leaves the receiver untouched,
// so a published Version can be read by any number of goroutines without
// locks. Versions share structure through copy-on-write B-trees.
//
// # Forward and Reversed Keys
//
// Two ordered trees are kept per version:
//
//   - forward: keyed by the canonical "name@domain" string
//   - reverse: keyed by the byte-reversed canonical string
//
// A suffix query on the forward key space is a prefix query on the reversed
// key space, so one ordered structure serves both directions in
// O(log n + k).
//
// # Tombstones
//
// Deleted records are marked in a Roaring bitmap of row ids and skipped by
// lookups. Compact removes them physically.
package identindex
