// Package testutil provides testing utilities for ledgerq.
//
// This package is intended for use in tests and benchmarks only.
// It generates deterministic account identifiers and computes reference
// query results by brute force.
//
// # Account Generation
//
//	rng := testutil.NewRNG(seed)
//	ids := rng.AccountIDs(1000, 8) // 1000 unique ids over 8 domains
//
// # Ground Truth
//
//	want := testutil.Match(ids, filter.EndsWith{Suffix: "@d3"})
package testutil
