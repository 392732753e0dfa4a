// Package planner turns filter expressions into access plans over an
// identindex.Version.
//
// Each leaf predicate maps to one access path:
//
//	Is          exact lookup on the forward tree
//	StartsWith  range scan on the forward tree
//	EndsWith    range scan on the reversed-key tree
//	Contains    full scan with residual match
//
// And picks its most selective indexable operand as driver and checks the
// remaining operands per candidate. Or becomes a union when every operand is
// indexable and a scan otherwise. Not always scans.
//
// Results are live records in forward canonical order without duplicates.
package planner
