// Package filter defines account filter expressions and their wire format.
//
// An expression is a closed set of node types:
//
//   - Is: exact canonical identifier match
//   - StartsWith: identifier prefix
//   - EndsWith: identifier suffix
//   - Contains: identifier substring
//   - And, Or, Not: logical composition
//
// The wire format mirrors the ledger client's filter payloads:
//
//	{"Identifiable": {"EndsWith": "@wonderland"}}
//	{"And": [{"Identifiable": {"StartsWith": "alice"}}, {"Not": {"Identifiable": {"Is": "alice@wonderland"}}}]}
//
// Unknown keys, wrong value types and empty compositions are rejected with a
// *MalformedFilterError instead of being ignored.
package filter
