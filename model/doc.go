// Package model defines core types used throughout ledgerq.
//
// # Identity Types
//
//   - AccountID: canonical account identifier in the form name@domain
//   - RowID: index-local record handle (uint32), assigned on insert
//
// # Data Types
//
//   - Record: a registered account with its commit LSN and opaque metadata
//
// Identifiers are compared as raw bytes. No case folding or Unicode
// normalization is applied:
//
//	id, err := model.ParseAccountID("alice@wonderland")
//	id.Name   // "alice"
//	id.Domain // "wonderland"
package model
