// Package blobstore provides the storage abstraction for ledgerq checkpoints.
//
// A BlobStore holds named, immutable blobs plus the small mutable CURRENT
// pointer naming the latest checkpoint. Implementations must be safe for
// concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process, for tests and ephemeral nodes
//   - LocalStore: local filesystem, atomic writes via temp file and rename
//   - s3.Store: Amazon S3; blobs under one part go out as one PutObject
//   - s3.DDBCommitStore: S3 plus a DynamoDB conditional write for CURRENT
//   - minio.Store: MinIO and other S3-compatible services
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)            // Open for reading
//	    Create(ctx, name) (WritableBlob, error)  // Stream a new blob
//	    Put(ctx, name, data) error               // Atomic write
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
