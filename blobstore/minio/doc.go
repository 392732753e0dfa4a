// Package minio stores ledgerq checkpoints in MinIO or any other
// S3-compatible service (Ceph, Garage, SeaweedFS) through the MinIO client.
//
// # Basic Usage
//
//	store, err := minioblob.Dial(ctx, minioblob.Config{
//	    Endpoint:  "localhost:9000",
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	    Bucket:    "ledgerq",
//	    Prefix:    "node-1",
//	})
//
// An existing *minio.Client can be wrapped with NewStore.
package minio
