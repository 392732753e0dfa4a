// Package checkpoint serializes the live records of one index version and
// manages checkpoint blobs in a blobstore.BlobStore.
//
// A checkpoint blob, named checkpoints/<lsn:020d>.lqc, is a fixed header
// followed by an lz4-framed payload:
//
//	[magic "LQCP"][version u16][lsn u64][count u64][crc32c u32][payload len u64]
//
// The checksum covers the compressed payload. The payload starts with the
// name of the metadata codec, followed by count records:
//
//	[idLen u32][id][lsn u64][registeredAt i64][metaLen u32][meta]
//
// The blob CURRENT names the latest complete checkpoint. It is written only
// after the checkpoint blob itself is committed.
package checkpoint
