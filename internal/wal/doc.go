// Package wal implements the write-ahead log of account registrations.
//
// The log is a single file, <dir>/ledgerq.wal, made of a fixed header
// followed by CRC-framed records:
//
//	[crc32c u32][type u8][lsn u64][len u32][payload len bytes]
//
// The checksum covers type, lsn, len and payload. When compression is
// enabled the record stream after the header is zstd-compressed and flushed
// after every record, so a crash loses at most the record being written.
//
// Open reads all valid records. A torn or corrupt tail is discarded and the
// valid prefix is rewritten to a fresh file before new records are appended.
package wal
