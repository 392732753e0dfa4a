// Package hash provides the CRC32-Castagnoli checksums used by the write-ahead
// log and checkpoint formats.
//
// One-shot:
//
//	sum := hash.CRC32C(payload)
//
// Incremental, over several header fields and a payload:
//
//	sum := hash.Extend(0, header)
//	sum = hash.Extend(sum, payload)
//
// Streaming, while copying data to its destination:
//
//	w := hash.NewWriter(dst)
//	io.Copy(w, src)
//	sum := w.Sum32()
package hash
