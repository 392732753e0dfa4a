package hash

import (
	"hash"
	"hash/crc32"
	"io"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32C returns the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}

// Extend continues a checksum with more data. Extend(0, b) == CRC32C(b).
func Extend(sum uint32, data []byte) uint32 {
	return crc32.Update(sum, castagnoli, data)
}

// NewCRC32C returns a streaming CRC32-Castagnoli hash.
func NewCRC32C() hash.Hash32 {
	return crc32.New(castagnoli)
}

// Writer forwards writes to an underlying writer and checksums what was
// written successfully.
type Writer struct {
	w   io.Writer
	sum uint32
	n   int64
}

// NewWriter returns a checksumming writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.sum = Extend(w.sum, p[:n])
	w.n += int64(n)
	return n, err
}

// Sum32 returns the checksum of all bytes written so far.
func (w *Writer) Sum32() uint32 { return w.sum }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int64 { return w.n }
