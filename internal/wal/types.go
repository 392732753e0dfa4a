package wal

import (
	"errors"

	"github.com/hupe1980/ledgerq/internal/fs"
)

// Durability controls when appended records reach stable storage.
type Durability int

const (
	// DurabilityAsync leaves flushing to the OS page cache.
	DurabilityAsync Durability = iota
	// DurabilitySync calls fsync after every record.
	DurabilitySync
)

// RecordType identifies the operation a record describes.
type RecordType uint8

const (
	RecordRegister   RecordType = 1
	RecordUnregister RecordType = 2
)

func (t RecordType) String() string {
	switch t {
	case RecordRegister:
		return "register"
	case RecordUnregister:
		return "unregister"
	default:
		return "unknown"
	}
}

var (
	ErrInvalidCRC     = errors.New("invalid WAL record checksum")
	ErrInvalidType    = errors.New("invalid WAL record type")
	ErrShortRead      = errors.New("short read in WAL record")
	ErrRecordTooLarge = errors.New("WAL record too large")
	ErrInvalidHeader  = errors.New("invalid WAL header")
	ErrOutOfOrder     = errors.New("WAL record LSN not increasing")
	ErrClosed         = errors.New("WAL closed")
)

// Record is one logged operation.
type Record struct {
	Type RecordType
	LSN  uint64
	// ID is the canonical account identifier.
	ID string
	// RegisteredAt is a unix timestamp in nanoseconds. Register only.
	RegisteredAt int64
	// Metadata is the encoded account metadata. Register only.
	Metadata []byte
}

// FileName is the name of the log file inside the WAL directory.
const FileName = "ledgerq.wal"

// Options configures a WAL.
type Options struct {
	// Dir is the directory holding the log file.
	Dir string

	// Compress enables zstd compression of the record stream.
	Compress bool

	// CompressionLevel is the zstd level (1-22).
	CompressionLevel int

	// Durability controls fsync behavior.
	Durability Durability

	// FS is the file system the log lives on. Nil means fs.Default.
	FS fs.FileSystem
}

// DefaultOptions are applied before option functions.
var DefaultOptions = Options{
	Dir:              ".",
	CompressionLevel: 3,
	Durability:       DurabilitySync,
}
