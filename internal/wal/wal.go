package wal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/hupe1980/ledgerq/internal/fs"
)

// WAL is an append-only log of registrations. It is safe for concurrent use.
type WAL struct {
	mu      sync.Mutex
	opts    Options
	path    string
	fsys    fs.FileSystem
	file    fs.File
	cw      *countingWriter
	bw      *bufio.Writer
	enc     *zstd.Encoder
	hdr     header
	buf     []byte
	lastLSN uint64
	pending []Record
	torn    bool
	closed  bool

	// goodSize is the file size after the last acknowledged write.
	goodSize int64
	// dirty is set when a write failed and the file may hold bytes past
	// goodSize. The next write repairs the log first.
	dirty    bool
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Open opens or creates the log in the configured directory and loads all
// valid records. The records are available through Replay until the first
// append or truncation.
func Open(optFns ...func(o *Options)) (*WAL, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	fsys := opts.FS
	if fsys == nil {
		fsys = fs.Default
	}

	if err := fsys.MkdirAll(opts.Dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create WAL directory: %w", err)
	}

	w := &WAL{
		opts: opts,
		fsys: fsys,
		path: filepath.Join(opts.Dir, FileName),
	}

	hdr, records, torn, err := readFile(w.fsys, w.path)
	if err != nil {
		return nil, err
	}
	if hdr == nil {
		hdr = &header{Compressed: opts.Compress, CompressionLevel: opts.CompressionLevel}
	}
	w.hdr = *hdr
	w.pending = records
	w.torn = torn
	if n := len(records); n > 0 {
		w.lastLSN = records[n-1].LSN
	}

	if torn {
		// Start over from the valid prefix so appends follow a clean tail.
		if err := w.rewrite(records); err != nil {
			return nil, err
		}
		return w, nil
	}
	if err := w.openAppend(); err != nil {
		return nil, err
	}
	return w, nil
}

// readFile returns a nil header if the file does not exist or is empty.
func readFile(fsys fs.FileSystem, path string) (*header, []Record, bool, error) {
	f, err := fsys.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to open WAL: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	hdr, err := readHeader(br)
	if errors.Is(err, io.EOF) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, err
	}

	var r io.Reader = br
	if hdr.Compressed {
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, nil, false, fmt.Errorf("failed to create decompressor: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	var (
		records []Record
		lastLSN uint64
	)
	for {
		rec, err := Decode(r)
		if errors.Is(err, io.EOF) {
			return &hdr, records, false, nil
		}
		if err != nil || rec.LSN <= lastLSN {
			return &hdr, records, true, nil
		}
		lastLSN = rec.LSN
		records = append(records, *rec)
	}
}

func (w *WAL) openAppend() error {
	f, err := w.fsys.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open WAL: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to stat WAL: %w", err)
	}
	size := st.Size()
	if size == 0 {
		if err := writeHeader(f, w.hdr); err != nil {
			_ = f.Close()
			return err
		}
		size = walHeaderLen
	}
	if err := w.attach(f, size); err != nil {
		return err
	}
	w.goodSize = size
	return nil
}

// attach takes ownership of f, which already holds size bytes.
func (w *WAL) attach(f fs.File, size int64) error {
	cw := &countingWriter{w: f, n: size}
	if !w.hdr.Compressed {
		w.file, w.cw, w.enc, w.bw = f, cw, nil, bufio.NewWriter(cw)
		return nil
	}
	level := zstd.EncoderLevelFromZstd(w.hdr.CompressionLevel)
	enc, err := zstd.NewWriter(cw, zstd.WithEncoderLevel(level))
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to create compressor: %w", err)
	}
	w.file, w.cw, w.enc, w.bw = f, cw, enc, bufio.NewWriter(enc)
	return nil
}

// rewrite replaces the log with records, via a temporary file and rename.
// No file may be attached. On error the log at w.path is either the old
// or the new one, and nothing is attached.
func (w *WAL) rewrite(records []Record) error {
	tmp := w.path + ".tmp"
	size, err := w.writeFile(tmp, records)
	if err != nil {
		return err
	}
	if err := w.fsys.Rename(tmp, w.path); err != nil {
		_ = w.fsys.Remove(tmp)
		return fmt.Errorf("failed to replace WAL: %w", err)
	}
	w.goodSize = size
	return w.openAppend()
}

// writeFile writes a complete log holding records to name and returns its
// size. The file is removed on error.
func (w *WAL) writeFile(name string, records []Record) (int64, error) {
	f, err := w.fsys.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return 0, fmt.Errorf("failed to create WAL: %w", err)
	}
	if err := writeHeader(f, w.hdr); err != nil {
		_ = f.Close()
		_ = w.fsys.Remove(name)
		return 0, err
	}
	if err := w.attach(f, walHeaderLen); err != nil {
		_ = w.fsys.Remove(name)
		return 0, err
	}
	for i := range records {
		if err := w.writeLocked(&records[i]); err != nil {
			w.abandon()
			_ = w.fsys.Remove(name)
			return 0, err
		}
	}
	cw := w.cw
	if err := w.detach(); err != nil {
		_ = w.fsys.Remove(name)
		return 0, err
	}
	return cw.n, nil
}

// detach flushes, syncs and closes the current file, if any.
func (w *WAL) detach() error {
	if w.file == nil {
		return nil
	}
	var errs []error
	errs = append(errs, w.bw.Flush())
	if w.enc != nil {
		errs = append(errs, w.enc.Close())
	}
	errs = append(errs, w.file.Sync(), w.file.Close())
	w.file, w.cw, w.bw, w.enc = nil, nil, nil, nil
	return errors.Join(errs...)
}

// abandon closes the current file without flushing buffered data.
func (w *WAL) abandon() {
	if w.file == nil {
		return
	}
	if w.enc != nil {
		w.enc.Reset(io.Discard)
		_ = w.enc.Close()
	}
	_ = w.file.Close()
	w.file, w.cw, w.bw, w.enc = nil, nil, nil, nil
}

// failLocked marks the log dirty after a failed write and tries to repair
// it right away. A repair that fails now is retried by the next write.
func (w *WAL) failLocked() {
	w.dirty = true
	_ = w.repairLocked()
}

// repairLocked drops whatever failed writes left after the last
// acknowledged record and reopens the log for appending.
func (w *WAL) repairLocked() error {
	w.abandon()
	if !w.hdr.Compressed {
		if err := w.fsys.Truncate(w.path, w.goodSize); err != nil {
			return fmt.Errorf("failed to truncate WAL: %w", err)
		}
		if err := w.openAppend(); err != nil {
			return err
		}
		w.dirty = false
		return nil
	}

	// A compressed stream cannot be cut at a byte offset, so rebuild it
	// from the records that were acknowledged.
	_, records, _, err := readFile(w.fsys, w.path)
	if err != nil {
		return err
	}
	keep := records[:0]
	for _, rec := range records {
		if rec.LSN <= w.lastLSN {
			keep = append(keep, rec)
		}
	}
	if err := w.rewrite(keep); err != nil {
		return err
	}
	w.dirty = false
	return nil
}

func (w *WAL) writeLocked(rec *Record) error {
	var err error
	w.buf, err = rec.Encode(w.buf[:0])
	if err != nil {
		return err
	}
	if _, err := w.bw.Write(w.buf); err != nil {
		return err
	}
	if err := w.bw.Flush(); err != nil {
		return err
	}
	if w.enc != nil {
		return w.enc.Flush()
	}
	return nil
}

// Torn reports whether Open discarded a corrupt tail.
func (w *WAL) Torn() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.torn
}

// Replay calls fn for every record loaded by Open, in log order.
func (w *WAL) Replay(fn func(Record) error) error {
	w.mu.Lock()
	records := w.pending
	w.mu.Unlock()

	for _, rec := range records {
		if err := fn(rec); err != nil {
			return fmt.Errorf("replay LSN %d: %w", rec.LSN, err)
		}
	}
	return nil
}

// Append writes rec to the log. rec.LSN must be greater than every LSN
// already in the log. A record whose Append fails is not in the log, and
// its LSN may be used again.
func (w *WAL) Append(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if rec.LSN <= w.lastLSN {
		return fmt.Errorf("%w: %d after %d", ErrOutOfOrder, rec.LSN, w.lastLSN)
	}
	if w.dirty {
		if err := w.repairLocked(); err != nil {
			return fmt.Errorf("failed to repair WAL: %w", err)
		}
	}
	w.pending = nil

	if err := w.writeLocked(&rec); err != nil {
		w.failLocked()
		return fmt.Errorf("failed to append WAL record: %w", err)
	}
	if w.opts.Durability == DurabilitySync {
		if err := w.file.Sync(); err != nil {
			w.failLocked()
			return fmt.Errorf("failed to sync WAL: %w", err)
		}
	}
	w.goodSize = w.cw.n
	w.lastLSN = rec.LSN
	return nil
}

// LastLSN returns the highest LSN in the log, or the LSN passed to the last
// TruncateBefore if that is higher.
func (w *WAL) LastLSN() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastLSN
}

// TruncateBefore drops every record with LSN <= lsn. On error the log
// keeps its records and stays usable.
func (w *WAL) TruncateBefore(lsn uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if w.dirty {
		if err := w.repairLocked(); err != nil {
			return fmt.Errorf("failed to repair WAL: %w", err)
		}
	}
	if err := w.detach(); err != nil {
		w.failLocked()
		return fmt.Errorf("failed to close WAL: %w", err)
	}
	_, records, _, err := readFile(w.fsys, w.path)
	if err != nil {
		w.failLocked()
		return err
	}
	keep := records[:0]
	for _, rec := range records {
		if rec.LSN > lsn {
			keep = append(keep, rec)
		}
	}
	if err := w.rewrite(keep); err != nil {
		w.failLocked()
		return err
	}
	w.pending = nil
	if lsn > w.lastLSN {
		w.lastLSN = lsn
	}
	return nil
}

// Size returns the size of the log file in bytes.
func (w *WAL) Size() (int64, error) {
	st, err := w.fsys.Stat(w.path)
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

// Path returns the path of the log file.
func (w *WAL) Path() string { return w.path }

// Close flushes and closes the log.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.pending = nil
	if w.dirty {
		if err := w.repairLocked(); err != nil {
			w.abandon()
			return fmt.Errorf("failed to repair WAL: %w", err)
		}
	}
	return w.detach()
}
