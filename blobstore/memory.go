package blobstore

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/google/btree"
)

// MemoryStore is a BlobStore held in memory. Blobs are kept ordered by
// name, so List visits only the names under its prefix.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs *btree.BTreeG[memEntry]
}

type memEntry struct {
	name string
	data []byte
}

func lessMemEntry(a, b memEntry) bool { return a.name < b.name }

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: btree.NewG(16, lessMemEntry)}
}

func (m *MemoryStore) Open(ctx context.Context, name string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	e, ok := m.blobs.Get(memEntry{name: name})
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return memBlob{r: bytes.NewReader(e.data)}, nil
}

// Create buffers writes; the blob replaces any previous one on Close.
func (m *MemoryStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memWriter{store: m, name: name}, nil
}

func (m *MemoryStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.commit(name, bytes.Clone(data))
	return nil
}

// commit takes ownership of data.
func (m *MemoryStore) commit(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs.ReplaceOrInsert(memEntry{name: name, data: data})
}

func (m *MemoryStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs.Delete(memEntry{name: name})
	return nil
}

func (m *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	m.blobs.AscendGreaterOrEqual(memEntry{name: prefix}, func(e memEntry) bool {
		if !strings.HasPrefix(e.name, prefix) {
			return false
		}
		names = append(names, e.name)
		return true
	})
	return names, nil
}

// memBlob reads a committed byte slice, which is never modified again.
type memBlob struct {
	r *bytes.Reader
}

func (b memBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return b.r.ReadAt(p, off)
}

func (b memBlob) Close() error { return nil }
func (b memBlob) Size() int64  { return b.r.Size() }

type memWriter struct {
	store  *MemoryStore
	name   string
	buf    bytes.Buffer
	closed bool
}

func (w *memWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, io.ErrClosedPipe
	}
	return w.buf.Write(p)
}

func (w *memWriter) Sync() error { return nil }

func (w *memWriter) Close() error {
	if w.closed {
		return io.ErrClosedPipe
	}
	w.closed = true
	w.store.commit(w.name, w.buf.Bytes())
	return nil
}
