package wal

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ledgerq/internal/fs"
)

func register(lsn uint64, id string) Record {
	return Record{
		Type:         RecordRegister,
		LSN:          lsn,
		ID:           id,
		RegisteredAt: int64(lsn) * 1000,
		Metadata:     []byte(`{"tier":"gold"}`),
	}
}

func replayAll(t *testing.T, w *WAL) []Record {
	t.Helper()
	var out []Record
	require.NoError(t, w.Replay(func(r Record) error {
		out = append(out, r)
		return nil
	}))
	return out
}

func TestRecord_EncodeDecode(t *testing.T) {
	recs := []Record{
		register(1, "alice@wonderland"),
		{Type: RecordUnregister, LSN: 2, ID: "alice@wonderland"},
		{Type: RecordRegister, LSN: 3, ID: "bob@wonderland", RegisteredAt: 42},
	}
	var buf []byte
	for i := range recs {
		var err error
		buf, err = recs[i].Encode(buf)
		require.NoError(t, err)
	}

	r := bytes.NewReader(buf)
	for _, want := range recs {
		got, err := Decode(r)
		require.NoError(t, err)
		assert.Equal(t, want, *got)
	}
	_, err := Decode(r)
	assert.ErrorIs(t, err, io.EOF)
}

func TestRecord_DecodeCorrupt(t *testing.T) {
	rec := register(1, "alice@wonderland")
	buf, err := rec.Encode(nil)
	require.NoError(t, err)

	flipped := bytes.Clone(buf)
	flipped[len(flipped)-1] ^= 0xff
	_, err = Decode(bytes.NewReader(flipped))
	assert.ErrorIs(t, err, ErrInvalidCRC)

	_, err = Decode(bytes.NewReader(buf[:len(buf)-3]))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = Decode(bytes.NewReader(buf[:5]))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	bad := Record{Type: 9, LSN: 1, ID: "x@y"}
	_, err = bad.Encode(nil)
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestWAL_AppendReopenReplay(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(fmt.Sprintf("compress=%v", compress), func(t *testing.T) {
			dir := t.TempDir()
			w, err := Open(func(o *Options) {
				o.Dir = dir
				o.Compress = compress
			})
			require.NoError(t, err)
			assert.Empty(t, replayAll(t, w))

			require.NoError(t, w.Append(register(1, "alice@wonderland")))
			require.NoError(t, w.Append(register(2, "bob@wonderland")))
			require.NoError(t, w.Append(Record{Type: RecordUnregister, LSN: 3, ID: "alice@wonderland"}))
			require.NoError(t, w.Close())

			w, err = Open(func(o *Options) { o.Dir = dir })
			require.NoError(t, err)
			got := replayAll(t, w)
			require.Len(t, got, 3)
			assert.Equal(t, "bob@wonderland", got[1].ID)
			assert.Equal(t, RecordUnregister, got[2].Type)
			assert.Equal(t, uint64(3), w.LastLSN())
			assert.False(t, w.Torn())

			// Appends continue after reopen.
			require.NoError(t, w.Append(register(4, "carol@land")))
			require.NoError(t, w.Close())

			w, err = Open(func(o *Options) { o.Dir = dir })
			require.NoError(t, err)
			defer w.Close()
			assert.Len(t, replayAll(t, w), 4)
		})
	}
}

func TestWAL_OutOfOrder(t *testing.T) {
	w, err := Open(func(o *Options) { o.Dir = t.TempDir() })
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Append(register(5, "a@b")))
	assert.ErrorIs(t, w.Append(register(5, "c@d")), ErrOutOfOrder)
}

func TestWAL_TornTail(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(func(o *Options) { o.Dir = dir })
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		require.NoError(t, w.Append(register(uint64(i), fmt.Sprintf("u%d@d", i))))
	}
	require.NoError(t, w.Close())

	// Chop the last record in half.
	path := filepath.Join(dir, FileName)
	st, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, st.Size()-10))

	w, err = Open(func(o *Options) { o.Dir = dir })
	require.NoError(t, err)
	assert.True(t, w.Torn())
	got := replayAll(t, w)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(2), w.LastLSN())

	require.NoError(t, w.Append(register(3, "u3@d")))
	require.NoError(t, w.Close())

	w, err = Open(func(o *Options) { o.Dir = dir })
	require.NoError(t, err)
	defer w.Close()
	assert.False(t, w.Torn())
	assert.Len(t, replayAll(t, w), 3)
}

func TestWAL_TruncateBefore(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(func(o *Options) { o.Dir = dir; o.Compress = true })
	require.NoError(t, err)
	for i := 1; i <= 5; i++ {
		require.NoError(t, w.Append(register(uint64(i), fmt.Sprintf("u%d@d", i))))
	}
	require.NoError(t, w.TruncateBefore(3))
	require.NoError(t, w.Append(register(6, "u6@d")))
	require.NoError(t, w.Close())

	w, err = Open(func(o *Options) { o.Dir = dir })
	require.NoError(t, err)
	defer w.Close()

	var lsns []uint64
	for _, r := range replayAll(t, w) {
		lsns = append(lsns, r.LSN)
	}
	assert.Equal(t, []uint64{4, 5, 6}, lsns)
}

func TestWAL_BadHeader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("not a wal file at all"), 0600))

	_, err := Open(func(o *Options) { o.Dir = dir })
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestWAL_ClosedAppend(t *testing.T) {
	w, err := Open(func(o *Options) { o.Dir = t.TempDir() })
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Append(register(1, "a@b")), ErrClosed)
}

func ids(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestWAL_AppendSyncFailure(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(fmt.Sprintf("compress=%v", compress), func(t *testing.T) {
			dir := t.TempDir()
			ffs := fs.NewFaultyFS(nil)

			w, err := Open(func(o *Options) {
				o.Dir = dir
				o.Compress = compress
				o.FS = ffs
			})
			require.NoError(t, err)

			ffs.AddRule(FileName, fs.Fault{FailOnSync: true})
			err = w.Append(register(1, "lost@x"))
			require.ErrorIs(t, err, fs.ErrInjected)
			assert.Zero(t, w.LastLSN())

			// The LSN of the failed record is free again.
			ffs.Clear()
			require.NoError(t, w.Append(register(1, "a@x")))
			require.NoError(t, w.Append(register(2, "b@x")))
			require.NoError(t, w.Close())

			w, err = Open(func(o *Options) { o.Dir = dir })
			require.NoError(t, err)
			defer w.Close()
			assert.False(t, w.Torn())
			assert.Equal(t, []string{"a@x", "b@x"}, ids(replayAll(t, w)))
		})
	}
}

func TestWAL_AppendWriteFailure(t *testing.T) {
	dir := t.TempDir()
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule(FileName, fs.Fault{FailAfterBytes: 200})

	w, err := Open(func(o *Options) {
		o.Dir = dir
		o.FS = ffs
	})
	require.NoError(t, err)

	err = w.Append(Record{Type: RecordRegister, LSN: 1, ID: "big@x", Metadata: bytes.Repeat([]byte("m"), 512)})
	require.ErrorIs(t, err, fs.ErrInjected)
	assert.Zero(t, w.LastLSN())

	// A failed write does not poison later ones.
	require.NoError(t, w.Append(register(1, "a@x")))
	require.NoError(t, w.Close())

	w, err = Open(func(o *Options) { o.Dir = dir })
	require.NoError(t, err)
	defer w.Close()
	assert.False(t, w.Torn())
	assert.Equal(t, []string{"a@x"}, ids(replayAll(t, w)))
}

func TestWAL_PartialWriteLeavesNoGarbage(t *testing.T) {
	dir := t.TempDir()
	ffs := fs.NewFaultyFS(nil)

	w, err := Open(func(o *Options) {
		o.Dir = dir
		o.FS = ffs
	})
	require.NoError(t, err)
	require.NoError(t, w.Append(register(1, "a@x")))
	size, err := w.Size()
	require.NoError(t, err)

	ffs.AddRule(FileName, fs.Fault{FailOnSync: true})
	require.Error(t, w.Append(register(2, "lost@x")))

	after, err := w.Size()
	require.NoError(t, err)
	assert.Equal(t, size, after)

	ffs.Clear()
	require.NoError(t, w.Close())
}

func TestWAL_TruncateBeforeFailure(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(fmt.Sprintf("compress=%v", compress), func(t *testing.T) {
			dir := t.TempDir()
			ffs := fs.NewFaultyFS(nil)

			w, err := Open(func(o *Options) {
				o.Dir = dir
				o.Compress = compress
				o.FS = ffs
			})
			require.NoError(t, err)
			for i := uint64(1); i <= 3; i++ {
				require.NoError(t, w.Append(register(i, fmt.Sprintf("u%d@x", i))))
			}

			ffs.AddRule(FileName, fs.Fault{FailOnRename: true})
			require.ErrorIs(t, w.TruncateBefore(2), fs.ErrInjected)
			assert.Equal(t, uint64(3), w.LastLSN())

			ffs.Clear()
			require.NoError(t, w.Append(register(4, "u4@x")))
			require.NoError(t, w.Close())

			w, err = Open(func(o *Options) { o.Dir = dir })
			require.NoError(t, err)
			defer w.Close()
			assert.Equal(t, []string{"u1@x", "u2@x", "u3@x", "u4@x"}, ids(replayAll(t, w)))

			_, err = os.Stat(filepath.Join(dir, FileName+".tmp"))
			assert.ErrorIs(t, err, os.ErrNotExist)
		})
	}
}

func TestWAL_RepairRetriedOnNextAppend(t *testing.T) {
	dir := t.TempDir()
	ffs := fs.NewFaultyFS(nil)

	w, err := Open(func(o *Options) {
		o.Dir = dir
		o.FS = ffs
	})
	require.NoError(t, err)
	require.NoError(t, w.Append(register(1, "a@x")))

	ffs.AddRule(FileName, fs.Fault{FailOnSync: true, FailOnTruncate: true})
	require.Error(t, w.Append(register(2, "lost@x")))
	require.Error(t, w.Append(register(2, "lost@x")))

	ffs.Clear()
	require.NoError(t, w.Append(register(2, "b@x")))
	require.NoError(t, w.Close())

	w, err = Open(func(o *Options) { o.Dir = dir })
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, []string{"a@x", "b@x"}, ids(replayAll(t, w)))
}

func TestWAL_OpenFailure(t *testing.T) {
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule(FileName, fs.Fault{FailOnOpen: true})

	_, err := Open(func(o *Options) {
		o.Dir = t.TempDir()
		o.FS = ffs
	})
	require.ErrorIs(t, err, fs.ErrInjected)
}
