package checkpoint

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ledgerq/blobstore"
	"github.com/hupe1980/ledgerq/codec"
	"github.com/hupe1980/ledgerq/model"
)

func sampleRecords(n int) []model.Record {
	base := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)
	out := make([]model.Record, n)
	for i := range out {
		out[i] = model.Record{
			ID:           model.MustParseAccountID(fmt.Sprintf("user%03d@ledger", i)),
			LSN:          uint64(i + 1),
			RegisteredAt: base.Add(time.Duration(i) * time.Second),
		}
		if i%2 == 0 {
			out[i].Metadata = map[string]string{"n": fmt.Sprint(i)}
		}
	}
	return out
}

func TestEncodeDecode(t *testing.T) {
	for _, c := range []codec.Codec{codec.JSON{}, codec.GoJSON{}} {
		t.Run(c.Name(), func(t *testing.T) {
			records := sampleRecords(50)
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, 77, records, c))

			cp, err := Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, uint64(77), cp.LSN)
			assert.Equal(t, records, cp.Records)
		})
	}
}

func TestEncodeDecode_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, 0, nil, nil))
	cp, err := Decode(&buf)
	require.NoError(t, err)
	assert.Empty(t, cp.Records)
}

func TestDecode_Corruption(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, 5, sampleRecords(3), nil))
	good := buf.Bytes()

	t.Run("BadMagic", func(t *testing.T) {
		b := bytes.Clone(good)
		b[0] = 'X'
		_, err := Decode(bytes.NewReader(b))
		assert.ErrorIs(t, err, ErrInvalidHeader)
	})

	t.Run("FlippedPayload", func(t *testing.T) {
		b := bytes.Clone(good)
		b[len(b)-1] ^= 0xff
		_, err := Decode(bytes.NewReader(b))
		assert.ErrorIs(t, err, ErrChecksum)
	})

	t.Run("Truncated", func(t *testing.T) {
		_, err := Decode(bytes.NewReader(good[:len(good)-4]))
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("ShortHeader", func(t *testing.T) {
		_, err := Decode(bytes.NewReader(good[:10]))
		assert.ErrorIs(t, err, ErrInvalidHeader)
	})
}

func TestName(t *testing.T) {
	name := Name(42)
	assert.Equal(t, "checkpoints/00000000000000000042.lqc", name)

	lsn, ok := ParseName(name)
	require.True(t, ok)
	assert.Equal(t, uint64(42), lsn)

	for _, bad := range []string{"CURRENT", "checkpoints/x.lqc", "checkpoints/1.tmp", "other/1.lqc"} {
		_, ok := ParseName(bad)
		assert.False(t, ok, bad)
	}
}

func TestSaveLoadPrune(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	_, err := LoadCurrent(ctx, store)
	require.ErrorIs(t, err, ErrNoCheckpoint)

	for lsn := uint64(1); lsn <= 4; lsn++ {
		_, err := Save(ctx, store, lsn*10, sampleRecords(int(lsn)), nil)
		require.NoError(t, err)
	}

	cp, err := LoadCurrent(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), cp.LSN)
	assert.Len(t, cp.Records, 4)

	deleted, err := Prune(ctx, store, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{Name(10), Name(20)}, deleted)

	names, err := List(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, []string{Name(30), Name(40)}, names)
}

func TestPrune_KeepsCurrent(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	for _, lsn := range []uint64{1, 2, 3} {
		_, err := Save(ctx, store, lsn, nil, nil)
		require.NoError(t, err)
	}
	// CURRENT points at an older checkpoint, e.g. after a failed commit.
	require.NoError(t, store.Put(ctx, blobstore.CurrentName, []byte(Name(1))))

	deleted, err := Prune(ctx, store, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{Name(2)}, deleted)
}

func TestLoad_NameMismatch(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, 9, nil, nil))
	require.NoError(t, store.Put(ctx, Name(10), buf.Bytes()))

	_, err := Load(ctx, store, Name(10))
	assert.ErrorIs(t, err, ErrInvalidHeader)
}
