package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/ledgerq/blobstore"
	"github.com/hupe1980/ledgerq/codec"
	"github.com/hupe1980/ledgerq/model"
)

const (
	// Prefix is the blob name prefix of all checkpoints.
	Prefix = "checkpoints/"
	suffix = ".lqc"
)

// ErrNoCheckpoint is returned by LoadCurrent when nothing was committed yet.
var ErrNoCheckpoint = errors.New("no checkpoint")

// Name returns the blob name of the checkpoint at lsn.
func Name(lsn uint64) string {
	return fmt.Sprintf("%s%020d%s", Prefix, lsn, suffix)
}

// ParseName extracts the LSN from a checkpoint blob name.
func ParseName(name string) (uint64, bool) {
	s, ok := strings.CutPrefix(name, Prefix)
	if !ok {
		return 0, false
	}
	s, ok = strings.CutSuffix(s, suffix)
	if !ok {
		return 0, false
	}
	lsn, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return lsn, true
}

// Save writes a checkpoint of records at lsn and then points CURRENT at it.
// It returns the blob name.
func Save(ctx context.Context, store blobstore.BlobStore, lsn uint64, records []model.Record, c codec.Codec) (string, error) {
	name := Name(lsn)

	w, err := store.Create(ctx, name)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if err := Encode(w, lsn, records, c); err != nil {
		_ = w.Close()
		_ = store.Delete(ctx, name)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("commit %s: %w", name, err)
	}

	if err := store.Put(ctx, blobstore.CurrentName, []byte(name)); err != nil {
		return "", fmt.Errorf("update %s: %w", blobstore.CurrentName, err)
	}
	return name, nil
}

// Current returns the name CURRENT points at.
func Current(ctx context.Context, store blobstore.BlobStore) (string, error) {
	b, err := blobstore.ReadAll(ctx, store, blobstore.CurrentName)
	if errors.Is(err, blobstore.ErrNotFound) {
		return "", ErrNoCheckpoint
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// LoadCurrent loads the checkpoint CURRENT points at.
func LoadCurrent(ctx context.Context, store blobstore.BlobStore) (*Checkpoint, error) {
	name, err := Current(ctx, store)
	if err != nil {
		return nil, err
	}
	return Load(ctx, store, name)
}

// Load loads the named checkpoint.
func Load(ctx context.Context, store blobstore.BlobStore, name string) (*Checkpoint, error) {
	b, err := store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer func() { _ = b.Close() }()

	cp, err := Decode(blobstore.NewReader(ctx, b))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if lsn, ok := ParseName(name); ok && lsn != cp.LSN {
		return nil, fmt.Errorf("%w: %s holds LSN %d", ErrInvalidHeader, name, cp.LSN)
	}
	return cp, nil
}

// List returns checkpoint names in ascending LSN order.
func List(ctx context.Context, store blobstore.BlobStore) ([]string, error) {
	names, err := store.List(ctx, Prefix)
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, n := range names {
		if _, ok := ParseName(n); ok {
			out = append(out, n)
		}
	}
	// Zero-padded LSNs sort lexicographically.
	return out, nil
}

// Prune deletes all but the newest keep checkpoints. The checkpoint CURRENT
// points at is never deleted. It returns the deleted names.
func Prune(ctx context.Context, store blobstore.BlobStore, keep int) ([]string, error) {
	keep = max(keep, 1)

	names, err := List(ctx, store)
	if err != nil {
		return nil, err
	}
	if len(names) <= keep {
		return nil, nil
	}
	current, err := Current(ctx, store)
	if err != nil && !errors.Is(err, ErrNoCheckpoint) {
		return nil, err
	}

	var victims []string
	for _, n := range names[:len(names)-keep] {
		if n != current {
			victims = append(victims, n)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, n := range victims {
		g.Go(func() error {
			return store.Delete(gctx, n)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return victims, nil
}
