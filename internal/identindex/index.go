package identindex

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"slices"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/btree"

	"github.com/hupe1980/ledgerq/model"
)

const degree = 32

var (
	// ErrDuplicateID is matched by every *DuplicateIDError.
	ErrDuplicateID = errors.New("duplicate account id")

	// ErrNotFound is returned when a record to tombstone is absent.
	ErrNotFound = errors.New("account not found")

	// ErrRowSpaceExhausted is returned when no more row ids can be assigned.
	ErrRowSpaceExhausted = errors.New("row id space exhausted")
)

// DuplicateIDError reports an insert of an id that already has a live record.
type DuplicateIDError struct {
	ID model.AccountID
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate account id %s", e.ID)
}

// Is makes errors.Is(err, ErrDuplicateID) hold.
func (e *DuplicateIDError) Is(target error) bool { return target == ErrDuplicateID }

type entry struct {
	key string
	rec *model.Record
}

func lessEntry(a, b entry) bool { return a.key < b.key }

// Version is an immutable state of the index.
//
// Read methods are safe for concurrent use. Mutating methods return a new
// Version and must be serialized by the caller.
type Version struct {
	lsn        uint64
	forward    *btree.BTreeG[entry]
	reverse    *btree.BTreeG[entry]
	tombstones *roaring.Bitmap
	live       int
	nextRow    model.RowID
}

// New returns an empty version at LSN 0.
func New() *Version {
	return &Version{
		forward:    btree.NewG(degree, lessEntry),
		reverse:    btree.NewG(degree, lessEntry),
		tombstones: roaring.New(),
	}
}

// Build bulk-loads records into a new version at lsn.
// Row ids are reassigned in input order.
func Build(records []model.Record, lsn uint64) (*Version, error) {
	v := New()
	v.lsn = lsn
	for i := range records {
		if err := v.put(records[i]); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// derive returns a writable copy sharing structure with v.
func (v *Version) derive(lsn uint64) *Version {
	return &Version{
		lsn:        lsn,
		forward:    v.forward.Clone(),
		reverse:    v.reverse.Clone(),
		tombstones: v.tombstones,
		live:       v.live,
		nextRow:    v.nextRow,
	}
}

func (v *Version) put(rec model.Record) error {
	key := rec.ID.String()
	if old, ok := v.forward.Get(entry{key: key}); ok {
		if !v.isDead(old.rec.Row) {
			return &DuplicateIDError{ID: rec.ID}
		}
		// The replaced row is no longer reachable from either tree.
		v.tombstones = v.tombstones.Clone()
		v.tombstones.Remove(uint32(old.rec.Row))
	}
	if v.nextRow == math.MaxUint32 {
		return ErrRowSpaceExhausted
	}

	rec.Row = v.nextRow
	v.nextRow++

	r := rec
	v.forward.ReplaceOrInsert(entry{key: key, rec: &r})
	v.reverse.ReplaceOrInsert(entry{key: reverseKey(key), rec: &r})
	v.live++
	return nil
}

// Insert returns a new version at lsn containing rec.
// It fails with *DuplicateIDError if a live record with the same id exists.
func (v *Version) Insert(rec model.Record, lsn uint64) (*Version, error) {
	if old, ok := v.forward.Get(entry{key: rec.ID.String()}); ok && !v.isDead(old.rec.Row) {
		return nil, &DuplicateIDError{ID: rec.ID}
	}
	rec.LSN = lsn
	next := v.derive(lsn)
	if err := next.put(rec); err != nil {
		return nil, err
	}
	return next, nil
}

// Tombstone returns a new version at lsn in which id is no longer visible.
func (v *Version) Tombstone(id model.AccountID, lsn uint64) (*Version, error) {
	e, ok := v.forward.Get(entry{key: id.String()})
	if !ok || v.isDead(e.rec.Row) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := v.derive(lsn)
	next.tombstones = v.tombstones.Clone()
	next.tombstones.Add(uint32(e.rec.Row))
	next.live--
	return next, nil
}

// Compact returns a version without tombstoned entries. The LSN is kept:
// the visible content does not change. Returns v itself if there is
// nothing to remove.
func (v *Version) Compact() *Version {
	if v.tombstones.IsEmpty() {
		return v
	}
	next := v.derive(v.lsn)

	var dead []entry
	v.forward.Ascend(func(e entry) bool {
		if v.isDead(e.rec.Row) {
			dead = append(dead, e)
		}
		return true
	})
	for _, e := range dead {
		next.forward.Delete(e)
		next.reverse.Delete(entry{key: reverseKey(e.key)})
	}
	next.tombstones = roaring.New()
	return next
}

func (v *Version) isDead(row model.RowID) bool {
	return v.tombstones.Contains(uint32(row))
}

// LSN returns the commit sequence number of the version.
func (v *Version) LSN() uint64 { return v.lsn }

// Len returns the number of live records.
func (v *Version) Len() int { return v.live }

// Tombstones returns the number of tombstoned entries awaiting compaction.
func (v *Version) Tombstones() int { return int(v.tombstones.GetCardinality()) }

// NextRow returns the row id the next insert will receive.
func (v *Version) NextRow() model.RowID { return v.nextRow }

// LookupExact returns the live record for id.
func (v *Version) LookupExact(id model.AccountID) (*model.Record, bool) {
	return v.Get(id.String())
}

// Get returns the live record whose canonical key equals key.
// key need not be a valid account id; unparsable keys simply do not match.
func (v *Version) Get(key string) (*model.Record, bool) {
	e, ok := v.forward.Get(entry{key: key})
	if !ok || v.isDead(e.rec.Row) {
		return nil, false
	}
	return e.rec, true
}

// LookupPrefix yields live records whose canonical id starts with prefix,
// in forward lexicographic order. The returned records must not be modified.
func (v *Version) LookupPrefix(prefix string) iter.Seq[*model.Record] {
	return v.ascendPrefix(v.forward, prefix)
}

// LookupSuffix yields live records whose canonical id ends with suffix.
// Records come in reversed-key order, not forward order.
func (v *Version) LookupSuffix(suffix string) iter.Seq[*model.Record] {
	return v.ascendPrefix(v.reverse, reverseKey(suffix))
}

// Scan yields all live records in forward lexicographic order.
func (v *Version) Scan() iter.Seq[*model.Record] {
	return v.ascendPrefix(v.forward, "")
}

func (v *Version) ascendPrefix(tree *btree.BTreeG[entry], prefix string) iter.Seq[*model.Record] {
	return func(yield func(*model.Record) bool) {
		tree.AscendGreaterOrEqual(entry{key: prefix}, func(e entry) bool {
			if !strings.HasPrefix(e.key, prefix) {
				return false
			}
			if v.isDead(e.rec.Row) {
				return true
			}
			return yield(e.rec)
		})
	}
}

// reverseKey reverses s byte-wise. Identifiers compare as raw bytes, so the
// reversal does not need to respect rune boundaries.
func reverseKey(s string) string {
	b := []byte(s)
	slices.Reverse(b)
	return string(b)
}
