package engine

// CompactionPolicy decides whether tombstoned entries should be removed.
type CompactionPolicy interface {
	// ShouldCompact is called with the live and tombstoned entry counts of
	// the current version.
	ShouldCompact(live, tombstones int) bool
}

// TombstoneRatioPolicy compacts once tombstones make up at least Ratio of
// all entries and there are at least MinTombstones of them.
type TombstoneRatioPolicy struct {
	Ratio         float64
	MinTombstones int
}

// DefaultCompactionPolicy is used when no policy is configured.
var DefaultCompactionPolicy = TombstoneRatioPolicy{Ratio: 0.25, MinTombstones: 64}

func (p TombstoneRatioPolicy) ShouldCompact(live, tombstones int) bool {
	if tombstones == 0 || tombstones < p.MinTombstones {
		return false
	}
	return float64(tombstones)/float64(live+tombstones) >= p.Ratio
}

// NeverCompact disables background compaction. Compact still works.
type NeverCompact struct{}

func (NeverCompact) ShouldCompact(int, int) bool { return false }
