package cache

import (
	"strconv"

	"github.com/hupe1980/ledgerq/model"
)

// Key identifies a cached query result. Results are a pure function of the
// index version and the plan, so the LSN makes keys snapshot-safe.
type Key struct {
	LSN    uint64
	Plan   string
	Offset int
	Limit  int
}

func (k Key) String() string {
	b := make([]byte, 0, len(k.Plan)+32)
	b = strconv.AppendUint(b, k.LSN, 10)
	b = append(b, '|')
	b = strconv.AppendInt(b, int64(k.Offset), 10)
	b = append(b, '|')
	b = strconv.AppendInt(b, int64(k.Limit), 10)
	b = append(b, '|')
	b = append(b, k.Plan...)
	return string(b)
}

// Stats holds cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Coalesced int64
	Entries   int
	Bytes     int64
}

const (
	sliceOverhead  = 24
	recordOverhead = 96
)

// SizeOf estimates the retained size of a result in bytes.
func SizeOf(recs []*model.Record) int64 {
	n := int64(sliceOverhead + 8*len(recs))
	for _, r := range recs {
		n += recordOverhead + int64(len(r.ID.Name)+len(r.ID.Domain))
		for k, v := range r.Metadata {
			n += int64(len(k) + len(v) + 32)
		}
	}
	return n
}
