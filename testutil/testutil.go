package testutil

import (
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"sync"

	"github.com/hupe1980/ledgerq/filter"
	"github.com/hupe1980/ledgerq/model"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)), //nolint:gosec // deterministic test data
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Word returns a random lowercase word with length in [minLen, maxLen].
func (r *RNG) Word(minLen, maxLen int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := minLen
	if maxLen > minLen {
		n += r.rand.Intn(maxLen - minLen + 1)
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[r.rand.Intn(len(alphabet))]
	}
	return string(b)
}

// Domains returns n distinct domain names d0..d(n-1).
func Domains(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("d%d", i)
	}
	return out
}

// AccountIDs returns n unique account ids spread over the given number of
// domains. Names are random, so prefixes collide across domains.
func (r *RNG) AccountIDs(n, domains int) []model.AccountID {
	doms := Domains(max(domains, 1))
	seen := make(map[string]struct{}, n)
	out := make([]model.AccountID, 0, n)
	for len(out) < n {
		id := model.AccountID{Name: r.Word(1, 6), Domain: doms[r.Intn(len(doms))]}
		if _, ok := seen[id.String()]; ok {
			continue
		}
		seen[id.String()] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Shuffle returns a shuffled copy of ids.
func (r *RNG) Shuffle(ids []model.AccountID) []model.AccountID {
	out := slices.Clone(ids)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Match returns the ids matching expr in forward lexicographic order of
// their canonical form.
func Match(ids []model.AccountID, expr filter.Expr) []model.AccountID {
	out := make([]model.AccountID, 0)
	for _, id := range ids {
		if expr.Match(id.String()) {
			out = append(out, id)
		}
	}
	Sort(out)
	return out
}

// Sort orders ids by their canonical form.
func Sort(ids []model.AccountID) {
	slices.SortFunc(ids, func(a, b model.AccountID) int {
		return strings.Compare(a.String(), b.String())
	})
}

// Strings returns the canonical forms of ids.
func Strings(ids []model.AccountID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
