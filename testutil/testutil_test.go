package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ledgerq/filter"
)

func TestAccountIDs(t *testing.T) {
	rng := NewRNG(4711)

	ids := rng.AccountIDs(200, 4)
	require.Len(t, ids, 200)

	seen := map[string]bool{}
	for _, id := range ids {
		assert.False(t, seen[id.String()], id.String())
		seen[id.String()] = true
		assert.True(t, strings.HasPrefix(id.Domain, "d"))
	}
}

func TestAccountIDs_Deterministic(t *testing.T) {
	a := NewRNG(1).AccountIDs(50, 3)
	b := NewRNG(1).AccountIDs(50, 3)
	assert.Equal(t, a, b)
}

func TestMatch(t *testing.T) {
	ids := NewRNG(7).AccountIDs(100, 5)
	got := Match(ids, filter.EndsWith{Suffix: "@d1"})

	for _, id := range got {
		assert.Equal(t, "d1", id.Domain)
	}
	assert.IsNonDecreasing(t, Strings(got))
}

func TestShuffle(t *testing.T) {
	rng := NewRNG(3)
	ids := rng.AccountIDs(20, 2)
	shuffled := rng.Shuffle(ids)
	assert.ElementsMatch(t, ids, shuffled)
}
