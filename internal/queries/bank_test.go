package queries

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeeds_NoDuplicates(t *testing.T) {
	seen := make(map[string]bool)
	for _, q := range Seeds() {
		norm := strings.ToLower(q)
		assert.False(t, seen[norm], "duplicate seed %q", q)
		seen[norm] = true
	}
}

func TestSeeds_StableOrder(t *testing.T) {
	first := Seeds()
	second := Seeds()
	assert.Equal(t, first, second)

	// Broad city-wide terms come before neighborhood variants.
	assert.Equal(t, "Brazilian restaurant Boston", first[0])
}

func TestSeeds_CoverNeighborhoods(t *testing.T) {
	joined := strings.Join(Seeds(), "\n")
	for _, hood := range []string{"Allston", "Framingham", "Brockton"} {
		assert.Contains(t, joined, hood)
	}
}

func TestCount_MatchesSeeds(t *testing.T) {
	assert.Equal(t, len(Seeds()), Count())
	assert.Greater(t, Count(), 100, "the bank should give a run substantial coverage before expansion")
}
