package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lferraz/leadscout/internal/types"
)

func TestScheduler_SeedOrderAndOrigin(t *testing.T) {
	s := NewScheduler([]string{"padaria", "churrascaria"})

	text, origin, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "padaria", text)
	assert.Equal(t, types.OriginSeed, origin)

	text, _, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, "churrascaria", text)

	assert.False(t, s.HasNext())
	_, _, err = s.Next()
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestScheduler_NormalizedDedup(t *testing.T) {
	s := NewScheduler([]string{"Acai Bowl", "acai  bowl", "ACAI BOWL "})

	assert.Equal(t, 1, s.Remaining())
}

func TestScheduler_AppendSkipsIssuedAndQueued(t *testing.T) {
	s := NewScheduler([]string{"padaria allston"})

	_, _, err := s.Next()
	require.NoError(t, err)

	added := s.Append([]string{
		"Padaria  Allston", // already issued, normalized match
		"mercado brasileiro",
		"mercado brasileiro", // duplicate within the batch
		"   ",
	})

	assert.Equal(t, 1, added)
	assert.Equal(t, 1, s.Remaining())

	text, origin, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "mercado brasileiro", text)
	assert.Equal(t, types.OriginGenerated, origin)
}

func TestScheduler_PositionAdvances(t *testing.T) {
	s := NewScheduler([]string{"a", "b"})
	assert.Equal(t, 0, s.Position())

	_, _, _ = s.Next()
	assert.Equal(t, 1, s.Position())
}
