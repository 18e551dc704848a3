package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGameID(t *testing.T) {
	h, err := GameID("123e4567-e89b-12d3-a456-426614174000")
	require.NoError(t, err)
	assert.Equal(t,
		"0x123e4567e89b12d3a45642661417400000000000000000000000000000000000",
		h.Hex())
}

func TestGameIDDeterministic(t *testing.T) {
	a, err := GameID("9b2c3d4e-1111-2222-3333-444455556666")
	require.NoError(t, err)
	b, err := GameID("9b2c3d4e-1111-2222-3333-444455556666")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGameIDRejectsGarbage(t *testing.T) {
	_, err := GameID("not-a-uuid")
	assert.Error(t, err)
}
