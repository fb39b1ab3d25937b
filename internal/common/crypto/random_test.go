package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlibekovAA/crypt-ledger/internal/common/constants"
)

func TestSecureRandom_IntBetweenStaysInRange(t *testing.T) {
	r := NewSecureRandom()
	seenMin, seenMax := false, false
	for i := 0; i < 5000; i++ {
		v, err := r.IntBetween(20, 120)
		require.NoError(t, err)
		require.GreaterOrEqual(t, v, int64(20))
		require.LessOrEqual(t, v, int64(120))
		seenMin = seenMin || v == 20
		seenMax = seenMax || v == 120
	}
	assert.True(t, seenMin, "lower bound should be reachable")
	assert.True(t, seenMax, "upper bound should be reachable")
}

func TestSecureRandom_IntBetweenRejectsInvertedRange(t *testing.T) {
	_, err := NewSecureRandom().IntBetween(5, 1)
	assert.Error(t, err)
}

func TestSecureRandom_NewCode(t *testing.T) {
	code, err := NewSecureRandom().NewCode()
	require.NoError(t, err)
	require.Len(t, code, constants.ChallengeCodeLength)
	for _, r := range code {
		assert.True(t, strings.ContainsRune(constants.ChallengeCodeAlphabet, r), "unexpected rune %q", r)
	}
}

func TestBcryptHasher_RoundTrip(t *testing.T) {
	h := &BcryptHasher{Cost: 4}
	hash, err := h.Hash("pass12345")
	require.NoError(t, err)
	assert.NotEqual(t, "pass12345", hash)
	assert.NoError(t, h.Compare(hash, "pass12345"))
	assert.Error(t, h.Compare(hash, "pass1234"))
}
