package crypto

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/AlibekovAA/crypt-ledger/internal/common/constants"
)

type CodeGenerator interface {
	NewCode() (string, error)
}

type RandomSource interface {
	// IntBetween returns a uniformly distributed integer in [min, max].
	IntBetween(min, max int64) (int64, error)
}

type SecureRandom struct{}

func NewSecureRandom() *SecureRandom {
	return &SecureRandom{}
}

func (SecureRandom) IntBetween(min, max int64) (int64, error) {
	if max < min {
		return 0, fmt.Errorf("invalid range [%d, %d]", min, max)
	}
	n, err := rand.Int(rand.Reader, big.NewInt(max-min+1))
	if err != nil {
		return 0, err
	}
	return min + n.Int64(), nil
}

func (s SecureRandom) NewCode() (string, error) {
	alphabet := constants.ChallengeCodeAlphabet
	var b strings.Builder
	b.Grow(constants.ChallengeCodeLength)
	for i := 0; i < constants.ChallengeCodeLength; i++ {
		idx, err := s.IntBetween(0, int64(len(alphabet)-1))
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[idx])
	}
	return b.String(), nil
}
