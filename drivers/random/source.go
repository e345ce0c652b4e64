package random

import (
	cryptorand "crypto/rand"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// readEntropy seeds the secure generator. Tests replace it.
var readEntropy = cryptorand.Read

// newRand returns the generator named by kind. A seed only applies to the
// pseudo generator so that sweeps can be replayed.
func newRand(kind string, seed *int64) (*rand.Rand, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "pseudo", "math":
		s := uint64(time.Now().UnixNano())
		if seed != nil {
			s = uint64(*seed)
		}
		return rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15)), nil
	case "secure", "crypto":
		var seed [32]byte
		if _, err := readEntropy(seed[:]); err != nil {
			return nil, fmt.Errorf("secure source: %w", err)
		}
		return rand.New(rand.NewChaCha8(seed)), nil
	}
	return nil, fmt.Errorf("unknown random source %q", kind)
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

// uniformInt draws from the closed interval [lo, hi].
func uniformInt(rng *rand.Rand, lo, hi int64) (int64, error) {
	if lo == hi {
		return lo, nil
	}
	span := hi - lo + 1
	if span <= 0 {
		return 0, fmt.Errorf("integer range [%d, %d] is too wide", lo, hi)
	}
	return lo + rng.Int64N(span), nil
}

func word(rng *rand.Rand, length int, alphabet []rune) (string, error) {
	if len(alphabet) == 0 {
		return "", fmt.Errorf("alphabet must not be empty")
	}
	out := make([]rune, length)
	for i := range out {
		out[i] = alphabet[rng.IntN(len(alphabet))]
	}
	return string(out), nil
}
