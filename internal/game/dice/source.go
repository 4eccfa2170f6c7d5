package dice

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand"
	"sync"
)

type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
//
// Postcondition: Every value returned by Intn is in [0, n).
func NewCryptoSource() Source {
	return cryptoSource{}
}

// Intn panics when n <= 0 or crypto/rand fails.
func (cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("dice: crypto/rand failure: " + err.Error())
	}
	return int(v.Int64())
}

// SeededSource is a deterministic Source for tests and replays.
type SeededSource struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSeededSource returns a Source whose sequence is fully determined by seed.
func NewSeededSource(seed int64) *SeededSource {
	return &SeededSource{rng: mrand.New(mrand.NewSource(seed))}
}

// Intn returns the next value in [0, n).
func (s *SeededSource) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// FixedSource always returns the same face. Useful when a test needs a known roll.
type FixedSource int

// Intn returns int(f) clamped into [0, n).
func (f FixedSource) Intn(n int) int {
	v := int(f)
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}
