package scripting

import (
	"crypto/rand"
	"math/big"
)

// Source yields uniformly distributed integers for engine.random.
type Source interface {
	// Intn returns a value in [0, n).
	Intn(n int) int
}

// cryptoSource implements Source using crypto/rand.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
//
// Postcondition: Every value returned by Intn is in [0, n).
func NewCryptoSource() Source {
	return cryptoSource{}
}

// Intn panics if n <= 0 or crypto/rand fails.
func (cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("scripting: Intn called with n <= 0")
	}
	val, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("scripting: crypto/rand failure: " + err.Error())
	}
	return int(val.Int64())
}

// SetRandom replaces the source used by engine.random in scripts loaded
// afterwards.
//
// Precondition: src must be non-nil.
func (m *Manager) SetRandom(src Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.random = src
}

func (m *Manager) randomSource() Source {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.random
}
