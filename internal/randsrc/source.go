// Package randsrc isolates randomness behind a small seedable interface so
// every engine call can be replayed exactly for a given seed.
package randsrc

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	mathrand "math/rand"
	"sync"
)

// Source is the only way engines draw random numbers.
type Source interface {
	// Float64 returns a value in [0,1).
	Float64() float64
	// Intn returns a value in [0,n). n <= 0 yields 0.
	Intn(n int) int
	// Read fills p with pseudo-random bytes; used for deterministic ids.
	Read(p []byte) (int, error)
}

// Seeded is a mutex-guarded math/rand generator.
type Seeded struct {
	mu   sync.Mutex
	seed int64
	rand *mathrand.Rand
}

func New(seed int64) *Seeded {
	return &Seeded{
		seed: seed,
		rand: mathrand.New(mathrand.NewSource(seed)),
	}
}

func (s *Seeded) Seed() int64 { return s.seed }

func (s *Seeded) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Float64()
}

func (s *Seeded) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Intn(n)
}

func (s *Seeded) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Read(p)
}

// NewSeed generates a high-entropy seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Sequence replays a fixed list of floats in order, wrapping around.
// Tests use it to force a specific branch.
type Sequence struct {
	mu     sync.Mutex
	values []float64
	next   int
}

func NewSequence(values ...float64) *Sequence {
	if len(values) == 0 {
		values = []float64{0}
	}
	return &Sequence{values: values}
}

func (s *Sequence) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

func (s *Sequence) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	v := int(s.Float64() * float64(n))
	if v >= n {
		v = n - 1
	}
	if v < 0 {
		v = 0
	}
	return v
}

func (s *Sequence) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(s.Intn(256))
	}
	return len(p), nil
}

// Float64Or draws from src, or returns fallback when src is nil.
func Float64Or(src Source, fallback float64) float64 {
	if src == nil {
		return fallback
	}
	return src.Float64()
}

// IntnOr draws from src, or returns fallback when src is nil.
func IntnOr(src Source, n, fallback int) int {
	if src == nil {
		return fallback
	}
	return src.Intn(n)
}
