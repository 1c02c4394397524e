// Package rand provides the random number sources that simulation callbacks
// draw from. A Source reproduces the streams of the reference simulator bit
// for bit: uniform values combine two 32-bit Mersenne Twister draws into a
// 53-bit mantissa, and normal deviates come from the polar Box-Muller method
// with the second value of each accepted pair kept for the next call.
//
// A Source is not safe for concurrent use. Each goroutine that needs random
// numbers should own its own Source, for example one element of a Pool.
package rand

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mathext/prng"
)

const (
	// 2^26 and 2^53, the weights of the two draws in Uniform.
	uniformHighWeight = 67108864.0
	uniformScale      = 9007199254740992.0

	// maxGaussianTrials bounds the Box-Muller rejection loop. The accept
	// region covers pi/4 of the square, so reaching it means the engine is
	// broken.
	maxGaussianTrials = 1 << 20
)

// An Engine produces uniformly distributed 32-bit words.
type Engine interface {
	Uint32() uint32
}

// Source produces uniform and standard normal values.
type Source struct {
	mt     *prng.MT19937
	engine Engine

	storedGauss    float64
	hasStoredGauss bool
}

// NewSource creates a Source seeded from the operating system's entropy.
func NewSource() *Source {
	s := &Source{mt: prng.NewMT19937()}
	s.engine = s.mt
	s.Seed()

	return s
}

// NewSourceWithSeed creates a Source with a deterministic seed.
func NewSourceWithSeed(seed uint32) *Source {
	s := &Source{mt: prng.NewMT19937()}
	s.engine = s.mt
	s.SeedWith(seed)

	return s
}

// NewSourceWithEngine creates a Source that draws from the given engine.
// Seeding such a source only clears the stored deviate.
func NewSourceWithEngine(engine Engine) *Source {
	return &Source{engine: engine}
}

// Seed reseeds the source from the operating system's entropy.
func (s *Source) Seed() {
	s.SeedWith(EntropySeed())
}

// SeedWith reseeds the source deterministically.
func (s *Source) SeedWith(seed uint32) {
	if s.mt != nil {
		s.mt.Seed(uint64(seed))
	}

	s.hasStoredGauss = false
}

// Uint32 returns the next raw word of the engine.
func (s *Source) Uint32() uint32 {
	return s.engine.Uint32()
}

// Uniform returns a value in [0, 1) with 53 bits of resolution, made from
// two consecutive engine words reduced to 27 and 26 bits.
func (s *Source) Uniform() float64 {
	a := s.engine.Uint32() >> 5
	b := s.engine.Uint32() >> 6

	return (float64(a)*uniformHighWeight + float64(b)) / uniformScale
}

// Gaussian returns a standard normal deviate.
func (s *Source) Gaussian() float64 {
	if s.hasStoredGauss {
		s.hasStoredGauss = false
		return s.storedGauss
	}

	var x1, x2, r2 float64
	for trial := 0; ; trial++ {
		if trial == maxGaussianTrials {
			panic(fmt.Sprintf(
				"rand: no Box-Muller pair accepted after %d trials", trial))
		}

		x1 = 2.0*s.Uniform() - 1.0
		x2 = 2.0*s.Uniform() - 1.0
		r2 = x1*x1 + x2*x2

		if r2 < 1.0 && r2 != 0.0 {
			break
		}
	}

	f := math.Sqrt(-2.0 * math.Log(r2) / r2)

	s.storedGauss = f * x1
	s.hasStoredGauss = true

	return f * x2
}

// HasStoredGaussian tells if the next Gaussian call returns without drawing
// from the engine.
func (s *Source) HasStoredGaussian() bool {
	return s.hasStoredGauss
}

// EntropySeed returns a seed read from the operating system's entropy.
func EntropySeed() uint32 {
	var buf [4]byte
	if _, err := crand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("rand: cannot read entropy: %v", err))
	}

	return binary.LittleEndian.Uint32(buf[:])
}
