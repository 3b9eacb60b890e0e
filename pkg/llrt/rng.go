package llrt

import (
	"math/rand/v2"
	"time"
)

// rngStreamKey separates split streams from their parent.
const rngStreamKey = 0x9e3779b97f4a7c15

// RNG is a pseudo-random generator safe for use inside kernels:
// a kernel clone splits its own stream in CloneKernel, so each worker
// draws from a private generator, and a split stream differs from its
// parent's.
type RNG struct {
	src *rand.Rand
}

// NewRNG creates a generator from a seed.
func NewRNG(seed uint64) *RNG {
	return &RNG{src: rand.New(rand.NewPCG(seed, rngStreamKey))}
}

func newTimeSeededRNG() *RNG {
	return NewRNG(uint64(time.Now().UnixNano()))
}

// Split derives an independent stream. The child's seed is drawn from
// this generator, so splitting is reproducible under a fixed seed.
func (r *RNG) Split() *RNG {
	return NewRNG(r.src.Uint64())
}

// Seed resets the generator.
func (r *RNG) Seed(seed uint64) {
	r.src = rand.New(rand.NewPCG(seed, rngStreamKey))
}

// Uint64 returns a uniformly random uint64.
func (r *RNG) Uint64() uint64 {
	return r.src.Uint64()
}

// IntN returns a uniformly random int in [0, n).
func (r *RNG) IntN(n int) int {
	return r.src.IntN(n)
}

// Int64N returns a uniformly random int64 in [0, n).
func (r *RNG) Int64N(n int64) int64 {
	return r.src.Int64N(n)
}

// Float64 returns a uniformly random float64 in [0, 1).
func (r *RNG) Float64() float64 {
	return r.src.Float64()
}

// Float32 returns a uniformly random float32 in [0, 1).
func (r *RNG) Float32() float32 {
	return r.src.Float32()
}

// UniformFloat32 returns a uniformly random float32 in [lo, hi).
func (r *RNG) UniformFloat32(lo, hi float32) float32 {
	return lo + (hi-lo)*r.src.Float32()
}

// NormFloat64 returns a normally distributed float64 with the given
// mean and standard deviation.
func (r *RNG) NormFloat64(mean, stddev float64) float64 {
	return mean + stddev*r.src.NormFloat64()
}

// NormFloat32 returns a normally distributed float32.
func (r *RNG) NormFloat32(mean, stddev float32) float32 {
	return float32(r.NormFloat64(float64(mean), float64(stddev)))
}
