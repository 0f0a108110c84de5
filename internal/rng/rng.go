// Package rng provides the seeded generator used for every gameplay-affecting
// random decision, and a separate source for cosmetic variation.
package rng

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"
)

// RNG is a mulberry32 generator. Its whole state is one uint32, so it can be
// copied into snapshots and replays.
type RNG struct {
	State uint32 `json:"state" msgpack:"state"`
}

// New returns a generator seeded with seed.
func New(seed uint32) *RNG {
	return &RNG{State: seed}
}

// Reset reseeds the generator.
func (r *RNG) Reset(seed uint32) {
	r.State = seed
}

// Uint32 advances the generator.
func (r *RNG) Uint32() uint32 {
	r.State += 0x6D2B79F5
	z := r.State
	z = (z ^ (z >> 15)) * (z | 1)
	z ^= z + (z^(z>>7))*(z|61)
	return z ^ (z >> 14)
}

// Float64 returns a value in [0, 1).
func (r *RNG) Float64() float64 {
	return float64(r.Uint32()) / 4294967296.0
}

// Chance reports true with probability p.
func (r *RNG) Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return r.Float64() < p
}

// Intn returns a value in [0, n). n <= 0 yields 0.
func (r *RNG) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.Float64() * float64(n))
}

// Range returns a value in [lo, hi).
func (r *RNG) Range(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + r.Float64()*(hi-lo)
}

// Pick returns an index chosen proportionally to weights. Non-positive
// weights are never picked; all-zero weights yield -1.
func (r *RNG) Pick(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return -1
	}
	roll := r.Float64() * total
	last := -1
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		last = i
		if roll < w {
			return i
		}
		roll -= w
	}
	return last
}

// SeedFromPositions hashes the initial fighter positions (FNV-1a over their
// IEEE-754 bits) into a match seed. A zero hash is replaced by 1.
func SeedFromPositions(positions ...mgl64.Vec3) uint32 {
	hasher := fnv.New32a()
	var buf [8]byte
	for _, p := range positions {
		for _, c := range p {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(c))
			hasher.Write(buf[:])
		}
	}
	sum := hasher.Sum32()
	if sum == 0 {
		sum = 1
	}
	return sum
}

// Cosmetic is a non-deterministic source for visual-only variation. It must
// never feed the simulation.
type Cosmetic struct {
	src *rand.Rand
}

func NewCosmetic() *Cosmetic {
	return &Cosmetic{src: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

func (c *Cosmetic) Float64() float64 {
	return c.src.Float64()
}

// Jitter returns base scaled by a random factor in [1-spread, 1+spread].
func (c *Cosmetic) Jitter(base, spread float64) float64 {
	return base * (1 + (c.Float64()*2-1)*spread)
}
