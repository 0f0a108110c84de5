package rng

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestSameSeedSameSequence(t *testing.T) {
	a := New(1234)
	b := New(1234)
	for i := 0; i < 1000; i++ {
		if x, y := a.Uint32(), b.Uint32(); x != y {
			t.Fatalf("sequences diverged at %d: %d != %d", i, x, y)
		}
	}
}

func TestResetRestartsSequence(t *testing.T) {
	r := New(99)
	first := []uint32{r.Uint32(), r.Uint32(), r.Uint32()}
	r.Reset(99)
	for i, want := range first {
		if got := r.Uint32(); got != want {
			t.Fatalf("value %d after reset: got %d want %d", i, got, want)
		}
	}
}

func TestFloat64Range(t *testing.T) {
	r := New(7)
	for i := 0; i < 10000; i++ {
		v := r.Float64()
		if v < 0 || v >= 1 {
			t.Fatalf("value out of range: %v", v)
		}
	}
}

func TestPickHonoursZeroWeights(t *testing.T) {
	r := New(5)
	for i := 0; i < 500; i++ {
		idx := r.Pick([]float64{0, 2, 0, 1})
		if idx != 1 && idx != 3 {
			t.Fatalf("picked zero-weight index %d", idx)
		}
	}
	if got := r.Pick([]float64{0, 0}); got != -1 {
		t.Fatalf("expected -1 for all-zero weights, got %d", got)
	}
}

func TestSeedFromPositions(t *testing.T) {
	a := SeedFromPositions(mgl64.Vec3{-3, 0, 0}, mgl64.Vec3{3, 0, 0})
	b := SeedFromPositions(mgl64.Vec3{-3, 0, 0}, mgl64.Vec3{3, 0, 0})
	c := SeedFromPositions(mgl64.Vec3{3, 0, 0}, mgl64.Vec3{-3, 0, 0})
	if a != b {
		t.Fatalf("same positions must hash equal")
	}
	if a == c {
		t.Fatalf("swapped positions should hash differently")
	}
	if a == 0 {
		t.Fatalf("seed must be non-zero")
	}
}

func TestCosmeticJitterBounds(t *testing.T) {
	c := NewCosmetic()
	for i := 0; i < 100; i++ {
		v := c.Jitter(10, 0.3)
		if v < 6.999 || v > 13.001 {
			t.Fatalf("jitter out of bounds: %v", v)
		}
	}
}
