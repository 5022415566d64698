package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointer(t *testing.T) {
	rng := NewRNG(4711)

	for range 1000 {
		p := rng.Pointer()
		assert.NotZero(t, p)
		assert.Zero(t, p&0xf, "pointers are aligned")
		assert.Less(t, p, uint64(1)<<48)
	}
}

func TestPointers_Distinct(t *testing.T) {
	rng := NewRNG(4711)

	ps := rng.Pointers(500)
	seen := make(map[uint64]struct{}, len(ps))
	for _, p := range ps {
		seen[p] = struct{}{}
	}
	assert.Len(t, seen, 500)
}

func TestTagIn(t *testing.T) {
	rng := NewRNG(4711)

	for range 1000 {
		tag := rng.TagIn(3, 9)
		assert.GreaterOrEqual(t, tag, uint16(3))
		assert.LessOrEqual(t, tag, uint16(9))
	}
	assert.Equal(t, uint16(5), rng.TagIn(5, 5))
}

func TestReset(t *testing.T) {
	rng := NewRNG(42)
	first := rng.Uint64()
	rng.Reset()
	assert.Equal(t, first, rng.Uint64())
	assert.Equal(t, int64(42), rng.Seed())
}
