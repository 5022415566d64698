package testutil

import (
	"math/rand"
	"sync"
)

// PointerMask keeps generated pointers inside the 48-bit value field and
// 16-byte aligned.
const PointerMask uint64 = (1<<48 - 1) &^ 0xf

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)), //nolint:gosec // deterministic test data
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Chance returns true with probability p.
func (r *RNG) Chance(p float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64() < p
}

// Pointer returns a non-zero value shaped like an aligned heap address.
func (r *RNG) Pointer() uint64 {
	for {
		if p := r.Uint64() & PointerMask; p != 0 {
			return p
		}
	}
}

// Pointers returns n distinct values from Pointer.
func (r *RNG) Pointers(n int) []uint64 {
	seen := make(map[uint64]struct{}, n)
	out := make([]uint64, 0, n)
	for len(out) < n {
		p := r.Pointer()
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// TagIn returns a tag in the inclusive range [minTag, maxTag].
func (r *RNG) TagIn(minTag, maxTag uint16) uint16 {
	return minTag + uint16(r.Intn(int(maxTag-minTag)+1))
}

// Shuffle randomizes the order of n elements with swap.
func (r *RNG) Shuffle(n int, swap func(i, j int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Shuffle(n, swap)
}
