// Package testutil provides testing utilities for exttable.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded, goroutine-safe random source and generators for
// values the tables can store.
//
// # Random Values
//
//	rng := testutil.NewRNG(seed)
//	ptr := rng.Pointer()          // 16-byte aligned, fits the 48-bit field
//	tag := rng.TagIn(1, 100)      // uniform in [1, 100]
//	if rng.Chance(0.3) { ... }    // true 30% of the time
package testutil
