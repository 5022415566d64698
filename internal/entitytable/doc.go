// Package entitytable implements the shared machinery of the external entity
// tables: a fixed reservation carved into segments, spaces with their own
// freelists, and the safepoint sweep that reclaims dead entries and compacts
// live ones out of an evacuation area.
//
// # Layout
//
//	reservation: [ seg 0 | seg 1 | seg 2 | ... | seg N-1 ]
//	               │        └── owned by a Space, committed on demand
//	               └── read-only space; index 0 is the null entry
//
// Entries are addressed by index; index i lives at base + i*entrySize and
// never moves. A Handle is the index shifted left by HandleShift, so the null
// handle 0 names the null entry and cannot alias a live one.
//
// # Garbage collection contract
//
//  1. Optionally StartCompactingIfNeeded(space) before marking.
//  2. Mark(space, index, slot) for every reachable handle; safe from many
//     goroutines.
//  3. SweepAndCompact(space) once, with mutators stopped.
//
// While compacting, marking an entry in the evacuation area allocates an
// evacuation entry below the area and records the handle slot in the space,
// keyed by that entry's index. Slots are held as *Handle, so the objects
// containing them stay reachable until the sweep. The sweep walks segments
// top-down, moves each evacuated payload into its new entry and rewrites the
// recorded slot. An aborted compaction moves nothing.
//
// # Failure model
//
// Capacity exhaustion and invariant violations are fatal: the configured
// fatal hook runs and the table panics with a *FatalError. Nothing is
// retried.
package entitytable
