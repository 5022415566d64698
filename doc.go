// Package exttable provides sandboxed external entity tables for Go.
//
// Memory that an attacker may read or corrupt never holds raw pointers to
// off-heap resources. It holds a Handle: a small integer naming a slot in a
// table that lives outside that memory. The slot stores the real pointer
// together with a type tag, and every read names the tags it accepts, so a
// forged or confused handle yields 0 instead of a pointer of the wrong type.
//
// Two tables share one engine:
//
//   - PointerTable stores tagged pointers to external objects.
//   - DispatchTable stores a code pointer, its parameter count and the
//     entrypoint calls jump to, with helpers that redirect the entrypoint
//     to a tiering trampoline without touching the code.
//
// # Quick Start
//
//	tbl, _ := exttable.New(exttable.WithLogger(exttable.NewTextLogger(slog.LevelInfo)))
//	defer tbl.Close()
//
//	young := tbl.NewSpace("young")
//	h := tbl.AllocateAndInitializeEntry(young, uint64(ptr), fileTag)
//	p := tbl.Get(h, exttable.Exactly(fileTag)) // 0 on tag mismatch
//
// # Garbage Collection
//
// Entries are reclaimed by the host's collector, one space at a time:
//
//	tbl.StartCompactingIfNeeded(young)   // optional, before marking
//	tbl.Mark(young, h, &obj.handle)      // for every reachable handle slot
//	live := tbl.SweepAndCompact(young)   // with mutators stopped
//
// Mark is safe from many goroutines; Marker runs it over a bounded worker
// pool. When compaction is active, live entries in the top segments of a
// space are moved down and the handle slots passed to Mark are rewritten by
// the sweep. The table keeps each such slot reachable until the sweep
// returns; mutators must write them with StoreHandle in the meantime.
//
// # Failure Model
//
// Reads fail closed. Capacity exhaustion and broken invariants are fatal:
// the configured fatal handler runs and the table panics with a
// *FatalError. Build with the exttable_debug tag to enable extra
// self-checks.
package exttable
