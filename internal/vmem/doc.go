// Package vmem provides a fixed virtual-memory reservation with page-granular
// commit, decommit and protection.
//
// # Overview
//
// A Reservation claims one contiguous address range up front. Nothing in the
// range is accessible until it is committed. Because the range never moves,
// offsets into it (and every index derived from them) stay valid for the
// lifetime of the reservation:
//
//	r, err := vmem.Reserve(64 << 20)
//	if err != nil { ... }
//	defer r.Close()
//
//	// Make the first 64 KiB readable and writable.
//	if err := r.Commit(0, 64<<10); err != nil { ... }
//
//	// Release the physical pages again; the range stays reserved.
//	_ = r.Decommit(0, 64<<10)
//
// # Platform Support
//
//   - Unix: mmap(2) with PROT_NONE, mprotect(2) to commit, madvise(2) to decommit
//   - Windows: VirtualAlloc with MEM_RESERVE / MEM_COMMIT, VirtualFree(MEM_DECOMMIT)
//   - Other: a heap-backed range where commit and protect are bookkeeping only
//
// # Thread Safety
//
// Commit, Decommit and Protect on disjoint ranges may run concurrently. Close
// is idempotent; callers must not touch the memory after it returns.
package vmem
