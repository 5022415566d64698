// Package resource accounts the memory committed by entity tables.
//
// A Budget tracks committed bytes with an atomic counter and, when a hard
// limit is configured, a weighted semaphore. Charge never blocks: a table
// that cannot commit a segment has run out of memory, and the caller decides
// how fatal that is.
//
//	b := resource.NewBudget(64 << 20)
//	if err := b.Charge(segmentBytes); err != nil {
//	    // ErrMemoryLimitExceeded
//	}
//	defer b.Refund(segmentBytes)
//
// One Budget may be shared by several tables, for example all tables owned
// by one engine instance.
//
// # Nil Safety
//
// All methods accept a nil *Budget and behave as an unlimited, untracked
// budget.
package resource
