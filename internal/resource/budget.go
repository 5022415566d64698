package resource

import (
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ErrMemoryLimitExceeded is returned when a charge would exceed the limit.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Budget tracks committed memory against an optional hard limit.
type Budget struct {
	limit int64
	sem   *semaphore.Weighted // nil if unlimited
	used  atomic.Int64
	peak  atomic.Int64
}

// NewBudget creates a budget. A limit <= 0 means tracking only.
func NewBudget(limit int64) *Budget {
	b := &Budget{}
	if limit > 0 {
		b.limit = limit
		b.sem = semaphore.NewWeighted(limit)
	}
	return b
}

// Charge reserves bytes or fails with ErrMemoryLimitExceeded.
func (b *Budget) Charge(bytes int64) error {
	if b == nil || bytes <= 0 {
		return nil
	}

	if b.sem != nil && !b.sem.TryAcquire(bytes) {
		return ErrMemoryLimitExceeded
	}

	used := b.used.Add(bytes)
	for {
		peak := b.peak.Load()
		if used <= peak || b.peak.CompareAndSwap(peak, used) {
			break
		}
	}
	return nil
}

// Refund returns bytes previously charged.
func (b *Budget) Refund(bytes int64) {
	if b == nil || bytes <= 0 {
		return
	}
	if b.sem != nil {
		b.sem.Release(bytes)
	}
	b.used.Add(-bytes)
}

// Used returns the currently charged bytes.
func (b *Budget) Used() int64 {
	if b == nil {
		return 0
	}
	return b.used.Load()
}

// Peak returns the highest charge observed.
func (b *Budget) Peak() int64 {
	if b == nil {
		return 0
	}
	return b.peak.Load()
}

// Limit returns the hard limit, 0 if unlimited.
func (b *Budget) Limit() int64 {
	if b == nil {
		return 0
	}
	return b.limit
}
