package vmem

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"
)

// Reservation is a fixed address range carved out at construction.
type Reservation struct {
	data     []byte
	pageSize int
	closed   atomic.Bool
	release  func([]byte) error
}

// PageSize returns the granularity of commit and protect operations.
func PageSize() int {
	return os.Getpagesize()
}

// Reserve claims size bytes of address space, rounded up to whole pages.
// The range is inaccessible until committed.
func Reserve(size int) (*Reservation, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	pageSize := PageSize()
	size = (size + pageSize - 1) &^ (pageSize - 1)

	data, release, err := osReserve(size)
	if err != nil {
		return nil, fmt.Errorf("vmem: reserve %d bytes: %w", size, err)
	}

	return &Reservation{
		data:     data,
		pageSize: pageSize,
		release:  release,
	}, nil
}

// Size returns the reserved size in bytes.
func (r *Reservation) Size() int {
	return len(r.data)
}

// Base returns the first address of the reservation.
func (r *Reservation) Base() unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(r.data)) //nolint:gosec // base of a fixed reservation
}

// Commit makes [offset, offset+size) readable and writable.
func (r *Reservation) Commit(offset, size int) error {
	b, err := r.span(offset, size)
	if err != nil {
		return err
	}
	return osCommit(b)
}

// Decommit releases the physical pages of [offset, offset+size) and makes the
// range inaccessible. A later Commit yields zeroed or stale memory; callers
// reinitialize what they commit.
func (r *Reservation) Decommit(offset, size int) error {
	b, err := r.span(offset, size)
	if err != nil {
		return err
	}
	return osDecommit(b)
}

// Protect changes the access mode of committed pages.
func (r *Reservation) Protect(offset, size int, prot Protection) error {
	b, err := r.span(offset, size)
	if err != nil {
		return err
	}
	return osProtect(b, prot)
}

// Close releases the whole reservation. It is idempotent.
func (r *Reservation) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	if r.release != nil {
		return r.release(r.data)
	}
	return nil
}

func (r *Reservation) span(offset, size int) ([]byte, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	if offset < 0 || size <= 0 || offset > len(r.data)-size {
		return nil, ErrOutOfBounds
	}
	if offset%r.pageSize != 0 || size%r.pageSize != 0 {
		return nil, ErrUnaligned
	}
	return r.data[offset : offset+size : offset+size], nil
}
