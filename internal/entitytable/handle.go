package entitytable

import (
	"sync/atomic"
	"unsafe"
)

// Handle names a table entry and is safe to store in untrusted memory.
type Handle uint32

const (
	// HandleShift is the number of low handle bits that must be zero.
	HandleShift = 8
	// NullHandle names the reserved null entry.
	NullHandle Handle = 0
	// MaxEntries bounds the capacity of any table.
	MaxEntries = 1 << (32 - HandleShift)

	handleLowMask = 1<<HandleShift - 1
)

// IndexToHandle encodes an entry index.
func IndexToHandle(index uint32) Handle {
	return Handle(index << HandleShift)
}

// HandleToIndex decodes a handle without validation.
func HandleToIndex(h Handle) uint32 {
	return uint32(h) >> HandleShift
}

// WellFormed reports whether h could have been produced by IndexToHandle.
func (h Handle) WellFormed() bool {
	return uint32(h)&handleLowMask == 0
}

// LoadHandle atomically reads the handle stored at loc.
func LoadHandle(loc *Handle) Handle {
	return Handle((*atomic.Uint32)(unsafe.Pointer(loc)).Load()) //nolint:gosec // Handle is a uint32
}

// StoreHandle atomically writes h to loc.
func StoreHandle(loc *Handle, h Handle) {
	(*atomic.Uint32)(unsafe.Pointer(loc)).Store(uint32(h)) //nolint:gosec // Handle is a uint32
}
