package entitytable

import "math"

// freelistHead packs (length << 32) | next so a pop or a publish is one
// atomic word.
type freelistHead uint64

const allocationForbiddenMarker uint32 = math.MaxUint32

func makeFreelistHead(next, length uint32) freelistHead {
	return freelistHead(uint64(length)<<32 | uint64(next))
}

func (f freelistHead) next() uint32   { return uint32(f) }
func (f freelistHead) length() uint32 { return uint32(f >> 32) }
func (f freelistHead) isEmpty() bool  { return f.length() == 0 }

func (f freelistHead) forbidsAllocation() bool {
	return f.next() == allocationForbiddenMarker
}
