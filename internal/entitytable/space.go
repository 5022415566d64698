package entitytable

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
)

const (
	notCompactingMarker     uint32 = math.MaxUint32
	compactionAbortedMarker uint32 = 1 << 31
)

// Space is a set of segments with its own freelist. Every entry belongs to
// exactly one space for its lifetime; the garbage collector sweeps spaces
// independently.
type Space struct {
	name              string
	owner             any
	readOnly          bool
	entriesPerSegment uint32

	// mu serializes allocation, growth and sweeping.
	mu           sync.Mutex
	freelistHead atomic.Uint64
	segments     *roaring.Bitmap // segment numbers, guarded by mu

	startOfEvacuationArea atomic.Uint32
	allocateBlack         atomic.Bool

	// slotsMu guards the handle slots recorded while compacting. Slots are
	// kept as pointers so the host objects stay reachable until the sweep.
	slotsMu     sync.Mutex
	evacuations map[uint32]*Handle // evacuation entry index -> slot to patch
	invalidated map[*Handle]struct{}
}

func newSpace(owner any, name string, entriesPerSegment uint32, readOnly bool) *Space {
	s := &Space{
		name:              name,
		owner:             owner,
		readOnly:          readOnly,
		entriesPerSegment: entriesPerSegment,
		segments:          roaring.New(),
		evacuations:       make(map[uint32]*Handle),
		invalidated:       make(map[*Handle]struct{}),
	}
	s.startOfEvacuationArea.Store(notCompactingMarker)
	return s
}

// Name returns the name given at creation.
func (s *Space) Name() string { return s.name }

// IsReadOnly reports whether s is the table's read-only space.
func (s *Space) IsReadOnly() bool { return s.readOnly }

// FreelistLength returns the number of free entries. Lock-free; the value
// may be stale by the time it is used.
func (s *Space) FreelistLength() uint32 {
	h := s.loadHead()
	if h.forbidsAllocation() {
		return 0
	}
	return h.length()
}

// Capacity returns the number of entries in the space's segments.
func (s *Space) Capacity() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacityLocked()
}

// NumSegments returns the number of segments owned by the space.
func (s *Space) NumSegments() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.segments.GetCardinality())
}

// Contains reports whether index lies in one of the space's segments.
func (s *Space) Contains(index uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.segments.Contains(index / s.entriesPerSegment)
}

// IsCompacting reports whether an evacuation area is set, aborted or not.
func (s *Space) IsCompacting() bool {
	return s.startOfEvacuationArea.Load() != notCompactingMarker
}

// CompactingWasAborted reports whether the current compaction was aborted.
func (s *Space) CompactingWasAborted() bool {
	start := s.startOfEvacuationArea.Load()
	return start != notCompactingMarker && start&compactionAbortedMarker != 0
}

// StartOfEvacuationArea returns the first evacuated index and whether the
// space is compacting.
func (s *Space) StartOfEvacuationArea() (uint32, bool) {
	start := s.startOfEvacuationArea.Load()
	if start == notCompactingMarker {
		return 0, false
	}
	return start &^ compactionAbortedMarker, true
}

// AllocateBlack reports whether new entries are born marked.
func (s *Space) AllocateBlack() bool { return s.allocateBlack.Load() }

// SetAllocatingBlack switches black allocation. The collector enables it for
// the duration of incremental marking.
func (s *Space) SetAllocatingBlack(black bool) { s.allocateBlack.Store(black) }

func (s *Space) loadHead() freelistHead { return freelistHead(s.freelistHead.Load()) }

func (s *Space) storeHead(h freelistHead) { s.freelistHead.Store(uint64(h)) }

func (s *Space) capacityLocked() uint32 {
	return uint32(s.segments.GetCardinality()) * s.entriesPerSegment
}

func (s *Space) startCompacting(start uint32) {
	s.startOfEvacuationArea.Store(start)
}

// abortCompacting keeps the boundary, with the aborted bit set, until the
// sweep frees the evacuation entries created so far. It reports whether this
// call aborted.
func (s *Space) abortCompacting(start uint32) bool {
	return s.startOfEvacuationArea.CompareAndSwap(start, start|compactionAbortedMarker)
}

// stopCompacting ends compaction and returns the boundary it had.
func (s *Space) stopCompacting() (start uint32, compacting, aborted bool) {
	raw := s.startOfEvacuationArea.Swap(notCompactingMarker)
	if raw == notCompactingMarker {
		return 0, false, false
	}
	return raw &^ compactionAbortedMarker, true, raw&compactionAbortedMarker != 0
}

func (s *Space) recordEvacuationSlot(index uint32, slot *Handle) {
	s.slotsMu.Lock()
	s.evacuations[index] = slot
	s.slotsMu.Unlock()
}

func (s *Space) addInvalidatedField(slot *Handle) {
	s.slotsMu.Lock()
	s.invalidated[slot] = struct{}{}
	s.slotsMu.Unlock()
}

// fieldWasInvalidated requires slotsMu.
func (s *Space) fieldWasInvalidated(slot *Handle) bool {
	_, ok := s.invalidated[slot]
	return ok
}
