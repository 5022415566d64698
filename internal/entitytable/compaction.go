package entitytable

import "fmt"

// Mark sets the mark bit of the entry at index, recording slot as the
// handle slot that references it. Safe for concurrent use by many markers.
//
// If s is compacting and index lies in the evacuation area, an entry below
// the area is reserved as an evacuation entry and slot is kept until the
// sweep patches it. When slot is nil or no such entry exists compaction is
// aborted and the entry stays where it is.
func (t *Table[E, P]) Mark(s *Space, index uint32, slot *Handle) {
	if t.IsReadOnlyIndex(index) {
		return
	}
	if debugChecks && !s.Contains(index) {
		t.Fatal("mark", s, index, fmt.Errorf("%w: entry not in space", ErrInvariant))
	}

	t.maybeCreateEvacuationEntry(s, index, slot)
	t.At(index).Mark()
}

func (t *Table[E, P]) maybeCreateEvacuationEntry(s *Space, index uint32, slot *Handle) {
	// Not compacting or aborted: both read as a boundary above every index.
	start := s.startOfEvacuationArea.Load()
	if index < start {
		return
	}

	if slot == nil {
		if s.abortCompacting(start) {
			t.observer.CompactionAborted(s.name, start)
		}
		return
	}

	newIndex, ok := t.allocateEntryBelow(s, start)
	if !ok {
		if s.abortCompacting(start) {
			t.observer.CompactionAborted(s.name, start)
		}
		return
	}
	s.recordEvacuationSlot(newIndex, slot)
	t.At(newIndex).MakeEvacuationEntry(newIndex)
}

// allocateEntryBelow pops the freelist head if it lies below threshold.
// The freelist is sorted after a sweep, so a head at or above the threshold
// means no free entry below it remains.
func (t *Table[E, P]) allocateEntryBelow(s *Space, threshold uint32) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	head := s.loadHead()
	if head.isEmpty() || head.forbidsAllocation() || head.next() >= threshold {
		return 0, false
	}

	index := head.next()
	s.storeHead(makeFreelistHead(t.At(index).NextFreelistEntryIndex(), head.length()-1))
	return index, true
}

// StartCompactingIfNeeded decides whether the next cycle evacuates the top
// segments of s, and if so sets the evacuation boundary. Call it before
// marking starts.
func (t *Table[E, P]) StartCompactingIfNeeded(s *Space) bool {
	t.checkSpace("compact", s)
	if s.readOnly || t.cfg.Compaction == CompactionNever {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.IsCompacting() {
		return false
	}

	numSegments := uint32(s.segments.GetCardinality())
	if numSegments < minSegmentsForCompaction {
		return false
	}

	free := s.loadHead().length()
	total := numSegments * t.cfg.EntriesPerSegment
	toEvacuate := (free / 2) / t.cfg.EntriesPerSegment

	if t.cfg.Compaction == CompactionStress {
		toEvacuate = max(toEvacuate, 1)
	} else if uint64(free)*100 < uint64(total)*minFreePercentForCompaction || toEvacuate == 0 {
		return false
	}
	toEvacuate = min(toEvacuate, numSegments-1)

	it := s.segments.ReverseIterator()
	var first uint32
	for range toEvacuate {
		first = it.Next()
	}

	start := first * t.cfg.EntriesPerSegment
	s.startCompacting(start)
	t.observer.CompactionStarted(s.name, start, int(toEvacuate))
	return true
}

// NotifyFieldInvalidated records that slot no longer belongs to a live
// object. An evacuation entry recorded for it is dropped at the next sweep.
func (t *Table[E, P]) NotifyFieldInvalidated(s *Space, slot *Handle) {
	t.checkSpace("invalidate", s)
	if slot == nil || !s.IsCompacting() {
		return
	}
	s.addInvalidatedField(slot)
}
