package entitytable

import (
	"fmt"
	"time"
)

// SweepAndCompact frees every unmarked entry of s, resolves pending
// evacuations and rebuilds the freelist in ascending index order. It returns
// the number of live entries.
//
// Mutators must be stopped and marking finished. Segments that end up
// entirely free, and all segments of a successful evacuation area, are
// released to the reservation. After an aborted compaction nothing moves:
// evacuation entries are freed and their sources stay in place.
func (t *Table[E, P]) SweepAndCompact(s *Space) uint32 {
	t.checkSpace("sweep", s)
	if s.readOnly {
		t.Fatal("sweep", s, 0, fmt.Errorf("%w: read-only space is never swept", ErrInvariant))
	}

	began := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.slotsMu.Lock()
	defer s.slotsMu.Unlock()

	// Any allocation from here on is a bug in the caller.
	s.storeHead(makeFreelistHead(allocationForbiddenMarker, 0))

	start, compacting, aborted := s.stopCompacting()
	evacuating := compacting && !aborted
	if !compacting {
		start = notCompactingMarker
	}

	var (
		head, length uint32
		stats        = SweepStats{Space: s.name, Compacted: evacuating, Aborted: aborted}
		release      []uint32
	)

	it := s.segments.ReverseIterator()
	for it.HasNext() {
		seg := segmentAt(it.Next(), t.cfg.EntriesPerSegment)
		prevHead, prevLength := head, length

		for i := seg.last; ; i-- {
			e := t.At(i)
			switch key, ok := e.EvacuationEntryKey(); {
			case ok:
				if evacuating && t.resolveEvacuation(s, i, key, start) {
					stats.Evacuated++
				} else {
					e.MakeFreelistEntry(head)
					head = i
					length++
				}
			case e.IsFreelistEntry():
				e.MakeFreelistEntry(head)
				head = i
				length++
			case !e.IsMarked():
				e.MakeFreelistEntry(head)
				head = i
				length++
				stats.Reclaimed++
			default:
				e.Unmark()
			}
			if i == seg.first {
				break
			}
		}

		if length-prevLength == seg.size() || (evacuating && seg.first >= start) {
			head, length = prevHead, prevLength
			release = append(release, seg.number)
		}
	}

	for _, number := range release {
		t.releaseSegment(s, number)
		s.segments.Remove(number)
	}
	stats.SegmentsReleased = len(release)

	s.storeHead(makeFreelistHead(head, length))
	clear(s.evacuations)
	clear(s.invalidated)

	stats.Live = s.capacityLocked() - length
	stats.Duration = time.Since(began)

	if debugChecks {
		if err := t.verifyLocked(s); err != nil {
			t.Fatal("sweep", s, 0, err)
		}
	}

	t.observer.Swept(stats)
	return stats.Live
}

// resolveEvacuation moves the entry referenced from the slot recorded under
// key into newIndex and patches the handle. It reports false when the
// evacuation entry must be freed instead.
func (t *Table[E, P]) resolveEvacuation(s *Space, newIndex, key, start uint32) bool {
	slot, ok := s.evacuations[key]
	if !ok || key != newIndex {
		t.Fatal("evacuate", s, newIndex, fmt.Errorf("%w: evacuation entry with unknown slot key %d", ErrInvariant, key))
	}
	if s.fieldWasInvalidated(slot) {
		return false
	}

	old := LoadHandle(slot)
	oldIndex, ok := t.Index(old)
	if !ok || !s.segments.Contains(oldIndex/t.cfg.EntriesPerSegment) {
		t.Fatal("evacuate", s, newIndex, fmt.Errorf("%w: handle slot holds %#x", ErrInvariant, uint32(old)))
	}

	// The slot was marked twice; the first evacuation entry already moved it.
	if oldIndex < start {
		return false
	}
	if newIndex >= start {
		t.Fatal("evacuate", s, newIndex, fmt.Errorf("%w: evacuation entry inside evacuation area", ErrInvariant))
	}

	src := t.At(oldIndex)
	if !src.IsLive() {
		t.Fatal("evacuate", s, oldIndex, fmt.Errorf("%w: evacuating a dead entry", ErrInvariant))
	}

	src.Evacuate(t.At(newIndex))
	StoreHandle(slot, IndexToHandle(newIndex))
	return true
}
