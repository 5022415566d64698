package entitytable

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// Iterate calls fn for every entry of s in ascending index order, skipping
// the null entry. The space mutex is held throughout, so fn must not
// allocate from s.
func (t *Table[E, P]) Iterate(s *Space, fn func(index uint32, e P)) {
	t.checkSpace("iterate", s)

	s.mu.Lock()
	defer s.mu.Unlock()

	it := s.segments.Iterator()
	for it.HasNext() {
		seg := segmentAt(it.Next(), t.cfg.EntriesPerSegment)
		for i := seg.first; ; i++ {
			if i != 0 {
				fn(i, t.At(i))
			}
			if i == seg.last {
				break
			}
		}
	}
}

// SpaceInfo is a point-in-time description of a space.
type SpaceInfo struct {
	Name           string
	ReadOnly       bool
	Segments       []uint32
	Capacity       uint32
	FreelistLength uint32
	Compacting     bool
	Aborted        bool
	AllocateBlack  bool
}

// Describe returns the current shape of s.
func (t *Table[E, P]) Describe(s *Space) SpaceInfo {
	t.checkSpace("describe", s)

	s.mu.Lock()
	defer s.mu.Unlock()

	return SpaceInfo{
		Name:           s.name,
		ReadOnly:       s.readOnly,
		Segments:       s.segments.ToArray(),
		Capacity:       s.capacityLocked(),
		FreelistLength: s.FreelistLength(),
		Compacting:     s.IsCompacting(),
		Aborted:        s.CompactingWasAborted(),
		AllocateBlack:  s.AllocateBlack(),
	}
}

// Verify walks the freelist of s and cross-checks it against the entries.
func (t *Table[E, P]) Verify(s *Space) error {
	t.checkSpace("verify", s)

	s.mu.Lock()
	defer s.mu.Unlock()

	return t.verifyLocked(s)
}

func (t *Table[E, P]) verifyLocked(s *Space) error {
	head := s.loadHead()
	if head.forbidsAllocation() {
		return fmt.Errorf("%w: space %q: freelist left in sweeping state", ErrCorrupt, s.name)
	}

	seen := roaring.New()
	index := head.next()
	for n := uint32(0); n < head.length(); n++ {
		if index == 0 {
			return fmt.Errorf("%w: space %q: freelist ends after %d of %d entries", ErrCorrupt, s.name, n, head.length())
		}
		if !s.segments.Contains(index / t.cfg.EntriesPerSegment) {
			return fmt.Errorf("%w: space %q: freelist entry %d outside the space", ErrCorrupt, s.name, index)
		}
		if seen.Contains(index) {
			return fmt.Errorf("%w: space %q: freelist cycle at entry %d", ErrCorrupt, s.name, index)
		}
		e := t.At(index)
		if !e.IsFreelistEntry() {
			return fmt.Errorf("%w: space %q: freelist entry %d is not free", ErrCorrupt, s.name, index)
		}
		seen.Add(index)
		index = e.NextFreelistEntryIndex()
	}
	if head.length() > 0 && index != 0 {
		return fmt.Errorf("%w: space %q: freelist longer than its recorded length %d", ErrCorrupt, s.name, head.length())
	}

	compacting := s.IsCompacting()
	var free uint32
	it := s.segments.Iterator()
	for it.HasNext() {
		seg := segmentAt(it.Next(), t.cfg.EntriesPerSegment)
		for i := seg.first; ; i++ {
			e := t.At(i)
			if i != 0 && e.IsFreelistEntry() {
				free++
			}
			if key, ok := e.EvacuationEntryKey(); ok {
				if !compacting {
					return fmt.Errorf("%w: space %q: evacuation entry %d outside compaction", ErrCorrupt, s.name, i)
				}
				if key != i {
					return fmt.Errorf("%w: space %q: evacuation entry %d carries key %d", ErrCorrupt, s.name, i, key)
				}
			}
			if i == seg.last {
				break
			}
		}
	}

	// Entries popped by allocateEntryBelow are free-looking until the marker
	// overwrites them, so the count only holds outside compaction.
	if !compacting && free != head.length() {
		return fmt.Errorf("%w: space %q: %d free entries but freelist length %d", ErrCorrupt, s.name, free, head.length())
	}
	return nil
}
