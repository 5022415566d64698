package entitytable

// segment is a contiguous, aligned run of entries. Segments are the unit of
// commit, decommit and evacuation; an entry never changes segment.
type segment struct {
	number uint32
	first  uint32
	last   uint32
}

func segmentAt(number, entriesPerSegment uint32) segment {
	first := number * entriesPerSegment
	return segment{number: number, first: first, last: first + entriesPerSegment - 1}
}

func (s segment) contains(index uint32) bool {
	return index >= s.first && index <= s.last
}

func (s segment) size() uint32 {
	return s.last - s.first + 1
}
