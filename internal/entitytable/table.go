package entitytable

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/exttable/internal/vmem"
)

// Entry is the contract between the engine and an entry layout. Every
// method operates atomically on the entry words.
type Entry[E any] interface {
	*E
	MakeFreelistEntry(next uint32)
	NextFreelistEntryIndex() uint32
	IsFreelistEntry() bool
	MakeEvacuationEntry(key uint32)
	EvacuationEntryKey() (uint32, bool)
	IsLive() bool
	IsMarked() bool
	Mark()
	Unmark()
	Evacuate(dst *E)
}

// Table is a fixed reservation of entries of type E, handed out to spaces
// one segment at a time.
type Table[E any, P Entry[E]] struct {
	cfg          Config
	observer     Observer
	mem          *vmem.Reservation
	base         unsafe.Pointer
	entrySize    uintptr
	segmentBytes int
	maxSegments  uint32

	// mu guards committed and spaces.
	mu        sync.Mutex
	committed *roaring.Bitmap
	spaces    []*Space
	capacity  atomic.Uint32

	readOnly *Space
	sealed   atomic.Bool
	closed   atomic.Bool
}

// New reserves the table and commits the read-only segment with its null
// entry. The caller initializes the null entry, which must read as neither
// free nor an evacuation entry.
func New[E any, P Entry[E]](cfg Config) (*Table[E, P], error) {
	var zero E
	entrySize := unsafe.Sizeof(zero)
	if err := cfg.validate(entrySize, vmem.PageSize()); err != nil {
		return nil, err
	}

	segmentBytes := int(uintptr(cfg.EntriesPerSegment) * entrySize)

	mem, err := vmem.Reserve(int(uintptr(cfg.MaxCapacity) * entrySize))
	if err != nil {
		return nil, err
	}

	t := &Table[E, P]{
		cfg:          cfg,
		observer:     cfg.Observer,
		mem:          mem,
		base:         mem.Base(),
		entrySize:    entrySize,
		segmentBytes: segmentBytes,
		maxSegments:  cfg.MaxCapacity / cfg.EntriesPerSegment,
		committed:    roaring.New(),
	}
	if t.observer == nil {
		t.observer = noopObserver{}
	}

	if err := cfg.Budget.Charge(int64(segmentBytes)); err != nil {
		_ = mem.Close()
		return nil, fmt.Errorf("exttable: charge read-only segment: %w", err)
	}
	if err := mem.Commit(0, segmentBytes); err != nil {
		cfg.Budget.Refund(int64(segmentBytes))
		_ = mem.Close()
		return nil, fmt.Errorf("exttable: commit read-only segment: %w", err)
	}

	t.committed.Add(0)
	t.capacity.Store(cfg.EntriesPerSegment)

	t.readOnly = newSpace(t, "read-only", cfg.EntriesPerSegment, true)
	t.readOnly.segments.Add(0)
	t.spaces = append(t.spaces, t.readOnly)
	t.readOnly.storeHead(t.buildFreelist(segmentAt(0, cfg.EntriesPerSegment)))

	return t, nil
}

// At returns the entry at index. The index must lie in a committed segment.
func (t *Table[E, P]) At(index uint32) P {
	return P((*E)(unsafe.Add(t.base, uintptr(index)*t.entrySize)))
}

// Index validates h and returns the entry index it names.
func (t *Table[E, P]) Index(h Handle) (uint32, bool) {
	index := HandleToIndex(h)
	return index, h.WellFormed() && index < t.cfg.MaxCapacity
}

// MustIndex is Index for mutations: anything but a well-formed in-bounds
// handle is fatal.
func (t *Table[E, P]) MustIndex(op string, h Handle) uint32 {
	index, ok := t.Index(h)
	if !ok {
		t.Fatal(op, nil, index, fmt.Errorf("%w: %#x", ErrMalformedHandle, uint32(h)))
	}
	return index
}

// IsReadOnlyIndex reports whether index lies in the read-only segment.
func (t *Table[E, P]) IsReadOnlyIndex(index uint32) bool {
	return index < t.cfg.EntriesPerSegment
}

// CheckWritable is fatal for the null entry and for read-only entries after
// Seal.
func (t *Table[E, P]) CheckWritable(op string, index uint32) {
	if index == 0 {
		t.Fatal(op, nil, index, fmt.Errorf("%w: null entry", ErrReadOnly))
	}
	if t.IsReadOnlyIndex(index) && t.sealed.Load() {
		t.Fatal(op, t.readOnly, index, ErrReadOnly)
	}
}

// Config returns the configuration the table was built with.
func (t *Table[E, P]) Config() Config { return t.cfg }

// EntrySize returns the size of one entry in bytes.
func (t *Table[E, P]) EntrySize() uintptr { return t.entrySize }

// Capacity returns the number of committed entries over all spaces.
func (t *Table[E, P]) Capacity() uint32 { return t.capacity.Load() }

// ReadOnlySpace returns the space backed by the first segment.
func (t *Table[E, P]) ReadOnlySpace() *Space { return t.readOnly }

// NewSpace creates an empty space. Segments are committed on first
// allocation.
func (t *Table[E, P]) NewSpace(name string) *Space {
	s := newSpace(t, name, t.cfg.EntriesPerSegment, false)

	t.mu.Lock()
	t.spaces = append(t.spaces, s)
	t.mu.Unlock()

	return s
}

// Spaces returns all spaces, the read-only space first.
func (t *Table[E, P]) Spaces() []*Space {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Space, len(t.spaces))
	copy(out, t.spaces)
	return out
}

// Seal write-protects the read-only segment. Later allocation in or
// mutation of the read-only space is fatal.
func (t *Table[E, P]) Seal() error {
	s := t.readOnly

	s.mu.Lock()
	defer s.mu.Unlock()

	if t.sealed.Swap(true) {
		return nil
	}
	return t.mem.Protect(0, t.segmentBytes, vmem.ReadOnly)
}

// IsSealed reports whether Seal was called.
func (t *Table[E, P]) IsSealed() bool { return t.sealed.Load() }

// Close releases the reservation. Entries must not be touched afterwards.
func (t *Table[E, P]) Close() error {
	if t.closed.Swap(true) {
		return nil
	}

	t.mu.Lock()
	t.cfg.Budget.Refund(int64(t.committed.GetCardinality()) * int64(t.segmentBytes))
	t.committed.Clear()
	t.capacity.Store(0)
	t.mu.Unlock()

	return t.mem.Close()
}

// Fatal reports an unrecoverable error and panics. It never returns.
func (t *Table[E, P]) Fatal(op string, s *Space, index uint32, err error) {
	fe := &FatalError{Op: op, Index: index, Err: err}
	if s != nil {
		fe.Space = s.name
	}
	if t.cfg.Fatal != nil {
		t.cfg.Fatal(fe)
	}
	panic(fe)
}

func (t *Table[E, P]) checkSpace(op string, s *Space) {
	if s == nil || s.owner != any(t) {
		t.Fatal(op, s, 0, fmt.Errorf("%w: space does not belong to this table", ErrInvariant))
	}
}

// AllocateEntry pops a free entry from s, growing it by one segment if the
// freelist is empty. The returned entry is a freelist entry the caller
// overwrites.
func (t *Table[E, P]) AllocateEntry(s *Space) uint32 {
	t.checkSpace("allocate", s)
	if s.readOnly && t.sealed.Load() {
		t.Fatal("allocate", s, 0, ErrReadOnly)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	head := s.loadHead()
	if head.forbidsAllocation() {
		t.Fatal("allocate", s, 0, ErrAllocationForbidden)
	}
	if head.isEmpty() {
		if s.readOnly {
			t.Fatal("allocate", s, 0, fmt.Errorf("%w: read-only segment is full", ErrOutOfCapacity))
		}
		head = t.grow(s)
	}

	index := head.next()
	e := t.At(index)
	if debugChecks && !e.IsFreelistEntry() {
		t.Fatal("allocate", s, index, fmt.Errorf("%w: freelist head is not free", ErrInvariant))
	}
	s.storeHead(makeFreelistHead(e.NextFreelistEntryIndex(), head.length()-1))

	// Only an active, non-aborted compaction has a boundary below the marker.
	if start := s.startOfEvacuationArea.Load(); index >= start {
		if s.abortCompacting(start) {
			t.observer.CompactionAborted(s.name, start)
		}
	}
	return index
}

// grow commits the lowest free segment of the reservation for s and returns
// its freelist. Requires s.mu.
func (t *Table[E, P]) grow(s *Space) freelistHead {
	seg := t.commitSegment(s)
	s.segments.Add(seg.number)
	head := t.buildFreelist(seg)
	t.observer.SegmentAllocated(s.name, seg.number, s.capacityLocked())
	return head
}

func (t *Table[E, P]) commitSegment(s *Space) segment {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed.Load() {
		t.Fatal("grow", s, 0, fmt.Errorf("%w: table is closed", ErrInvariant))
	}

	number := t.maxSegments
	for i := uint32(1); i < t.maxSegments; i++ {
		if !t.committed.Contains(i) {
			number = i
			break
		}
	}
	if number == t.maxSegments {
		t.Fatal("grow", s, 0, fmt.Errorf("%w: all %d entries in use", ErrOutOfCapacity, t.cfg.MaxCapacity))
	}

	if err := t.cfg.Budget.Charge(int64(t.segmentBytes)); err != nil {
		t.Fatal("grow", s, 0, fmt.Errorf("%w: %w", ErrOutOfCapacity, err))
	}
	if err := t.mem.Commit(int(number)*t.segmentBytes, t.segmentBytes); err != nil {
		t.cfg.Budget.Refund(int64(t.segmentBytes))
		t.Fatal("grow", s, 0, fmt.Errorf("%w: %w", ErrOutOfCapacity, err))
	}

	t.committed.Add(number)
	t.capacity.Add(t.cfg.EntriesPerSegment)
	return segmentAt(number, t.cfg.EntriesPerSegment)
}

// releaseSegment decommits a segment and returns it to the reservation.
func (t *Table[E, P]) releaseSegment(s *Space, number uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.mem.Decommit(int(number)*t.segmentBytes, t.segmentBytes); err != nil {
		t.Fatal("release", s, number*t.cfg.EntriesPerSegment, fmt.Errorf("%w: decommit: %w", ErrInvariant, err))
	}
	t.committed.Remove(number)
	t.capacity.Add(^(t.cfg.EntriesPerSegment - 1))
	t.cfg.Budget.Refund(int64(t.segmentBytes))
}

// buildFreelist links every entry of seg in ascending order. The null entry
// is skipped.
func (t *Table[E, P]) buildFreelist(seg segment) freelistHead {
	first := seg.first
	if first == 0 {
		first = 1
	}
	for i := first; i < seg.last; i++ {
		t.At(i).MakeFreelistEntry(i + 1)
	}
	t.At(seg.last).MakeFreelistEntry(0)
	return makeFreelistHead(first, seg.last-first+1)
}
