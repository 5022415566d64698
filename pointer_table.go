package exttable

import (
	"fmt"
	"unsafe"

	"github.com/hupe1980/exttable/internal/entitytable"
	"github.com/hupe1980/exttable/internal/payload"
)

// PointerTable stores tagged pointers to off-heap objects. Untrusted memory
// holds only handles; a reader must name the tag range it expects and gets 0
// for anything else.
type PointerTable struct {
	table[payload.PointerEntry, *payload.PointerEntry]
}

// New creates a pointer table backed by a fresh address-space reservation.
func New(opts ...Option) (*PointerTable, error) {
	o := applyOptions(opts)

	t, err := newTable[payload.PointerEntry, *payload.PointerEntry]("pointer", unsafe.Sizeof(payload.PointerEntry{}), o)
	if err != nil {
		return nil, err
	}
	return &PointerTable{table: t}, nil
}

// AllocateAndInitializeEntry stores value under tag in a new entry of s and
// returns its handle. The entry is born marked while s allocates black.
func (t *PointerTable) AllocateAndInitializeEntry(s *Space, value uint64, tag Tag) Handle {
	t.checkEncodable("allocate", 0, value, tag)

	index := t.allocate(s)
	t.core.At(index).Store(payload.MakePointer(value, tag, s.AllocateBlack()))
	return entitytable.IndexToHandle(index)
}

// Get returns the value stored for h if its tag lies in r, and 0 otherwise.
// Malformed handles, handles past the reservation and freed entries in a
// committed segment read as 0. A stale handle into a segment that a sweep
// has released faults the process: the memory is decommitted, never reused.
func (t *PointerTable) Get(h Handle, r TagRange) uint64 {
	if !r.Valid() {
		t.core.Fatal("get", nil, entitytable.HandleToIndex(h), fmt.Errorf("%w: [%#x, %#x]", ErrInvalidTagRange, r.Min, r.Max))
	}

	index, ok := t.core.Index(h)
	if !ok {
		return 0
	}
	return t.core.At(index).Load().Pointer(r)
}

// GetTag returns the tag stored for h, NullTag for null or malformed
// handles and for entries that are not live.
func (t *PointerTable) GetTag(h Handle) Tag {
	index, ok := t.core.Index(h)
	if !ok {
		return NullTag
	}
	p := t.core.At(index).Load()
	if !p.IsPointer() {
		return NullTag
	}
	return p.Tag()
}

// Set replaces the value and tag of a live entry. A written entry is
// considered alive, so the mark bit is set.
func (t *PointerTable) Set(h Handle, value uint64, tag Tag) {
	index := t.mustLiveIndex("set", h)
	t.checkEncodable("set", index, value, tag)

	t.core.At(index).Store(payload.MakePointer(value, tag, true))
}

// IterateActiveEntriesIn calls fn for every live entry of s in index order.
// fn must not allocate in s.
func (t *PointerTable) IterateActiveEntriesIn(s *Space, fn func(h Handle, value uint64, tag Tag)) {
	t.core.Iterate(s, func(index uint32, e *payload.PointerEntry) {
		p := e.Load()
		if !p.IsPointer() {
			return
		}
		fn(entitytable.IndexToHandle(index), p.Pointer(payload.Range(NullTag, MaxUserTag)), p.Tag())
	})
}

func (t *PointerTable) checkEncodable(op string, index uint32, value uint64, tag Tag) {
	if tag > MaxUserTag {
		t.core.Fatal(op, nil, index, fmt.Errorf("%w: tag %#x is reserved", ErrInvalidValue, tag))
	}
	if !payload.CanEncode(value) {
		t.core.Fatal(op, nil, index, fmt.Errorf("%w: %#x", ErrInvalidValue, value))
	}
}
