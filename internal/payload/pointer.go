package payload

import "sync/atomic"

// Tag discriminates the type of the pointer stored in an entry.
type Tag uint16

const (
	// NullTag is the tag of the reserved null entry.
	NullTag Tag = 0
	// ZappedTag marks an entry that was deliberately invalidated.
	ZappedTag Tag = 0x7ffd
	// EvacuationTag marks an entry awaiting a relocated payload.
	EvacuationTag Tag = 0x7ffe
	// FreeTag marks a freelist entry.
	FreeTag Tag = 0x7fff

	// FirstReservedTag is the lowest tag user code may not store.
	FirstReservedTag = ZappedTag
	// MaxUserTag is the highest tag user code may store.
	MaxUserTag = FirstReservedTag - 1
)

const (
	markBit    uint64 = 1
	tagShift          = 1
	tagMask    uint64 = 0x7fff << tagShift
	valueShift        = 16
	maxValue   uint64 = 1<<(64-valueShift) - 1
	heapTagBit uint64 = 1
)

// TagRange is an inclusive range of tags accepted by a reader.
type TagRange struct {
	Min Tag
	Max Tag
}

// Exactly returns the range containing only tag.
func Exactly(tag Tag) TagRange {
	return TagRange{Min: tag, Max: tag}
}

// Range returns the inclusive range [minTag, maxTag].
func Range(minTag, maxTag Tag) TagRange {
	return TagRange{Min: minTag, Max: maxTag}
}

// Valid reports whether r is non-empty and excludes every reserved tag.
func (r TagRange) Valid() bool {
	return r.Min <= r.Max && r.Max <= MaxUserTag
}

// Contains reports whether tag lies in r.
func (r TagRange) Contains(tag Tag) bool {
	// Single unsigned comparison: wraps for tag < Min.
	return uint16(tag-r.Min) <= uint16(r.Max-r.Min)
}

// Payload is the encoded word of a pointer entry.
type Payload uint64

// CanEncode reports whether value survives the encoding unchanged.
// Values must be untagged (bit 0 clear) and fit the 48-bit value field.
func CanEncode(value uint64) bool {
	return value&heapTagBit == 0 && value <= maxValue
}

// MakePointer encodes value with tag. The caller checks CanEncode and that
// tag is not reserved.
func MakePointer(value uint64, tag Tag, markAsAlive bool) Payload {
	w := value<<valueShift | uint64(tag)<<tagShift
	if markAsAlive {
		w |= markBit
	}
	return Payload(w)
}

// MakeFree encodes a freelist link to next.
func MakeFree(next uint32) Payload {
	return Payload(uint64(next)<<valueShift | uint64(FreeTag)<<tagShift)
}

// MakeEvacuation encodes an evacuation marker. key names the recorded handle
// slot to patch.
func MakeEvacuation(key uint32) Payload {
	return Payload(uint64(key)<<valueShift | uint64(EvacuationTag)<<tagShift)
}

// Tag returns the stored tag.
func (p Payload) Tag() Tag {
	return Tag((uint64(p) & tagMask) >> tagShift)
}

// Pointer returns the stored value if the tag lies in r, 0 otherwise.
func (p Payload) Pointer(r TagRange) uint64 {
	if !r.Contains(p.Tag()) {
		return 0
	}
	return uint64(p) >> valueShift
}

// IsMarked reports whether the mark bit is set.
func (p Payload) IsMarked() bool { return uint64(p)&markBit != 0 }

// WithMark returns p with the mark bit set.
func (p Payload) WithMark() Payload { return p | Payload(markBit) }

// WithoutMark returns p with the mark bit cleared.
func (p Payload) WithoutMark() Payload { return p &^ Payload(markBit) }

// IsFree reports whether p is a freelist link.
func (p Payload) IsFree() bool { return p.Tag() == FreeTag }

// IsEvacuation reports whether p is an evacuation marker.
func (p Payload) IsEvacuation() bool { return p.Tag() == EvacuationTag }

// IsPointer reports whether p holds a user value (including the null entry).
func (p Payload) IsPointer() bool { return p.Tag() < FirstReservedTag }

// NextFree returns the freelist link of a free payload.
func (p Payload) NextFree() uint32 { return uint32(uint64(p) >> valueShift) }

// EvacuationKey returns the slot key of an evacuation payload.
func (p Payload) EvacuationKey() uint32 { return uint32(uint64(p) >> valueShift) }

// PointerEntry is one slot of the pointer table.
type PointerEntry struct {
	word atomic.Uint64
}

// Load returns the current payload.
func (e *PointerEntry) Load() Payload { return Payload(e.word.Load()) }

// Store replaces the payload.
func (e *PointerEntry) Store(p Payload) { e.word.Store(uint64(p)) }

// MakeFreelistEntry links the entry to next.
func (e *PointerEntry) MakeFreelistEntry(next uint32) { e.Store(MakeFree(next)) }

// NextFreelistEntryIndex returns the freelist link.
func (e *PointerEntry) NextFreelistEntryIndex() uint32 { return e.Load().NextFree() }

// IsFreelistEntry reports whether the entry is free.
func (e *PointerEntry) IsFreelistEntry() bool { return e.Load().IsFree() }

// MakeEvacuationEntry turns the entry into an evacuation marker.
func (e *PointerEntry) MakeEvacuationEntry(key uint32) { e.Store(MakeEvacuation(key)) }

// EvacuationEntryKey returns the slot key of an evacuation marker.
func (e *PointerEntry) EvacuationEntryKey() (uint32, bool) {
	p := e.Load()
	if !p.IsEvacuation() {
		return 0, false
	}
	return p.EvacuationKey(), true
}

// IsLive reports whether the entry holds a user value.
func (e *PointerEntry) IsLive() bool { return e.Load().IsPointer() }

// IsMarked reports whether the mark bit is set.
func (e *PointerEntry) IsMarked() bool { return e.Load().IsMarked() }

// Mark sets the mark bit with a single compare-and-swap. A failed swap means
// a concurrent write replaced the payload, and writes mark the entry
// themselves, so the result is ignored.
func (e *PointerEntry) Mark() {
	old := e.word.Load()
	e.word.CompareAndSwap(old, old|markBit)
}

// Unmark clears the mark bit. Only called while mutators are stopped.
func (e *PointerEntry) Unmark() { e.Store(e.Load().WithoutMark()) }

// Evacuate copies the payload into dst, leaving it unmarked.
func (e *PointerEntry) Evacuate(dst *PointerEntry) {
	dst.Store(e.Load().WithoutMark())
}
