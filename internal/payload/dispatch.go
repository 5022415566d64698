package payload

import "sync/atomic"

const (
	codeShift       = 16
	paramShift      = 1
	paramMask       = 0x7fff << paramShift
	specialKindMask = 1<<codeShift - 1 - markBit

	// MaxParameterCount is the largest parameter count a dispatch entry holds.
	MaxParameterCount = 0x7fff

	dispatchFreeMarker       uint64 = 0xfffe
	dispatchEvacuationMarker uint64 = 0xfffc
)

// DispatchWord is the encoded word of a dispatch entry.
type DispatchWord uint64

// CanEncodeCode reports whether code is a valid code pointer. Zero is
// reserved for special entries.
func CanEncodeCode(code uint64) bool {
	return code != 0 && code <= maxValue
}

// MakeDispatch encodes a live dispatch word.
func MakeDispatch(code uint64, parameterCount uint16, markAsAlive bool) DispatchWord {
	w := code<<codeShift | uint64(parameterCount&MaxParameterCount)<<paramShift
	if markAsAlive {
		w |= markBit
	}
	return DispatchWord(w)
}

// Code returns the code pointer, 0 for special entries.
func (w DispatchWord) Code() uint64 { return uint64(w) >> codeShift }

// ParameterCount returns the parameter count of a live word.
func (w DispatchWord) ParameterCount() uint16 {
	return uint16((uint64(w) & paramMask) >> paramShift)
}

// IsLive reports whether w holds a code pointer.
func (w DispatchWord) IsLive() bool { return w.Code() != 0 }

// IsMarked reports whether the mark bit is set.
func (w DispatchWord) IsMarked() bool { return uint64(w)&markBit != 0 }

// WithoutMark returns w with the mark bit cleared.
func (w DispatchWord) WithoutMark() DispatchWord { return w &^ DispatchWord(markBit) }

func (w DispatchWord) special(marker uint64) bool {
	return w.Code() == 0 && uint64(w)&specialKindMask == marker
}

// WithCode replaces the code pointer, keeping parameter count and mark bit.
func (w DispatchWord) WithCode(code uint64) DispatchWord {
	return DispatchWord(code<<codeShift | uint64(w)&(1<<codeShift-1))
}

// DispatchEntry is one slot of the dispatch table.
type DispatchEntry struct {
	word       atomic.Uint64
	entrypoint atomic.Uint64
}

// Word returns the encoded word.
func (e *DispatchEntry) Word() DispatchWord { return DispatchWord(e.word.Load()) }

// Entrypoint returns the raw entrypoint word.
func (e *DispatchEntry) Entrypoint() uint64 { return e.entrypoint.Load() }

// Initialize makes the entry live.
func (e *DispatchEntry) Initialize(code, entrypoint uint64, parameterCount uint16, markAsAlive bool) {
	e.entrypoint.Store(entrypoint)
	e.word.Store(uint64(MakeDispatch(code, parameterCount, markAsAlive)))
}

// SetCodeAndEntrypoint replaces code and entrypoint, preserving parameter
// count and mark bit.
func (e *DispatchEntry) SetCodeAndEntrypoint(code, entrypoint uint64) {
	old := DispatchWord(e.word.Load())
	e.word.Store(uint64(old.WithCode(code)))
	e.entrypoint.Store(entrypoint)
}

// SetEntrypoint retargets the entrypoint only.
func (e *DispatchEntry) SetEntrypoint(entrypoint uint64) { e.entrypoint.Store(entrypoint) }

// MakeFreelistEntry links the entry to next.
func (e *DispatchEntry) MakeFreelistEntry(next uint32) {
	e.entrypoint.Store(uint64(next))
	e.word.Store(dispatchFreeMarker)
}

// NextFreelistEntryIndex returns the freelist link.
func (e *DispatchEntry) NextFreelistEntryIndex() uint32 { return uint32(e.entrypoint.Load()) }

// IsFreelistEntry reports whether the entry is free.
func (e *DispatchEntry) IsFreelistEntry() bool { return e.Word().special(dispatchFreeMarker) }

// MakeEvacuationEntry turns the entry into an evacuation marker. key names
// the recorded handle slot to patch.
func (e *DispatchEntry) MakeEvacuationEntry(key uint32) {
	e.entrypoint.Store(uint64(key))
	e.word.Store(dispatchEvacuationMarker)
}

// EvacuationEntryKey returns the slot key of an evacuation marker.
func (e *DispatchEntry) EvacuationEntryKey() (uint32, bool) {
	if !e.Word().special(dispatchEvacuationMarker) {
		return 0, false
	}
	return uint32(e.entrypoint.Load()), true
}

// IsLive reports whether the entry holds a code pointer.
func (e *DispatchEntry) IsLive() bool { return e.Word().IsLive() }

// IsMarked reports whether the mark bit is set.
func (e *DispatchEntry) IsMarked() bool { return e.Word().IsMarked() }

// Mark sets the mark bit with one best-effort compare-and-swap.
func (e *DispatchEntry) Mark() {
	old := e.word.Load()
	e.word.CompareAndSwap(old, old|markBit)
}

// Unmark clears the mark bit. Only called while mutators are stopped.
func (e *DispatchEntry) Unmark() {
	e.word.Store(uint64(e.Word().WithoutMark()))
}

// Evacuate copies both words into dst, leaving it unmarked.
func (e *DispatchEntry) Evacuate(dst *DispatchEntry) {
	dst.entrypoint.Store(e.entrypoint.Load())
	dst.word.Store(uint64(e.Word().WithoutMark()))
}
