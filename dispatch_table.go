package exttable

import (
	"fmt"
	"unsafe"

	"github.com/hupe1980/exttable/internal/entitytable"
	"github.com/hupe1980/exttable/internal/payload"
)

// MaxParameterCount is the largest parameter count a dispatch entry holds.
const MaxParameterCount = payload.MaxParameterCount

// DispatchTable maps handles to a code pointer, its parameter count and the
// entrypoint calls jump to. The parameter count is fixed at allocation so a
// caller can trust it without consulting the code object.
type DispatchTable struct {
	table[payload.DispatchEntry, *payload.DispatchEntry]

	builtins         [numTieringBuiltins]uint64
	instructionStart func(code uint64) uint64
}

// NewDispatchTable creates a dispatch table backed by a fresh reservation.
func NewDispatchTable(opts ...Option) (*DispatchTable, error) {
	o := applyOptions(opts)

	t, err := newTable[payload.DispatchEntry, *payload.DispatchEntry]("dispatch", unsafe.Sizeof(payload.DispatchEntry{}), o)
	if err != nil {
		return nil, err
	}

	dt := &DispatchTable{table: t, instructionStart: o.codeResolver}
	if dt.instructionStart == nil {
		dt.instructionStart = func(code uint64) uint64 { return code }
	}
	for b, entrypoint := range o.tieringBuiltins {
		if b >= numTieringBuiltins {
			_ = t.Close()
			return nil, fmt.Errorf("%w: unknown tiering builtin %d", ErrInvalidConfig, uint8(b))
		}
		dt.builtins[b] = entrypoint
	}
	return dt, nil
}

// AllocateAndInitializeEntry creates an entry for code in s.
func (t *DispatchTable) AllocateAndInitializeEntry(s *Space, code, entrypoint uint64, parameterCount uint16) Handle {
	if !payload.CanEncodeCode(code) {
		t.core.Fatal("allocate", s, 0, fmt.Errorf("%w: code pointer %#x", ErrInvalidValue, code))
	}
	if parameterCount > MaxParameterCount {
		t.core.Fatal("allocate", s, 0, fmt.Errorf("%w: parameter count %d", ErrInvalidValue, parameterCount))
	}

	index := t.allocate(s)
	t.core.At(index).Initialize(code, entrypoint, parameterCount, s.AllocateBlack())
	return entitytable.IndexToHandle(index)
}

// GetEntrypoint returns the address calls through h jump to, 0 if h does
// not name a live entry.
func (t *DispatchTable) GetEntrypoint(h Handle) uint64 {
	e, ok := t.liveEntry(h)
	if !ok {
		return 0
	}
	return e.Entrypoint()
}

// GetCodePointer returns the code object of h, 0 if h does not name a live
// entry.
func (t *DispatchTable) GetCodePointer(h Handle) uint64 {
	e, ok := t.liveEntry(h)
	if !ok {
		return 0
	}
	return e.Word().Code()
}

// GetParameterCount returns the parameter count fixed at allocation.
func (t *DispatchTable) GetParameterCount(h Handle) uint16 {
	e, ok := t.liveEntry(h)
	if !ok {
		return 0
	}
	return e.Word().ParameterCount()
}

// SetCodeAndEntrypointNoWriteBarrier installs new code. The parameter count
// and the mark bit are preserved; keeping the new code object alive is the
// caller's job.
func (t *DispatchTable) SetCodeAndEntrypointNoWriteBarrier(h Handle, code, entrypoint uint64) {
	index := t.mustLiveIndex("set", h)
	if !payload.CanEncodeCode(code) {
		t.core.Fatal("set", nil, index, fmt.Errorf("%w: code pointer %#x", ErrInvalidValue, code))
	}
	t.core.At(index).SetCodeAndEntrypoint(code, entrypoint)
}

// SetCodeKeepTieringRequest installs new code but keeps a pending tiering
// redirect in place.
func (t *DispatchTable) SetCodeKeepTieringRequest(h Handle, code, entrypoint uint64) {
	if t.IsTieringRequested(h) {
		entrypoint = t.GetEntrypoint(h)
	}
	t.SetCodeAndEntrypointNoWriteBarrier(h, code, entrypoint)
}

// IterateActiveEntriesIn calls fn for every live entry of s in index order.
// fn must not allocate in s.
func (t *DispatchTable) IterateActiveEntriesIn(s *Space, fn func(h Handle, code, entrypoint uint64, parameterCount uint16)) {
	t.core.Iterate(s, func(index uint32, e *payload.DispatchEntry) {
		w := e.Word()
		if !w.IsLive() {
			return
		}
		fn(entitytable.IndexToHandle(index), w.Code(), e.Entrypoint(), w.ParameterCount())
	})
}

func (t *DispatchTable) liveEntry(h Handle) (*payload.DispatchEntry, bool) {
	index, ok := t.core.Index(h)
	if !ok {
		return nil, false
	}
	e := t.core.At(index)
	return e, e.IsLive()
}
