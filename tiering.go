package exttable

import "fmt"

// TieringBuiltin names a trampoline a dispatch entry can be redirected to
// while its code object stays in place.
type TieringBuiltin uint8

const (
	TieringLogNextExecution TieringBuiltin = iota
	TieringStartBaselineJob
	TieringStartOptimizeJob
	TieringOptimizeBaselineEager
	TieringOptimizeEager
	TieringMarkLazyDeoptimized
	TieringMarkReoptimizeLazyDeoptimized

	numTieringBuiltins
)

var tieringBuiltinNames = [numTieringBuiltins]string{
	"LogNextExecution",
	"StartBaselineJob",
	"StartOptimizeJob",
	"OptimizeBaselineEager",
	"OptimizeEager",
	"MarkLazyDeoptimized",
	"MarkReoptimizeLazyDeoptimized",
}

func (b TieringBuiltin) String() string {
	if b < numTieringBuiltins {
		return tieringBuiltinNames[b]
	}
	return fmt.Sprintf("TieringBuiltin(%d)", uint8(b))
}

// WithTieringBuiltin registers the entrypoint of a tiering trampoline for a
// DispatchTable.
func WithTieringBuiltin(b TieringBuiltin, entrypoint uint64) Option {
	return func(o *options) {
		if o.tieringBuiltins == nil {
			o.tieringBuiltins = make(map[TieringBuiltin]uint64)
		}
		o.tieringBuiltins[b] = entrypoint
	}
}

// WithInstructionStart sets how a DispatchTable derives the regular
// entrypoint of a code pointer. The default is the code pointer itself.
func WithInstructionStart(fn func(code uint64) uint64) Option {
	return func(o *options) {
		o.codeResolver = fn
	}
}

// SetTieringRequest redirects h to the trampoline b. The code pointer is
// left unchanged.
func (t *DispatchTable) SetTieringRequest(h Handle, b TieringBuiltin) {
	index := t.mustLiveIndex("tiering", h)
	t.core.At(index).SetEntrypoint(t.builtinEntrypoint(index, b))
}

// IsTieringRequested reports whether the entrypoint of h differs from the
// regular entrypoint of its code.
func (t *DispatchTable) IsTieringRequested(h Handle) bool {
	index, ok := t.core.Index(h)
	if !ok {
		return false
	}
	e := t.core.At(index)
	if !e.IsLive() {
		return false
	}
	return e.Entrypoint() != t.instructionStart(e.Word().Code())
}

// IsTieringRequestedFor reports whether h is redirected to b.
func (t *DispatchTable) IsTieringRequestedFor(h Handle, b TieringBuiltin) bool {
	index, ok := t.core.Index(h)
	if !ok || b >= numTieringBuiltins || t.builtins[b] == 0 {
		return false
	}
	e := t.core.At(index)
	return e.IsLive() && e.Entrypoint() == t.builtins[b]
}

// ResetTieringRequest points h back at the regular entrypoint of its code.
func (t *DispatchTable) ResetTieringRequest(h Handle) {
	index := t.mustLiveIndex("tiering", h)
	e := t.core.At(index)
	e.SetEntrypoint(t.instructionStart(e.Word().Code()))
}

func (t *DispatchTable) builtinEntrypoint(index uint32, b TieringBuiltin) uint64 {
	if b >= numTieringBuiltins || t.builtins[b] == 0 {
		t.core.Fatal("tiering", nil, index, fmt.Errorf("%w: no entrypoint registered for %s", ErrInvalidValue, b))
	}
	return t.builtins[b]
}
