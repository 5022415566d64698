package exttable

import (
	"errors"
	"fmt"

	"github.com/hupe1980/exttable/internal/entitytable"
)

// table carries the space management and garbage collection surface shared
// by PointerTable and DispatchTable.
type table[E any, P entitytable.Entry[E]] struct {
	core    *entitytable.Table[E, P]
	metrics MetricsCollector
}

func newTable[E any, P entitytable.Entry[E]](kind string, entrySize uintptr, o options) (table[E, P], error) {
	cfg, err := o.config(kind, entrySize)
	if err != nil {
		return table[E, P]{}, err
	}

	core, err := entitytable.New[E, P](cfg)
	if err != nil {
		return table[E, P]{}, fmt.Errorf("exttable: new %s table: %w", kind, err)
	}

	return table[E, P]{core: core, metrics: o.metricsCollector}, nil
}

// Close releases the table's memory. Handles must not be used afterwards.
func (t *table[E, P]) Close() error {
	return t.core.Close()
}

// NewSpace creates an empty space. Segments are committed on first use.
func (t *table[E, P]) NewSpace(name string) *Space {
	return t.core.NewSpace(name)
}

// ReadOnlySpace returns the space whose entries are never collected.
func (t *table[E, P]) ReadOnlySpace() *Space {
	return t.core.ReadOnlySpace()
}

// Spaces returns every space of the table, the read-only space first.
func (t *table[E, P]) Spaces() []*Space {
	return t.core.Spaces()
}

// Seal write-protects the read-only space. Allocating in or writing to it
// afterwards is fatal.
func (t *table[E, P]) Seal() error {
	return t.core.Seal()
}

// Capacity returns the number of committed entries over all spaces.
func (t *table[E, P]) Capacity() uint32 {
	return t.core.Capacity()
}

// MaxCapacity returns the number of entries the reservation covers.
func (t *table[E, P]) MaxCapacity() uint32 {
	return t.core.Config().MaxCapacity
}

// Mark marks the entry named by h as alive for the current cycle. loc is the
// slot h was read from; if the entry is evacuated the slot is rewritten
// during the sweep. loc may be nil for roots that cannot be patched, in which
// case the cycle's compaction is aborted when h needs to move.
//
// Null and malformed handles are ignored. Safe for concurrent use.
func (t *table[E, P]) Mark(s *Space, h Handle, loc *Handle) {
	index, ok := t.core.Index(h)
	if !ok || index == 0 {
		return
	}
	t.core.Mark(s, index, loc)
}

// StartCompactingIfNeeded chooses an evacuation area for the next cycle.
// Call it before marking starts.
func (t *table[E, P]) StartCompactingIfNeeded(s *Space) bool {
	return t.core.StartCompactingIfNeeded(s)
}

// SweepAndCompact frees every entry of s that was not marked since the last
// sweep, finishes a pending compaction and returns the number of live
// entries. Mutators must be stopped.
func (t *table[E, P]) SweepAndCompact(s *Space) uint32 {
	return t.core.SweepAndCompact(s)
}

// Sweep is SweepAndCompact for a space that is not compacting.
func (t *table[E, P]) Sweep(s *Space) uint32 {
	if s.IsCompacting() {
		t.core.Fatal("sweep", s, 0, fmt.Errorf("%w: sweeping a compacting space", ErrInvariant))
	}
	return t.core.SweepAndCompact(s)
}

// NotifyFieldInvalidated tells a compacting space that the handle slot at
// loc belongs to an object that died or changed shape after marking.
func (t *table[E, P]) NotifyFieldInvalidated(s *Space, loc *Handle) {
	t.core.NotifyFieldInvalidated(s, loc)
}

// IterateMarkedEntriesIn calls fn for every live, marked entry of s. fn must
// not allocate in s.
func (t *table[E, P]) IterateMarkedEntriesIn(s *Space, fn func(h Handle)) {
	t.core.Iterate(s, func(index uint32, e P) {
		if e.IsLive() && e.IsMarked() {
			fn(entitytable.IndexToHandle(index))
		}
	})
}

// Describe returns the current shape of s.
func (t *table[E, P]) Describe(s *Space) SpaceInfo {
	return t.core.Describe(s)
}

// Verify checks the freelist of every space against the entries.
func (t *table[E, P]) Verify() error {
	var errs []error
	for _, s := range t.core.Spaces() {
		if err := t.core.Verify(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *table[E, P]) allocate(s *Space) uint32 {
	index := t.core.AllocateEntry(s)
	t.metrics.RecordAllocate(s.Name())
	return index
}

// mustLiveIndex resolves h for a mutation of an existing entry.
func (t *table[E, P]) mustLiveIndex(op string, h Handle) uint32 {
	index := t.core.MustIndex(op, h)
	t.core.CheckWritable(op, index)
	if !t.core.At(index).IsLive() {
		t.core.Fatal(op, nil, index, fmt.Errorf("%w: entry is not live", ErrInvariant))
	}
	return index
}
