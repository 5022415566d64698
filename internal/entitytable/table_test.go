package entitytable

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/exttable/internal/payload"
	"github.com/hupe1980/exttable/internal/resource"
	"github.com/hupe1980/exttable/internal/vmem"
)

type testTable = Table[payload.PointerEntry, *payload.PointerEntry]

const testTag payload.Tag = 1

func entriesPerPage() uint32 {
	return uint32(vmem.PageSize()) / 8
}

func newTestTable(t *testing.T, cfg Config) *testTable {
	t.Helper()
	if cfg.EntriesPerSegment == 0 {
		cfg.EntriesPerSegment = entriesPerPage()
	}
	if cfg.MaxCapacity == 0 {
		cfg.MaxCapacity = 8 * cfg.EntriesPerSegment
	}
	tbl, err := New[payload.PointerEntry](cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tbl.Close() })
	return tbl
}

func valueFor(i int) uint64 {
	return uint64(i+1) << 4
}

// allocate stores valueFor(i) in n fresh entries and records their handles.
func allocate(tbl *testTable, s *Space, n int) []Handle {
	handles := make([]Handle, n)
	for i := range handles {
		index := tbl.AllocateEntry(s)
		tbl.At(index).Store(payload.MakePointer(valueFor(i), testTag, s.AllocateBlack()))
		handles[i] = IndexToHandle(index)
	}
	return handles
}

func markSlot(tbl *testTable, s *Space, slot *Handle) {
	tbl.Mark(s, HandleToIndex(LoadHandle(slot)), slot)
}

func valueAt(tbl *testTable, h Handle) uint64 {
	return tbl.At(HandleToIndex(h)).Load().Pointer(payload.Exactly(testTag))
}

func requireFatal(t *testing.T, target error, fn func()) *FatalError {
	t.Helper()

	var fe *FatalError
	func() {
		defer func() {
			r := recover()
			require.NotNil(t, r, "expected a fatal error")
			var ok bool
			fe, ok = r.(*FatalError)
			require.True(t, ok, "unexpected panic value %v", r)
		}()
		fn()
	}()

	require.ErrorIs(t, fe, target)
	return fe
}

func TestNew_InvalidConfig(t *testing.T) {
	eps := entriesPerPage()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero segment", Config{EntriesPerSegment: 0, MaxCapacity: eps}},
		{"unaligned segment", Config{EntriesPerSegment: eps + 1, MaxCapacity: 4 * (eps + 1)}},
		{"ragged capacity", Config{EntriesPerSegment: eps, MaxCapacity: 3*eps + 1}},
		{"read-only only", Config{EntriesPerSegment: eps, MaxCapacity: eps}},
		{"too large", Config{EntriesPerSegment: eps, MaxCapacity: MaxEntries + eps}},
		{"unknown compaction", Config{EntriesPerSegment: eps, MaxCapacity: 2 * eps, Compaction: CompactionMode(9)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New[payload.PointerEntry](tt.cfg)
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestHandleTranslation(t *testing.T) {
	tbl := newTestTable(t, Config{})

	for _, index := range []uint32{0, 1, 255, 256, tbl.Config().MaxCapacity - 1} {
		h := IndexToHandle(index)
		assert.True(t, h.WellFormed())
		got, ok := tbl.Index(h)
		assert.True(t, ok)
		assert.Equal(t, index, got)
	}

	_, ok := tbl.Index(IndexToHandle(1) | 1)
	assert.False(t, ok, "low bits must be zero")

	_, ok = tbl.Index(IndexToHandle(tbl.Config().MaxCapacity))
	assert.False(t, ok, "handles past the reservation are rejected")

	requireFatal(t, ErrMalformedHandle, func() { tbl.MustIndex("set", 0x17) })
}

func TestAllocateEntry_GrowsOneSegmentAtATime(t *testing.T) {
	tbl := newTestTable(t, Config{})
	eps := tbl.Config().EntriesPerSegment
	s := tbl.NewSpace("young")

	assert.Zero(t, s.Capacity())

	handles := allocate(tbl, s, int(eps))
	assert.Equal(t, eps, s.Capacity())
	assert.Zero(t, s.FreelistLength())
	assert.Equal(t, eps, HandleToIndex(handles[0]), "first writable segment follows the read-only one")

	allocate(tbl, s, 1)
	assert.Equal(t, 2*eps, s.Capacity())
	assert.Equal(t, 2, s.NumSegments())
	assert.Equal(t, 3*eps, tbl.Capacity())
	require.NoError(t, tbl.Verify(s))
}

func TestSweepAndCompact_ReusesFreedEntriesInOrder(t *testing.T) {
	tbl := newTestTable(t, Config{Compaction: CompactionNever})
	s := tbl.NewSpace("young")

	h := allocate(tbl, s, 5)
	for _, i := range []int{0, 2, 4} {
		markSlot(tbl, s, &h[i])
	}

	assert.Equal(t, uint32(3), tbl.SweepAndCompact(s))
	require.NoError(t, tbl.Verify(s))

	assert.Equal(t, HandleToIndex(h[1]), tbl.AllocateEntry(s))
	assert.Equal(t, HandleToIndex(h[3]), tbl.AllocateEntry(s))

	for _, i := range []int{0, 2, 4} {
		assert.Equal(t, valueFor(i), valueAt(tbl, h[i]))
		assert.False(t, tbl.At(HandleToIndex(h[i])).IsMarked(), "sweep clears mark bits")
	}
}

func TestSweepAndCompact_ReleasesEmptySegments(t *testing.T) {
	tbl := newTestTable(t, Config{Compaction: CompactionNever, Budget: resource.NewBudget(0)})
	eps := tbl.Config().EntriesPerSegment
	s := tbl.NewSpace("young")

	h := allocate(tbl, s, int(eps)+1)
	used := tbl.Config().Budget.Used()
	markSlot(tbl, s, &h[eps])

	assert.Equal(t, uint32(1), tbl.SweepAndCompact(s))
	assert.Equal(t, 1, s.NumSegments())
	assert.Equal(t, eps, s.Capacity())
	assert.Equal(t, used-int64(eps)*8, tbl.Config().Budget.Used())
	assert.Equal(t, valueFor(int(eps)), valueAt(tbl, h[eps]))
	require.NoError(t, tbl.Verify(s))

	// The released segment is the lowest free one and is reused first.
	index := tbl.AllocateEntry(s)
	assert.Equal(t, 2*eps, index/eps*eps)
	allocate(tbl, s, int(eps)-2)
	assert.Equal(t, eps, HandleToIndex(allocate(tbl, s, 1)[0]))
}

func TestSweepAndCompact_UnmarkedSpaceBecomesEmpty(t *testing.T) {
	tbl := newTestTable(t, Config{Compaction: CompactionNever})
	s := tbl.NewSpace("young")

	allocate(tbl, s, 100)
	assert.Zero(t, tbl.SweepAndCompact(s))
	assert.Zero(t, s.Capacity())
	assert.Zero(t, s.FreelistLength())
	require.NoError(t, tbl.Verify(s))
}

func TestSweepAndCompact_BlackAllocationSurvives(t *testing.T) {
	tbl := newTestTable(t, Config{Compaction: CompactionNever})
	s := tbl.NewSpace("old")

	s.SetAllocatingBlack(true)
	allocate(tbl, s, 3)
	s.SetAllocatingBlack(false)

	assert.Equal(t, uint32(3), tbl.SweepAndCompact(s))
	assert.Zero(t, tbl.SweepAndCompact(s), "marks do not outlive one cycle")
}

// compactionFixture leaves a space of two segments: the lower one holds
// two live entries, the upper one four.
func compactionFixture(t *testing.T, tbl *testTable, s *Space) []Handle {
	t.Helper()
	eps := int(tbl.Config().EntriesPerSegment)

	h := allocate(tbl, s, eps+4)
	live := []Handle{h[0], h[1], h[eps], h[eps+1], h[eps+2], h[eps+3]}
	for i := range live {
		markSlot(tbl, s, &live[i])
	}
	require.Equal(t, uint32(6), tbl.SweepAndCompact(s))
	require.Equal(t, 2, s.NumSegments())
	return live
}

func TestCompaction_EvacuatesTopSegmentAndPatchesHandles(t *testing.T) {
	tbl := newTestTable(t, Config{Compaction: CompactionStress})
	eps := tbl.Config().EntriesPerSegment
	s := tbl.NewSpace("old")

	live := compactionFixture(t, tbl, s)
	want := make([]uint64, len(live))
	for i, h := range live {
		want[i] = valueAt(tbl, h)
	}

	require.True(t, tbl.StartCompactingIfNeeded(s))
	start, ok := s.StartOfEvacuationArea()
	require.True(t, ok)
	assert.Equal(t, 2*eps, start)

	for i := range live {
		markSlot(tbl, s, &live[i])
	}

	assert.Equal(t, uint32(6), tbl.SweepAndCompact(s))
	assert.False(t, s.IsCompacting())
	assert.Equal(t, 1, s.NumSegments())
	require.NoError(t, tbl.Verify(s))

	for i, h := range live {
		assert.Less(t, HandleToIndex(h), start, "handle %d was not moved", i)
		assert.Equal(t, want[i], valueAt(tbl, h))
	}
	assert.Equal(t, []uint32{eps + 2, eps + 3, eps + 4, eps + 5}, []uint32{
		HandleToIndex(live[2]), HandleToIndex(live[3]), HandleToIndex(live[4]), HandleToIndex(live[5]),
	})
}

func TestCompaction_AutoRequiresEnoughFreeSpace(t *testing.T) {
	tbl := newTestTable(t, Config{Compaction: CompactionAuto})
	eps := int(tbl.Config().EntriesPerSegment)
	s := tbl.NewSpace("old")

	h := allocate(tbl, s, 3*eps)
	live := []Handle{h[0], h[eps], h[2*eps]}
	for i := range live {
		markSlot(tbl, s, &live[i])
	}
	require.Equal(t, uint32(3), tbl.SweepAndCompact(s))
	require.Equal(t, 3, s.NumSegments())

	require.True(t, tbl.StartCompactingIfNeeded(s))
	assert.False(t, tbl.StartCompactingIfNeeded(s), "already compacting")

	for i := range live {
		markSlot(tbl, s, &live[i])
	}
	assert.Equal(t, uint32(3), tbl.SweepAndCompact(s))
	assert.Equal(t, 2, s.NumSegments())
	assert.Less(t, HandleToIndex(live[2]), uint32(2*eps))

	small := tbl.NewSpace("small")
	allocate(tbl, small, 10)
	assert.False(t, tbl.StartCompactingIfNeeded(small), "single segment spaces are not compacted")

	never := newTestTable(t, Config{Compaction: CompactionNever})
	ns := never.NewSpace("never")
	allocate(never, ns, 3*eps)
	never.SweepAndCompact(ns)
	assert.False(t, never.StartCompactingIfNeeded(ns))
}

func TestCompaction_AbortsWithoutFreeEntriesBelowArea(t *testing.T) {
	tbl := newTestTable(t, Config{Compaction: CompactionStress})
	eps := int(tbl.Config().EntriesPerSegment)
	s := tbl.NewSpace("old")

	h := allocate(tbl, s, eps+eps/2)
	for i := range h {
		markSlot(tbl, s, &h[i])
	}
	require.Equal(t, uint32(len(h)), tbl.SweepAndCompact(s))

	require.True(t, tbl.StartCompactingIfNeeded(s))
	before := append([]Handle(nil), h...)
	for i := range h {
		markSlot(tbl, s, &h[i])
	}
	assert.True(t, s.CompactingWasAborted())

	assert.Equal(t, uint32(len(h)), tbl.SweepAndCompact(s))
	assert.Equal(t, before, h, "aborted compaction moves nothing")
	assert.Equal(t, 2, s.NumSegments())
	require.NoError(t, tbl.Verify(s))
}

func TestCompaction_AbortFreesEvacuationEntries(t *testing.T) {
	tests := []struct {
		name  string
		abort func(tbl *testTable, s *Space, live []Handle)
	}{
		{"unpatchable root", func(tbl *testTable, s *Space, live []Handle) {
			tbl.Mark(s, HandleToIndex(live[3]), nil)
		}},
		{"allocation inside area", func(tbl *testTable, s *Space, _ []Handle) {
			// Drain the free entries below the area, then one more.
			allocate(tbl, s, int(tbl.Config().EntriesPerSegment)-2)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := newTestTable(t, Config{Compaction: CompactionStress})
			eps := tbl.Config().EntriesPerSegment
			s := tbl.NewSpace("old")

			live := compactionFixture(t, tbl, s)
			want := make([]uint64, len(live))
			for i, h := range live {
				want[i] = valueAt(tbl, h)
			}

			require.True(t, tbl.StartCompactingIfNeeded(s))
			for i := range live[:3] {
				markSlot(tbl, s, &live[i])
			}

			// live[2] sits in the area and now has an evacuation entry below it.
			evacuation := tbl.At(eps + 2)
			key, ok := evacuation.EvacuationEntryKey()
			require.True(t, ok)
			assert.Equal(t, eps+2, key)
			assert.Same(t, &live[2], s.evacuations[key])

			before := append([]Handle(nil), live...)
			tt.abort(tbl, s, live)
			require.True(t, s.CompactingWasAborted())

			for i := range live[3:] {
				markSlot(tbl, s, &live[3+i])
			}

			assert.Equal(t, uint32(len(live)), tbl.SweepAndCompact(s), "only the reachable entries are live")
			assert.Equal(t, before, live, "aborted compaction moves nothing")
			assert.True(t, evacuation.IsFreelistEntry())
			assert.Equal(t, 2, s.NumSegments())
			assert.Empty(t, s.evacuations)
			for i, h := range live {
				assert.Equal(t, want[i], valueAt(tbl, h))
			}
			require.NoError(t, tbl.Verify(s))

			// The next cycle starts clean and compacts normally.
			require.True(t, tbl.StartCompactingIfNeeded(s))
			for i := range live {
				markSlot(tbl, s, &live[i])
			}
			assert.Equal(t, uint32(len(live)), tbl.SweepAndCompact(s))
			assert.Equal(t, 1, s.NumSegments())
			for i, h := range live {
				assert.Less(t, HandleToIndex(h), 2*eps)
				assert.Equal(t, want[i], valueAt(tbl, h))
			}
			require.NoError(t, tbl.Verify(s))
		})
	}
}

func TestVerify_DetectsMisplacedEvacuationKey(t *testing.T) {
	tbl := newTestTable(t, Config{Compaction: CompactionStress})
	s := tbl.NewSpace("old")

	live := compactionFixture(t, tbl, s)
	require.True(t, tbl.StartCompactingIfNeeded(s))
	markSlot(tbl, s, &live[2])
	require.NoError(t, tbl.Verify(s))

	eps := tbl.Config().EntriesPerSegment
	tbl.At(eps + 2).MakeEvacuationEntry(eps + 9)
	require.ErrorIs(t, tbl.Verify(s), ErrCorrupt)
	requireFatal(t, ErrInvariant, func() { tbl.SweepAndCompact(s) })
}

func TestCompaction_AllocationInsideAreaAborts(t *testing.T) {
	tbl := newTestTable(t, Config{Compaction: CompactionStress})
	eps := int(tbl.Config().EntriesPerSegment)
	s := tbl.NewSpace("old")

	h := allocate(tbl, s, eps+1)
	for i := range h {
		markSlot(tbl, s, &h[i])
	}
	tbl.SweepAndCompact(s)

	require.True(t, tbl.StartCompactingIfNeeded(s))
	allocate(tbl, s, 1)
	assert.True(t, s.IsCompacting())
	assert.True(t, s.CompactingWasAborted())
}

func TestCompaction_DuplicateEvacuationEntryIsFreed(t *testing.T) {
	tbl := newTestTable(t, Config{Compaction: CompactionStress})
	s := tbl.NewSpace("old")

	live := compactionFixture(t, tbl, s)
	require.True(t, tbl.StartCompactingIfNeeded(s))

	for i := range live {
		markSlot(tbl, s, &live[i])
	}
	markSlot(tbl, s, &live[5])

	assert.Equal(t, uint32(6), tbl.SweepAndCompact(s))
	assert.Equal(t, valueFor(int(tbl.Config().EntriesPerSegment)+3), valueAt(tbl, live[5]))
	require.NoError(t, tbl.Verify(s))
}

func TestCompaction_InvalidatedFieldIsNotPatched(t *testing.T) {
	tbl := newTestTable(t, Config{Compaction: CompactionStress})
	s := tbl.NewSpace("old")

	live := compactionFixture(t, tbl, s)
	require.True(t, tbl.StartCompactingIfNeeded(s))

	for i := range live {
		markSlot(tbl, s, &live[i])
	}
	stale := live[5]
	tbl.NotifyFieldInvalidated(s, &live[5])

	assert.Equal(t, uint32(5), tbl.SweepAndCompact(s))
	assert.Equal(t, stale, live[5])
	require.NoError(t, tbl.Verify(s))
}

func TestReadOnlySpace(t *testing.T) {
	tbl := newTestTable(t, Config{})
	ro := tbl.ReadOnlySpace()
	assert.True(t, ro.IsReadOnly())
	assert.Same(t, ro, tbl.Spaces()[0])

	index := tbl.AllocateEntry(ro)
	assert.Equal(t, uint32(1), index, "index 0 is the null entry")
	tbl.At(index).Store(payload.MakePointer(0x40, testTag, false))

	tbl.Mark(ro, index, nil)
	assert.False(t, tbl.At(index).IsMarked(), "read-only entries are never marked")

	requireFatal(t, ErrInvariant, func() { tbl.SweepAndCompact(ro) })
	requireFatal(t, ErrReadOnly, func() { tbl.CheckWritable("set", 0) })
	assert.False(t, tbl.StartCompactingIfNeeded(ro))

	require.NoError(t, tbl.Seal())
	require.NoError(t, tbl.Seal())
	assert.True(t, tbl.IsSealed())
	requireFatal(t, ErrReadOnly, func() { tbl.AllocateEntry(ro) })
	requireFatal(t, ErrReadOnly, func() { tbl.CheckWritable("set", index) })
	assert.Equal(t, uint64(0x40), tbl.At(index).Load().Pointer(payload.Exactly(testTag)))
	require.NoError(t, tbl.Verify(ro))
}

func TestFatal_OutOfCapacity(t *testing.T) {
	var reported []*FatalError
	tbl := newTestTable(t, Config{
		MaxCapacity: 2 * entriesPerPage(),
		Fatal:       func(fe *FatalError) { reported = append(reported, fe) },
	})
	s := tbl.NewSpace("young")

	allocate(tbl, s, int(entriesPerPage()))
	fe := requireFatal(t, ErrOutOfCapacity, func() { tbl.AllocateEntry(s) })

	assert.Equal(t, "grow", fe.Op)
	assert.Equal(t, "young", fe.Space)
	require.Len(t, reported, 1)
	assert.Same(t, fe, reported[0])

	// The space lock was released by the panic.
	assert.Equal(t, entriesPerPage(), s.Capacity())
}

func TestFatal_MemoryLimit(t *testing.T) {
	eps := entriesPerPage()
	budget := resource.NewBudget(2 * int64(vmem.PageSize()))
	tbl := newTestTable(t, Config{Budget: budget})
	s := tbl.NewSpace("young")

	allocate(tbl, s, int(eps))
	fe := requireFatal(t, ErrOutOfCapacity, func() { tbl.AllocateEntry(s) })
	assert.ErrorIs(t, fe, resource.ErrMemoryLimitExceeded)

	require.NoError(t, tbl.Close())
	assert.Zero(t, budget.Used())
}

func TestFatal_AllocationWhileSweeping(t *testing.T) {
	tbl := newTestTable(t, Config{})
	s := tbl.NewSpace("young")
	allocate(tbl, s, 1)

	s.storeHead(makeFreelistHead(allocationForbiddenMarker, 0))
	requireFatal(t, ErrAllocationForbidden, func() { tbl.AllocateEntry(s) })
}

func TestFatal_ForeignSpace(t *testing.T) {
	a := newTestTable(t, Config{})
	b := newTestTable(t, Config{})

	requireFatal(t, ErrInvariant, func() { a.AllocateEntry(b.NewSpace("b")) })
	requireFatal(t, ErrInvariant, func() { a.SweepAndCompact(nil) })
}

func TestVerify_DetectsCorruption(t *testing.T) {
	tbl := newTestTable(t, Config{})
	s := tbl.NewSpace("young")
	allocate(tbl, s, 4)
	require.NoError(t, tbl.Verify(s))

	head := s.loadHead()
	tbl.At(head.next()).Store(payload.MakePointer(0x80, testTag, false))
	require.ErrorIs(t, tbl.Verify(s), ErrCorrupt)
}

func TestIterateAndDescribe(t *testing.T) {
	tbl := newTestTable(t, Config{})
	s := tbl.NewSpace("young")
	h := allocate(tbl, s, 3)

	var live []uint32
	tbl.Iterate(s, func(index uint32, e *payload.PointerEntry) {
		if e.IsLive() {
			live = append(live, index)
		}
	})
	assert.Equal(t, []uint32{HandleToIndex(h[0]), HandleToIndex(h[1]), HandleToIndex(h[2])}, live)

	info := tbl.Describe(s)
	assert.Equal(t, "young", info.Name)
	assert.Equal(t, []uint32{1}, info.Segments)
	assert.Equal(t, tbl.Config().EntriesPerSegment-3, info.FreelistLength)
	assert.False(t, info.Compacting)
}

type recordingObserver struct {
	mu        sync.Mutex
	allocated []uint32
	started   []uint32
	aborted   []uint32
	sweeps    []SweepStats
}

func (o *recordingObserver) SegmentAllocated(_ string, segment, _ uint32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.allocated = append(o.allocated, segment)
}

func (o *recordingObserver) CompactionStarted(_ string, start uint32, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, start)
}

func (o *recordingObserver) CompactionAborted(_ string, start uint32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.aborted = append(o.aborted, start)
}

func (o *recordingObserver) Swept(stats SweepStats) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sweeps = append(o.sweeps, stats)
}

func TestObserver(t *testing.T) {
	obs := &recordingObserver{}
	tbl := newTestTable(t, Config{Compaction: CompactionStress, Observer: obs})
	s := tbl.NewSpace("old")

	live := compactionFixture(t, tbl, s)
	require.True(t, tbl.StartCompactingIfNeeded(s))
	for i := range live {
		markSlot(tbl, s, &live[i])
	}
	tbl.SweepAndCompact(s)

	assert.Equal(t, []uint32{1, 2}, obs.allocated)
	assert.Equal(t, []uint32{2 * tbl.Config().EntriesPerSegment}, obs.started)
	assert.Empty(t, obs.aborted)
	require.Len(t, obs.sweeps, 2)

	last := obs.sweeps[1]
	assert.True(t, last.Compacted)
	assert.Equal(t, uint32(4), last.Evacuated)
	assert.Equal(t, uint32(6), last.Live)
	assert.Equal(t, 1, last.SegmentsReleased)
	assert.Equal(t, tbl.Config().EntriesPerSegment-2, obs.sweeps[0].Reclaimed)
}

func TestConcurrentAllocateAndMark(t *testing.T) {
	tbl := newTestTable(t, Config{})
	s := tbl.NewSpace("young")

	const workers, perWorker = 8, 200
	results := make([][]Handle, workers)

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[w] = allocate(tbl, s, perWorker)
			for i := range results[w] {
				markSlot(tbl, s, &results[w][i])
			}
		}()
	}
	wg.Wait()

	seen := make(map[Handle]struct{}, workers*perWorker)
	for _, hs := range results {
		for _, h := range hs {
			seen[h] = struct{}{}
		}
	}
	assert.Len(t, seen, workers*perWorker, "every allocation is unique")
	assert.Equal(t, uint32(workers*perWorker), tbl.SweepAndCompact(s))
	require.NoError(t, tbl.Verify(s))
}
