package exttable

import (
	"sync/atomic"
)

// CompactionEvent identifies a step of a compaction cycle.
type CompactionEvent int

const (
	// CompactionEventStarted is recorded when an evacuation area is chosen.
	CompactionEventStarted CompactionEvent = iota
	// CompactionEventAborted is recorded when no slot below the area was left.
	CompactionEventAborted
	// CompactionEventCompleted is recorded when a sweep released the area.
	CompactionEventCompleted
)

// MetricsCollector defines an interface for collecting table metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Calls are made on the allocation and sweep paths, some with space locks
// held: implementations must be fast and must not call back into the table.
type MetricsCollector interface {
	// RecordAllocate is called after each entry allocation.
	RecordAllocate(space string)

	// RecordGrow is called after a segment was committed to a space.
	// capacity is the new capacity of the space in entries.
	RecordGrow(space string, capacity uint32)

	// RecordSweep is called after each SweepAndCompact.
	RecordSweep(stats SweepStats)

	// RecordCompaction is called for every compaction step.
	RecordCompaction(space string, event CompactionEvent)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAllocate(string)                    {}
func (NoopMetricsCollector) RecordGrow(string, uint32)                {}
func (NoopMetricsCollector) RecordSweep(SweepStats)                   {}
func (NoopMetricsCollector) RecordCompaction(string, CompactionEvent) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AllocateCount       atomic.Int64
	GrowCount           atomic.Int64
	SweepCount          atomic.Int64
	SweepTotalNanos     atomic.Int64
	ReclaimedEntries    atomic.Int64
	EvacuatedEntries    atomic.Int64
	ReleasedSegments    atomic.Int64
	LastLive            atomic.Int64
	CompactionsStarted  atomic.Int64
	CompactionsAborted  atomic.Int64
	CompactionsFinished atomic.Int64
}

// RecordAllocate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAllocate(string) {
	b.AllocateCount.Add(1)
}

// RecordGrow implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGrow(string, uint32) {
	b.GrowCount.Add(1)
}

// RecordSweep implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSweep(stats SweepStats) {
	b.SweepCount.Add(1)
	b.SweepTotalNanos.Add(stats.Duration.Nanoseconds())
	b.ReclaimedEntries.Add(int64(stats.Reclaimed))
	b.EvacuatedEntries.Add(int64(stats.Evacuated))
	b.ReleasedSegments.Add(int64(stats.SegmentsReleased))
	b.LastLive.Store(int64(stats.Live))
}

// RecordCompaction implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCompaction(_ string, event CompactionEvent) {
	switch event {
	case CompactionEventStarted:
		b.CompactionsStarted.Add(1)
	case CompactionEventAborted:
		b.CompactionsAborted.Add(1)
	case CompactionEventCompleted:
		b.CompactionsFinished.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AllocateCount:       b.AllocateCount.Load(),
		GrowCount:           b.GrowCount.Load(),
		SweepCount:          b.SweepCount.Load(),
		SweepAvgNanos:       b.getAvgSweepNanos(),
		ReclaimedEntries:    b.ReclaimedEntries.Load(),
		EvacuatedEntries:    b.EvacuatedEntries.Load(),
		ReleasedSegments:    b.ReleasedSegments.Load(),
		LastLive:            b.LastLive.Load(),
		CompactionsStarted:  b.CompactionsStarted.Load(),
		CompactionsAborted:  b.CompactionsAborted.Load(),
		CompactionsFinished: b.CompactionsFinished.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgSweepNanos() int64 {
	count := b.SweepCount.Load()
	if count == 0 {
		return 0
	}
	return b.SweepTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AllocateCount       int64
	GrowCount           int64
	SweepCount          int64
	SweepAvgNanos       int64
	ReclaimedEntries    int64
	EvacuatedEntries    int64
	ReleasedSegments    int64
	LastLive            int64
	CompactionsStarted  int64
	CompactionsAborted  int64
	CompactionsFinished int64
}
