package entitytable

import (
	"fmt"
	"time"

	"github.com/hupe1980/exttable/internal/resource"
)

// CompactionMode selects when StartCompactingIfNeeded evacuates segments.
type CompactionMode int

const (
	// CompactionAuto evacuates when enough of a space is free.
	CompactionAuto CompactionMode = iota
	// CompactionNever disables compaction.
	CompactionNever
	// CompactionStress evacuates at least one segment on every cycle.
	CompactionStress
)

func (m CompactionMode) String() string {
	switch m {
	case CompactionAuto:
		return "auto"
	case CompactionNever:
		return "never"
	case CompactionStress:
		return "stress"
	default:
		return fmt.Sprintf("CompactionMode(%d)", int(m))
	}
}

const (
	// DefaultSegmentBytes is the size of one segment of the reservation.
	DefaultSegmentBytes = 64 * 1024

	// A space must be at least this many segments before it is compacted.
	minSegmentsForCompaction = 2
	// Minimum free ratio (in percent) for CompactionAuto.
	minFreePercentForCompaction = 10
)

// SweepStats summarizes one SweepAndCompact call.
type SweepStats struct {
	Space            string
	Live             uint32
	Reclaimed        uint32
	Evacuated        uint32
	SegmentsReleased int
	Compacted        bool
	Aborted          bool
	Duration         time.Duration
}

// Observer receives table events. Calls happen with space locks held, so
// implementations must not call back into the table.
type Observer interface {
	SegmentAllocated(space string, segment uint32, capacity uint32)
	CompactionStarted(space string, startOfEvacuationArea uint32, segments int)
	CompactionAborted(space string, startOfEvacuationArea uint32)
	Swept(stats SweepStats)
}

type noopObserver struct{}

func (noopObserver) SegmentAllocated(string, uint32, uint32) {}
func (noopObserver) CompactionStarted(string, uint32, int)   {}
func (noopObserver) CompactionAborted(string, uint32)        {}
func (noopObserver) Swept(SweepStats)                        {}

// Config describes a table.
type Config struct {
	// EntriesPerSegment must fill whole pages of the reservation.
	EntriesPerSegment uint32
	// MaxCapacity is the number of entries the reservation covers, a
	// multiple of EntriesPerSegment. The first segment is read-only.
	MaxCapacity uint32
	Compaction  CompactionMode
	// Budget is charged for every committed segment. Optional.
	Budget *resource.Budget
	// Observer is optional.
	Observer Observer
	// Fatal runs before the table panics on an unrecoverable error.
	Fatal func(*FatalError)
}

func (c Config) validate(entrySize uintptr, pageSize int) error {
	if c.EntriesPerSegment == 0 {
		return fmt.Errorf("%w: entries per segment must be positive", ErrInvalidConfig)
	}
	if bytes := uint64(c.EntriesPerSegment) * uint64(entrySize); bytes%uint64(pageSize) != 0 {
		return fmt.Errorf("%w: segment of %d bytes is not page aligned", ErrInvalidConfig, bytes)
	}
	if c.MaxCapacity%c.EntriesPerSegment != 0 {
		return fmt.Errorf("%w: max capacity %d is not a multiple of %d", ErrInvalidConfig, c.MaxCapacity, c.EntriesPerSegment)
	}
	if c.MaxCapacity/c.EntriesPerSegment < 2 {
		return fmt.Errorf("%w: max capacity %d leaves no writable segment", ErrInvalidConfig, c.MaxCapacity)
	}
	if c.MaxCapacity > MaxEntries {
		return fmt.Errorf("%w: max capacity %d exceeds %d", ErrInvalidConfig, c.MaxCapacity, MaxEntries)
	}
	switch c.Compaction {
	case CompactionAuto, CompactionNever, CompactionStress:
	default:
		return fmt.Errorf("%w: unknown compaction mode %d", ErrInvalidConfig, int(c.Compaction))
	}
	return nil
}
