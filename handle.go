package exttable

import (
	"github.com/hupe1980/exttable/internal/entitytable"
	"github.com/hupe1980/exttable/internal/payload"
)

// Handle is an opaque reference to a table entry, safe to store in memory
// an attacker may control. The zero Handle is the null handle.
type Handle = entitytable.Handle

// NullHandle names the reserved null entry. Reading it yields 0.
const NullHandle = entitytable.NullHandle

// HandleShift is the number of low handle bits that are always zero.
const HandleShift = entitytable.HandleShift

// Space is a set of segments with its own freelist.
type Space = entitytable.Space

// SpaceInfo describes the shape of a space.
type SpaceInfo = entitytable.SpaceInfo

// SweepStats summarizes one sweep.
type SweepStats = entitytable.SweepStats

// CompactionMode selects when segments are evacuated.
type CompactionMode = entitytable.CompactionMode

const (
	CompactionAuto   = entitytable.CompactionAuto
	CompactionNever  = entitytable.CompactionNever
	CompactionStress = entitytable.CompactionStress
)

// Tag identifies the type of a stored pointer.
type Tag = payload.Tag

// TagRange is an inclusive range of accepted tags.
type TagRange = payload.TagRange

const (
	// NullTag is the tag of the null entry.
	NullTag = payload.NullTag
	// MaxUserTag is the largest tag that may be stored.
	MaxUserTag = payload.MaxUserTag
)

// Exactly returns the range accepting only tag.
func Exactly(tag Tag) TagRange { return payload.Exactly(tag) }

// Range returns the inclusive range [minTag, maxTag].
func Range(minTag, maxTag Tag) TagRange { return payload.Range(minTag, maxTag) }

// IndexOf returns the entry index a handle encodes, without validation.
func IndexOf(h Handle) uint32 { return entitytable.HandleToIndex(h) }

// LoadHandle atomically reads the handle stored at loc.
func LoadHandle(loc *Handle) Handle { return entitytable.LoadHandle(loc) }

// StoreHandle atomically writes h to loc. Handle slots that are passed to
// Mark must be written this way while the collector may run.
func StoreHandle(loc *Handle, h Handle) { entitytable.StoreHandle(loc, h) }
