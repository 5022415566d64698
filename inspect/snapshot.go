package inspect

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/exttable"
)

// Table is the read surface shared by exttable.PointerTable and
// exttable.DispatchTable.
type Table interface {
	Spaces() []*exttable.Space
	Describe(s *exttable.Space) exttable.SpaceInfo
	Capacity() uint32
	MaxCapacity() uint32
	IterateMarkedEntriesIn(s *exttable.Space, fn func(h exttable.Handle))
	Verify() error
}

// Snapshot is a point-in-time description of a table.
type Snapshot struct {
	Kind        string          `json:"kind"`
	MaxCapacity uint32          `json:"max_capacity"`
	Capacity    uint32          `json:"capacity"`
	Spaces      []SpaceSnapshot `json:"spaces"`
}

// SpaceSnapshot describes one space and its live entries.
type SpaceSnapshot struct {
	Name           string          `json:"name"`
	ReadOnly       bool            `json:"read_only,omitempty"`
	Segments       []uint32        `json:"segments"`
	Capacity       uint32          `json:"capacity"`
	FreelistLength uint32          `json:"freelist_length"`
	Compacting     bool            `json:"compacting,omitempty"`
	Aborted        bool            `json:"aborted,omitempty"`
	AllocateBlack  bool            `json:"allocate_black,omitempty"`
	Entries        []EntrySnapshot `json:"entries"`
}

// Live returns the number of live entries captured for the space.
func (s SpaceSnapshot) Live() int { return len(s.Entries) }

// EntrySnapshot describes one live entry. Tag is set for pointer tables,
// ParameterCount and TieringRequested for dispatch tables.
type EntrySnapshot struct {
	Handle           exttable.Handle `json:"handle"`
	Marked           bool            `json:"marked,omitempty"`
	Tag              exttable.Tag    `json:"tag,omitempty"`
	ParameterCount   uint16          `json:"parameter_count,omitempty"`
	TieringRequested bool            `json:"tiering_requested,omitempty"`
}

// Space returns the snapshot of the named space.
func (s *Snapshot) Space(name string) (SpaceSnapshot, bool) {
	for _, sp := range s.Spaces {
		if sp.Name == name {
			return sp, true
		}
	}
	return SpaceSnapshot{}, false
}

// Capture records the shape and live entries of every space of t. Mutators
// should be stopped for a consistent result.
func Capture(t Table) *Snapshot {
	snap := &Snapshot{
		Kind:        kindOf(t),
		MaxCapacity: t.MaxCapacity(),
		Capacity:    t.Capacity(),
	}

	for _, s := range t.Spaces() {
		info := t.Describe(s)
		ss := SpaceSnapshot{
			Name:           info.Name,
			ReadOnly:       info.ReadOnly,
			Segments:       info.Segments,
			Capacity:       info.Capacity,
			FreelistLength: info.FreelistLength,
			Compacting:     info.Compacting,
			Aborted:        info.Aborted,
			AllocateBlack:  info.AllocateBlack,
			Entries:        []EntrySnapshot{},
		}

		marked := roaring.New()
		t.IterateMarkedEntriesIn(s, func(h exttable.Handle) {
			marked.Add(uint32(h))
		})

		switch tt := t.(type) {
		case *exttable.PointerTable:
			tt.IterateActiveEntriesIn(s, func(h exttable.Handle, _ uint64, tag exttable.Tag) {
				ss.Entries = append(ss.Entries, EntrySnapshot{
					Handle: h,
					Marked: marked.Contains(uint32(h)),
					Tag:    tag,
				})
			})
		case *exttable.DispatchTable:
			tt.IterateActiveEntriesIn(s, func(h exttable.Handle, _, _ uint64, parameterCount uint16) {
				ss.Entries = append(ss.Entries, EntrySnapshot{
					Handle:           h,
					Marked:           marked.Contains(uint32(h)),
					ParameterCount:   parameterCount,
					TieringRequested: tt.IsTieringRequested(h),
				})
			})
		}

		snap.Spaces = append(snap.Spaces, ss)
	}
	return snap
}

func kindOf(t Table) string {
	switch t.(type) {
	case *exttable.PointerTable:
		return "pointer"
	case *exttable.DispatchTable:
		return "dispatch"
	default:
		return "unknown"
	}
}
