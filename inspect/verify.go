package inspect

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// Verify checks every space of t and the table-wide segment accounting:
// segments are owned by exactly one space, the read-only space owns only
// segment 0 and the committed capacity equals the sum of all spaces.
//
// Mutators and sweeps must be stopped.
func Verify(t Table) error {
	var errs []error
	if err := t.Verify(); err != nil {
		errs = append(errs, err)
	}

	owned := roaring.New()
	var total uint32
	for _, s := range t.Spaces() {
		info := t.Describe(s)
		segs := roaring.BitmapOf(info.Segments...)

		if info.ReadOnly && !(segs.GetCardinality() == 1 && segs.Contains(0)) {
			errs = append(errs, fmt.Errorf("%w: read-only space owns segments %v", ErrCorrupt, info.Segments))
		}
		if !info.ReadOnly && segs.Contains(0) {
			errs = append(errs, fmt.Errorf("%w: space %q owns the read-only segment", ErrCorrupt, info.Name))
		}
		if shared := roaring.And(owned, segs); !shared.IsEmpty() {
			errs = append(errs, fmt.Errorf("%w: space %q shares segments %v", ErrCorrupt, info.Name, shared.ToArray()))
		}
		if info.FreelistLength > info.Capacity {
			errs = append(errs, fmt.Errorf("%w: space %q: freelist length %d exceeds capacity %d",
				ErrCorrupt, info.Name, info.FreelistLength, info.Capacity))
		}

		owned.Or(segs)
		total += info.Capacity
	}

	if c := t.Capacity(); c != total {
		errs = append(errs, fmt.Errorf("%w: table capacity %d, spaces hold %d", ErrCorrupt, c, total))
	}
	if c := t.Capacity(); c > t.MaxCapacity() {
		errs = append(errs, fmt.Errorf("%w: capacity %d exceeds reservation %d", ErrCorrupt, c, t.MaxCapacity()))
	}
	return errors.Join(errs...)
}
