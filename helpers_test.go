package exttable_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/exttable"
	"github.com/hupe1980/exttable/internal/vmem"
)

const (
	fileTag   exttable.Tag = 10
	socketTag exttable.Tag = 11
	timerTag  exttable.Tag = 12
)

// pointerEntriesPerSegment is the segment size of tables built with one
// page per segment.
func pointerEntriesPerSegment() uint32 {
	return uint32(vmem.PageSize()) / 8
}

func newPointerTable(t *testing.T, opts ...exttable.Option) *exttable.PointerTable {
	t.Helper()

	base := []exttable.Option{
		exttable.WithSegmentPages(1),
		exttable.WithMaxCapacity(16 * pointerEntriesPerSegment()),
	}
	tbl, err := exttable.New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tbl.Close() })
	return tbl
}

// expectFatal runs fn and returns the *FatalError it panicked with.
func expectFatal(t *testing.T, target error, fn func()) *exttable.FatalError {
	t.Helper()

	var fe *exttable.FatalError
	func() {
		defer func() {
			r := recover()
			require.NotNil(t, r, "expected a fatal error")
			var ok bool
			fe, ok = r.(*exttable.FatalError)
			require.True(t, ok, "unexpected panic value %v", r)
		}()
		fn()
	}()

	require.ErrorIs(t, fe, target)
	return fe
}

// host models a heap object with a handle field that the collector may
// rewrite.
type host struct {
	handle exttable.Handle
	value  uint64
	tag    exttable.Tag
}
