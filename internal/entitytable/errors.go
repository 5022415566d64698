package entitytable

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfCapacity is raised when no segment can be committed.
	ErrOutOfCapacity = errors.New("exttable: table capacity exhausted")
	// ErrAllocationForbidden is raised by an allocation racing a sweep.
	ErrAllocationForbidden = errors.New("exttable: allocation while sweeping")
	// ErrInvariant is raised when internal table state is inconsistent.
	ErrInvariant = errors.New("exttable: internal invariant violated")
	// ErrMalformedHandle is raised when a mutation names no valid entry.
	ErrMalformedHandle = errors.New("exttable: malformed handle")
	// ErrReadOnly is raised when mutating a sealed read-only entry.
	ErrReadOnly = errors.New("exttable: read-only entry")
	// ErrInvalidValue is raised when a value cannot be encoded losslessly.
	ErrInvalidValue = errors.New("exttable: value cannot be encoded")
	// ErrInvalidTagRange is raised for ranges that are empty or reach reserved tags.
	ErrInvalidTagRange = errors.New("exttable: invalid tag range")
	// ErrInvalidConfig is returned by constructors for unusable settings.
	ErrInvalidConfig = errors.New("exttable: invalid configuration")
	// ErrCorrupt is returned by Verify when table state is inconsistent.
	ErrCorrupt = errors.New("exttable: table corruption detected")
)

// FatalError describes an unrecoverable table failure.
//
// The original sentinel can be matched with errors.Is.
type FatalError struct {
	Op    string
	Space string
	Index uint32
	Err   error
}

func (e *FatalError) Error() string {
	if e.Space == "" {
		return fmt.Sprintf("exttable: fatal %s at index %d: %v", e.Op, e.Index, e.Err)
	}
	return fmt.Sprintf("exttable: fatal %s in space %q at index %d: %v", e.Op, e.Space, e.Index, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }
