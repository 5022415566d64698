package exttable

import (
	"github.com/hupe1980/exttable/internal/entitytable"
)

var (
	// ErrOutOfCapacity is the cause of a fatal error when no segment can be
	// committed, either because the reservation is full or the memory limit
	// is reached.
	ErrOutOfCapacity = entitytable.ErrOutOfCapacity

	// ErrAllocationForbidden is the cause of a fatal error when an
	// allocation races a sweep of the same space.
	ErrAllocationForbidden = entitytable.ErrAllocationForbidden

	// ErrInvariant is the cause of a fatal error when table state is
	// inconsistent: a dead entry being evacuated, a foreign space, a sweep of
	// the read-only space.
	ErrInvariant = entitytable.ErrInvariant

	// ErrMalformedHandle is the cause of a fatal error when a mutation names
	// a handle that could not have been issued.
	ErrMalformedHandle = entitytable.ErrMalformedHandle

	// ErrReadOnly is the cause of a fatal error when writing the null entry
	// or a sealed read-only entry.
	ErrReadOnly = entitytable.ErrReadOnly

	// ErrInvalidValue is the cause of a fatal error when a value does not
	// survive the entry encoding.
	ErrInvalidValue = entitytable.ErrInvalidValue

	// ErrInvalidTagRange is the cause of a fatal error for a tag range that
	// is empty or reaches a reserved tag.
	ErrInvalidTagRange = entitytable.ErrInvalidTagRange

	// ErrInvalidConfig is returned by constructors.
	ErrInvalidConfig = entitytable.ErrInvalidConfig

	// ErrCorrupt is returned by Verify.
	ErrCorrupt = entitytable.ErrCorrupt
)

// FatalError is the panic value of an unrecoverable table failure and the
// argument of the fatal handler.
//
// The original sentinel can be matched with errors.Is.
type FatalError = entitytable.FatalError
