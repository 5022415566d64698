package vmem

import "errors"

var (
	// ErrClosed is returned when operating on a released reservation.
	ErrClosed = errors.New("vmem: reservation is closed")
	// ErrInvalidSize is returned for non-positive reservation sizes.
	ErrInvalidSize = errors.New("vmem: invalid size")
	// ErrOutOfBounds is returned for ranges outside the reservation.
	ErrOutOfBounds = errors.New("vmem: range out of bounds")
	// ErrUnaligned is returned for ranges that are not page aligned.
	ErrUnaligned = errors.New("vmem: range not page aligned")
)

// Protection is the access mode of committed pages.
type Protection int

const (
	// ReadWrite allows loads and stores.
	ReadWrite Protection = iota
	// ReadOnly allows loads only.
	ReadOnly
)
