//go:build unix

package vmem

import (
	"golang.org/x/sys/unix"
)

func osReserve(size int) ([]byte, func([]byte) error, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}
	return data, unix.Munmap, nil
}

func osCommit(b []byte) error {
	return unix.Mprotect(b, unix.PROT_READ|unix.PROT_WRITE)
}

func osDecommit(b []byte) error {
	// MADV_DONTNEED drops the pages of a private anonymous mapping; on Linux
	// the next touch sees zero pages.
	if err := unix.Madvise(b, unix.MADV_DONTNEED); err != nil {
		return err
	}
	return unix.Mprotect(b, unix.PROT_NONE)
}

func osProtect(b []byte, prot Protection) error {
	mode := unix.PROT_READ | unix.PROT_WRITE
	if prot == ReadOnly {
		mode = unix.PROT_READ
	}
	return unix.Mprotect(b, mode)
}
