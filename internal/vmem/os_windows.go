//go:build windows

package vmem

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

func osReserve(size int) ([]byte, func([]byte) error, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	if err != nil {
		return nil, nil, err
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size) //nolint:gosec // VirtualAlloc result

	return data, func([]byte) error {
		// MEM_RELEASE requires size 0 and the base address of the reservation.
		return windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
	}, nil
}

func osCommit(b []byte) error {
	_, err := windows.VirtualAlloc(addressOf(b), uintptr(len(b)), windows.MEM_COMMIT, windows.PAGE_READWRITE)
	return err
}

func osDecommit(b []byte) error {
	return windows.VirtualFree(addressOf(b), uintptr(len(b)), windows.MEM_DECOMMIT)
}

func osProtect(b []byte, prot Protection) error {
	mode := uint32(windows.PAGE_READWRITE)
	if prot == ReadOnly {
		mode = windows.PAGE_READONLY
	}
	var old uint32
	return windows.VirtualProtect(addressOf(b), uintptr(len(b)), mode, &old)
}

func addressOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b))) //nolint:gosec // address of reserved range
}
