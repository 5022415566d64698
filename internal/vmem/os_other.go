//go:build !unix && !windows

package vmem

// Platforms without virtual-memory control get a heap-backed range. Commit
// and protect cannot be enforced; decommit clears the pages.

func osReserve(size int) ([]byte, func([]byte) error, error) {
	return make([]byte, size), nil, nil
}

func osCommit([]byte) error { return nil }

func osDecommit(b []byte) error {
	clear(b)
	return nil
}

func osProtect([]byte, Protection) error { return nil }
