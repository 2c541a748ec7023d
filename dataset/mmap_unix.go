//go:build unix

package dataset

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// mapFile maps path read-only. release must be called once the bytes are no longer used.
func mapFile(path string) (data []byte, release func() error, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap: open file for reading: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("mmap: stat file: %w", err)
	}
	size := info.Size()
	if size == 0 {
		return nil, func() error { return nil }, nil
	}

	data, err = unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap: map %s: %w", path, err)
	}
	// Inputs are scanned front to back once.
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)

	return data, func() error {
		if err := unix.Munmap(data); err != nil {
			return fmt.Errorf("mmap: unmap %s: %w", path, err)
		}
		return nil
	}, nil
}
