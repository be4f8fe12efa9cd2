//go:build unix

package arena

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MmapAllocator maps every page as its own anonymous private mapping, outside
// the Go heap. Pages must be Released explicitly; the garbage collector does
// not see them.
type MmapAllocator struct{}

// Allocate maps size bytes rounded up to the OS page size. Mappings are OS
// page aligned, so align may not exceed the OS page size.
func (MmapAllocator) Allocate(size, align int) ([]byte, error) {
	if size <= 0 {
		return nil, nil
	}
	osPage := os.Getpagesize()
	if align > osPage {
		return nil, fmt.Errorf("%w: mmap alignment %d exceeds page size %d", ErrBadAlignment, align, osPage)
	}
	length := (size + osPage - 1) &^ (osPage - 1)
	buf, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap %d bytes: %v", ErrOutOfMemory, length, err)
	}
	return buf[:size], nil
}

// Release unmaps buf.
func (MmapAllocator) Release(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	if err := unix.Munmap(buf[:cap(buf)]); err != nil {
		Logger().Warn("munmap failed", "err", err)
	}
}

func (MmapAllocator) Zeroes() bool { return true }
