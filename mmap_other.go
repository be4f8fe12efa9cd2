//go:build !unix

package arena

// MmapAllocator falls back to the Go heap where anonymous mappings are not
// available.
type MmapAllocator struct{}

func (MmapAllocator) Allocate(size, align int) ([]byte, error) {
	return HeapAllocator{}.Allocate(size, align)
}

func (MmapAllocator) Release([]byte) {}

func (MmapAllocator) Zeroes() bool { return true }
