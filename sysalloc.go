package arena

import (
	"context"
	"sync/atomic"
	"unsafe"

	"github.com/klauspost/cpuid/v2"
	"golang.org/x/sync/semaphore"
)

// SystemAllocator provides the memory behind arena pages.
type SystemAllocator interface {
	// Allocate returns size bytes whose first byte is aligned to align.
	Allocate(size, align int) ([]byte, error)
	// Release gives back a buffer obtained from Allocate.
	Release(buf []byte)
}

// zeroingAllocator is implemented by allocators that always return zeroed memory.
type zeroingAllocator interface {
	Zeroes() bool
}

func allocatorZeroes(sys SystemAllocator) bool {
	z, ok := sys.(zeroingAllocator)
	return ok && z.Zeroes()
}

// CacheLineSize returns the CPU cache line size, or 64 if it is unknown.
func CacheLineSize() int {
	if n := cpuid.CPU.CacheLine; n > 0 && isPowerOfTwo(n) {
		return n
	}
	return 64
}

// HeapAllocator allocates pages on the Go heap.
type HeapAllocator struct{}

// Heap is the default SystemAllocator.
var Heap SystemAllocator = HeapAllocator{}

// Allocate over-allocates by align bytes and slices to the first aligned byte.
func (HeapAllocator) Allocate(size, align int) ([]byte, error) {
	if size <= 0 {
		return nil, nil
	}
	if align <= 1 {
		return make([]byte, size), nil
	}
	buf := make([]byte, size+align)
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	off := int(padding(addr, uintptr(align)))
	return buf[off : off+size : off+size], nil
}

// Release is a no-op; the garbage collector reclaims the buffer.
func (HeapAllocator) Release([]byte) {}

func (HeapAllocator) Zeroes() bool { return true }

// BudgetAllocator enforces a hard limit on the bytes handed out by another allocator.
type BudgetAllocator struct {
	base  SystemAllocator
	sem   *semaphore.Weighted
	limit int64
	used  atomic.Int64
}

// NewBudgetAllocator limits base to limit bytes. A nil base means Heap.
func NewBudgetAllocator(limit int64, base SystemAllocator) *BudgetAllocator {
	if base == nil {
		base = Heap
	}
	return &BudgetAllocator{
		base:  base,
		sem:   semaphore.NewWeighted(limit),
		limit: limit,
	}
}

// Allocate fails with ErrOutOfMemory once the budget is exhausted.
func (b *BudgetAllocator) Allocate(size, align int) ([]byte, error) {
	n := int64(size)
	if !b.sem.TryAcquire(n) {
		return nil, ErrOutOfMemory
	}
	buf, err := b.base.Allocate(size, align)
	if err != nil {
		b.sem.Release(n)
		return nil, err
	}
	b.used.Add(n)
	return buf, nil
}

// Release returns buf to the base allocator and its size to the budget.
func (b *BudgetAllocator) Release(buf []byte) {
	n := int64(len(buf))
	b.base.Release(buf)
	b.used.Add(-n)
	b.sem.Release(n)
}

func (b *BudgetAllocator) Zeroes() bool { return allocatorZeroes(b.base) }

// InUse returns the bytes currently handed out.
func (b *BudgetAllocator) InUse() int64 { return b.used.Load() }

// Limit returns the budget.
func (b *BudgetAllocator) Limit() int64 { return b.limit }

// Wait blocks until n bytes of budget are free or ctx is done. It does not
// reserve them.
func (b *BudgetAllocator) Wait(ctx context.Context, n int64) error {
	if err := b.sem.Acquire(ctx, n); err != nil {
		return err
	}
	b.sem.Release(n)
	return nil
}
