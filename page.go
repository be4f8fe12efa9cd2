package arena

import (
	"unsafe"
)

// Page is one contiguous buffer with a bump cursor. Pages never move or grow;
// an arena grows by adding pages.
type Page struct {
	buf    []byte
	raw    []byte // as returned by sys, for Release
	offset int // allocation offset within buf
	high   int // highest offset ever reached, for re-zeroing
	align  int // alignment requested at creation
	index  int // position in the owning arena

	sys  SystemAllocator
	inst Instrumentation
}

// NewPage allocates a page of size bytes aligned to align. The whole page
// starts out poisoned.
func NewPage(sys SystemAllocator, inst Instrumentation, size, align int) (*Page, error) {
	if size <= 0 {
		return nil, &AllocError{Op: "page", Size: size, Err: ErrZeroPageSize}
	}
	if !isPowerOfTwo(align) {
		return nil, &AllocError{Op: "page", Size: size, Align: align, Err: ErrBadAlignment}
	}
	if sys == nil {
		sys = Heap
	}
	if inst == nil {
		inst = NopInstrumentation{}
	}
	buf, err := sys.Allocate(size, align)
	if err != nil || len(buf) < size {
		if err == nil {
			err = ErrOutOfMemory
		}
		return nil, &AllocError{Op: "page", Size: size, Align: align, Err: err}
	}
	p := &Page{
		buf:   buf[:size:size],
		raw:   buf,
		align: align,
		sys:   sys,
		inst:  inst,
	}
	inst.Poison(p.buf)
	return p, nil
}

// Alloc hands out size bytes aligned to align, or returns nil if they do not
// fit. align must be a power of two.
func (p *Page) Alloc(size, align int) []byte {
	if p.buf == nil {
		return nil
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(p.buf)))
	pad := int(padding(base+uintptr(p.offset), uintptr(align)))
	if pad+size > p.Available() {
		return nil
	}
	start := p.offset + pad
	p.offset = start + size
	if p.offset > p.high {
		p.high = p.offset
	}
	b := p.buf[start:p.offset:p.offset]
	p.inst.Unpoison(b)
	return b
}

// Available returns the bytes left after the cursor.
func (p *Page) Available() int {
	return len(p.buf) - p.offset
}

// Size returns the page size.
func (p *Page) Size() int { return len(p.buf) }

// Offset returns the allocation offset.
func (p *Page) Offset() int { return p.offset }

// Align returns the alignment the page was created with.
func (p *Page) Align() int { return p.align }

// Index returns the position of the page in its arena, oldest first.
func (p *Page) Index() int { return p.index }

// Destroy returns the buffer to the system allocator. It is safe to call twice.
func (p *Page) Destroy() {
	if p.buf == nil {
		return
	}
	p.inst.Unpoison(p.buf)
	p.sys.Release(p.raw)
	p.buf = nil
	p.raw = nil
	p.offset = 0
	p.high = 0
}

// rewind moves the cursor back to off, re-poisoning everything that was ever
// handed out past it and zeroing it if asked.
func (p *Page) rewind(off int, zero bool) {
	if p.buf == nil || off > p.offset {
		return
	}
	dirty := p.buf[off:p.high]
	if zero {
		clear(dirty)
	}
	p.inst.Poison(dirty)
	p.offset = off
	p.high = off
}

// padding returns the bytes needed to round addr up to align.
func padding(addr, align uintptr) uintptr {
	mask := align - 1
	return (align - (addr & mask)) & mask
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
