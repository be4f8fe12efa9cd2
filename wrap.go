package arena

import (
	"fmt"
	"unsafe"
)

// WrapArena is a fixed-size arena that never grows. When a request does not
// fit in the space left, the cursor wraps back to the start of the page and
// everything handed out before is silently reused.
//
// Only use it when whoever consumes earlier allocations is known to be done
// with them before the arena wraps. Refs issued by AllocRef do detect a wrap.
type WrapArena struct {
	a     *Arena
	wraps uint64
}

// NewWrapArena creates a wrapping arena of exactly size bytes. Its page is
// created immediately. A zero size, or a page the system allocator cannot
// provide, is fatal whatever the error behavior.
func NewWrapArena(size int, opts ...Option) *WrapArena {
	one := 1
	opts = append(opts[:len(opts):len(opts)], func(a *Arena) {
		a.settings.PageSize = ByteSize(max(size, 0))
		a.settings.MaxPages = &one
		a.settings.Preallocate = false
	})
	a := NewFromSettings(DefaultSettings(), opts...)
	if _, err := a.grow(a.pageSize, a.settings.Alignment); err != nil {
		a.die(err)
	}
	return &WrapArena{a: a}
}

// Alloc returns size bytes aligned to align, wrapping to the start of the
// page if they do not fit in what is left. A request that could not fit even
// in an empty page is fatal.
func (w *WrapArena) Alloc(size, align int) []byte {
	a := w.a
	a.panicIfReleased()
	if size <= 0 {
		return nil
	}
	if !isPowerOfTwo(align) {
		a.die(&AllocError{Op: "wrap alloc", Size: size, Align: align, Err: ErrBadAlignment})
	}
	p := a.pages[0]
	before := p.offset
	if b := p.Alloc(size, align); b != nil {
		a.account(size, p.offset-before)
		return b
	}

	base := uintptr(unsafe.Pointer(unsafe.SliceData(p.buf)))
	if int(padding(base, uintptr(align)))+size > p.Size() {
		a.die(&AllocError{Op: "wrap alloc", Size: size, Align: align, Err: ErrRequestTooLarge})
	}
	w.wrap()
	b := p.Alloc(size, align)
	a.account(size, p.offset)
	return b
}

// AllocBytes returns n bytes at the default alignment.
func (w *WrapArena) AllocBytes(n int) []byte {
	return w.Alloc(n, w.a.settings.Alignment)
}

// AllocRef allocates size bytes and returns a reference that goes stale once
// the arena wraps.
func (w *WrapArena) AllocRef(size int) Ref {
	b := w.AllocBytes(size)
	if b == nil {
		return Ref{}
	}
	return w.a.refTo(w.a.pages[0], b)
}

// Deref returns the memory r refers to, or ErrStaleRef after a wrap or reset.
func (w *WrapArena) Deref(r Ref) ([]byte, error) {
	return w.a.Deref(r)
}

// wrap moves the cursor back to the start. The old contents are zeroed if the
// arena zero-initializes, and poisoned.
func (w *WrapArena) wrap() {
	a := w.a
	a.pages[0].rewind(0, a.settings.ZeroInitialize)
	a.generation++
	a.allocated = 0
	a.wasted = 0
	w.wraps++
	a.log.Debug("wrap", "arena", a.id, "wraps", w.wraps, "capacity", ibytes(a.capacity))
}

// Reset moves the cursor back to the start.
func (w *WrapArena) Reset() {
	w.a.Reset()
}

// Release frees the page. Any subsequent use panics.
func (w *WrapArena) Release() {
	w.a.Release()
}

// Allocated returns the bytes requested since the last wrap or reset.
func (w *WrapArena) Allocated() int { return w.a.allocated }

// Capacity returns the size of the arena.
func (w *WrapArena) Capacity() int { return w.a.capacity }

// Offset returns the cursor position.
func (w *WrapArena) Offset() int {
	if len(w.a.pages) == 0 {
		return 0
	}
	return w.a.pages[0].offset
}

// Wraps returns how many times the cursor went back to the start.
func (w *WrapArena) Wraps() uint64 { return w.wraps }

// Generation returns the current generation.
func (w *WrapArena) Generation() uint32 { return w.a.generation }

// Metrics returns a snapshot of arena statistics.
func (w *WrapArena) Metrics() Metrics { return w.a.Metrics() }

func (w *WrapArena) String() string {
	return fmt.Sprintf("WrapArena{capacity: %s, offset: %d, wraps: %d}",
		ibytes(w.Capacity()), w.Offset(), w.wraps)
}
