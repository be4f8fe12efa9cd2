package arena

import (
	"fmt"
	"unsafe"
)

// Ref is a generation-tagged reference to arena memory. Unlike a pointer it
// can be checked: Deref fails with ErrStaleRef once the arena has been reset,
// released or wrapped past it.
type Ref struct {
	arena uint32
	gen   uint32
	page  int
	off   int
	size  int
}

// IsZero reports whether r refers to nothing.
func (r Ref) IsZero() bool { return r.arena == 0 }

// Size returns the size of the referenced range.
func (r Ref) Size() int { return r.size }

// Generation returns the arena generation r was issued in.
func (r Ref) Generation() uint32 { return r.gen }

func (r Ref) String() string {
	return fmt.Sprintf("Ref{arena: %d, gen: %d, page: %d, off: %d, size: %d}",
		r.arena, r.gen, r.page, r.off, r.size)
}

// AllocRef allocates size bytes at the default alignment and returns a
// checked reference to them.
func (a *Arena) AllocRef(size int) (Ref, error) {
	return a.allocRef(size, a.settings.Alignment)
}

func (a *Arena) allocRef(size, align int) (Ref, error) {
	b, err := a.Alloc(size, align)
	if err != nil || b == nil {
		return Ref{}, err
	}
	// allocations always come from the tail page
	p := a.pages[len(a.pages)-1]
	return a.refTo(p, b), nil
}

func (a *Arena) refTo(p *Page, b []byte) Ref {
	base := uintptr(unsafe.Pointer(unsafe.SliceData(p.buf)))
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	return Ref{
		arena: a.id,
		gen:   a.generation,
		page:  p.index,
		off:   int(addr - base),
		size:  len(b),
	}
}

// Deref returns the memory r refers to, or ErrStaleRef if it is no longer
// valid. A Ref into a range rolled back by Rewind is only detected until the
// range is handed out again.
func (a *Arena) Deref(r Ref) ([]byte, error) {
	switch {
	case r.IsZero():
		return nil, fmt.Errorf("%w: zero Ref", ErrStaleRef)
	case a.released:
		return nil, fmt.Errorf("%w: arena released", ErrStaleRef)
	case r.arena != a.id:
		return nil, fmt.Errorf("%w: issued by arena %d, not %d", ErrStaleRef, r.arena, a.id)
	case r.gen != a.generation:
		return nil, fmt.Errorf("%w: generation %d, arena is at %d", ErrStaleRef, r.gen, a.generation)
	case r.page >= len(a.pages):
		return nil, fmt.Errorf("%w: page %d was freed", ErrStaleRef, r.page)
	}
	p := a.pages[r.page]
	if r.off+r.size > p.offset {
		return nil, fmt.Errorf("%w: %d bytes at %d are past the page cursor", ErrStaleRef, r.size, r.off)
	}
	return p.buf[r.off : r.off+r.size : r.off+r.size], nil
}

// Generation returns the current generation. It advances on every Reset,
// Release and wrap.
func (a *Arena) Generation() uint32 { return a.generation }

// Handle is a typed Ref.
type Handle[T any] struct {
	a   *Arena
	ref Ref
}

// NewHandle stores v in the arena and returns a checked handle to it.
// T must not contain Go pointers.
func NewHandle[T any](a *Arena, v T) (Handle[T], error) {
	size := int(unsafe.Sizeof(v))
	if size == 0 {
		// zero-sized values still need a distinct, checkable slot
		size = 1
	}
	ref, err := a.allocRef(size, int(unsafe.Alignof(v)))
	if err != nil {
		return Handle[T]{}, err
	}
	h := Handle[T]{a: a, ref: ref}
	p, err := h.Get()
	if err != nil {
		return Handle[T]{}, err
	}
	*p = v
	return h, nil
}

// Get returns a pointer to the value, or ErrStaleRef.
func (h Handle[T]) Get() (*T, error) {
	if h.a == nil {
		return nil, fmt.Errorf("%w: zero Handle", ErrStaleRef)
	}
	b, err := h.a.Deref(h.ref)
	if err != nil {
		return nil, err
	}
	return (*T)(unsafe.Pointer(unsafe.SliceData(b))), nil
}

// Valid reports whether Get would succeed.
func (h Handle[T]) Valid() bool {
	_, err := h.Get()
	return err == nil
}

// Ref returns the untyped reference.
func (h Handle[T]) Ref() Ref { return h.ref }
