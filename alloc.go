package arena

import (
	"runtime"
	"unsafe"
)

// Disposer is implemented by objects that need cleanup when the arena that
// holds them is reset or released.
type Disposer interface {
	Dispose()
}

// DisposeFunc adapts a plain function to Disposer.
type DisposeFunc func()

func (f DisposeFunc) Dispose() { f() }

// Alloc returns a pointer to a zeroed T stored inside the arena, aligned for T.
// The returned pointer is valid until the arena is reset or released.
//
// T must not contain Go pointers: the garbage collector does not scan arena
// memory. Returns nil if the allocation failed under ReturnError.
func Alloc[T any](a *Arena) *T {
	p := AllocUninitialized[T](a)
	if p != nil {
		var zero T
		*p = zero
	}
	return p
}

// AllocZeroed is identical to Alloc - provided for API consistency.
func AllocZeroed[T any](a *Arena) *T {
	return Alloc[T](a)
}

// AllocUninitialized returns a *T located in the arena without zeroing memory.
// Unless the arena zero-initializes its pages the contents are whatever the
// previous user of the memory left there.
func AllocUninitialized[T any](a *Arena) *T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if size == 0 {
		return new(T)
	}
	b, err := a.Alloc(size, int(unsafe.Alignof(zero)))
	if err != nil {
		return nil
	}
	return (*T)(unsafe.Pointer(unsafe.SliceData(b)))
}

// Make stores v in the arena and returns a pointer to the copy. If *T
// implements Disposer, it is registered and disposed, newest first, when the
// arena is reset or released.
//
// A T that contains Go pointers is stored on the Go heap instead, where the
// garbage collector can see what it references; it is still disposed with
// the arena. Returns nil if the allocation failed under ReturnError.
func Make[T any](a *Arena, v T) *T {
	var p *T
	if HasPointers[T]() {
		a.panicIfReleased()
		p = new(T)
	} else if p = AllocUninitialized[T](a); p == nil {
		return nil
	}
	*p = v
	if d, ok := any(p).(Disposer); ok {
		a.destructors = append(a.destructors, d)
	}
	return p
}

// Defer registers fn to run when the arena is reset or released, after every
// object registered later.
func (a *Arena) Defer(fn func()) {
	a.panicIfReleased()
	if fn == nil {
		return
	}
	a.destructors = append(a.destructors, DisposeFunc(fn))
}

// Disposers returns the number of registered cleanups.
func (a *Arena) Disposers() int { return len(a.destructors) }

// dispose runs registered cleanups newest first until keep remain. Cleanups
// registered while disposing are run too.
func (a *Arena) dispose(keep int) {
	for len(a.destructors) > keep {
		i := len(a.destructors) - 1
		d := a.destructors[i]
		a.destructors[i] = nil
		a.destructors = a.destructors[:i]
		if d != nil {
			d.Dispose()
		}
	}
}

// AllocSlice allocates a slice of n elements of type T inside the arena.
// The slice elements are not initialized unless the arena zeroes its pages.
// Returns nil if n <= 0 or if the allocation failed under ReturnError.
func AllocSlice[T any](a *Arena, n int) []T {
	if n <= 0 {
		return nil
	}
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	if elemSize == 0 {
		return make([]T, n)
	}
	b, err := a.Alloc(elemSize*n, int(unsafe.Alignof(zero)))
	if err != nil {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n)
}

// AllocSliceZeroed allocates a slice of n elements of type T with zeroed memory.
func AllocSliceZeroed[T any](a *Arena, n int) []T {
	s := AllocSlice[T](a, n)
	clear(s)
	return s
}

// PtrAndKeepAlive returns t and calls runtime.KeepAlive on the arena.
// This is useful to prevent the arena from being garbage collected
// while the pointer is still in use in unsafe code.
func PtrAndKeepAlive[T any](a *Arena, t *T) *T {
	runtime.KeepAlive(a)
	return t
}
