package arena

import (
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

var arenaIDs atomic.Uint32

// Arena is a chain of pages handing out memory with a bump cursor.
// Not goroutine-safe; use SafeArena or one arena per goroutine.
type Arena struct {
	settings Settings
	pageSize int
	maxPages int // 0 means unlimited

	sys   SystemAllocator
	inst  Instrumentation
	log   *log.Logger
	fatal FatalHandler

	pages       []*Page // oldest first; the last one is current
	allocated   int
	capacity    int
	wasted      int
	allocs      uint64
	created     uint64
	destructors []Disposer

	id         uint32
	generation uint32
	released   bool
}

// New creates an arena with the given base page size. A zero page size or a
// page cap of zero is always fatal.
func New(pageSize int, opts ...Option) *Arena {
	s := DefaultSettings()
	if pageSize > 0 {
		s.PageSize = ByteSize(pageSize)
	} else {
		s.PageSize = 0
	}
	return NewFromSettings(s, opts...)
}

// NewFromSettings creates an arena from s, then applies opts.
func NewFromSettings(s Settings, opts ...Option) *Arena {
	a := &Arena{settings: s}
	for _, opt := range opts {
		opt(a)
	}
	if a.sys == nil {
		a.sys = Heap
	}
	if a.inst == nil {
		a.inst = NopInstrumentation{}
	}
	if a.log == nil {
		a.log = Logger()
	}
	if a.fatal == nil {
		a.fatal = currentFatalHandler()
	}
	if a.settings.Alignment == 0 {
		a.settings.Alignment = DefaultAlignment
	}

	switch {
	case a.settings.PageSize == 0:
		a.die(&AllocError{Op: "new", Err: ErrZeroPageSize})
	case a.settings.MaxPages != nil && *a.settings.MaxPages <= 0:
		a.die(&AllocError{Op: "new", Err: ErrZeroMaxPages})
	case !isPowerOfTwo(a.settings.Alignment):
		a.die(&AllocError{Op: "new", Align: a.settings.Alignment, Err: ErrBadAlignment})
	}

	a.pageSize = int(a.settings.PageSize)
	if a.settings.MaxPages != nil {
		a.maxPages = *a.settings.MaxPages
	}
	a.id = arenaIDs.Add(1)
	a.generation = 1

	if a.settings.Preallocate {
		a.EnsureCapacity(a.pageSize)
	}
	return a
}

// Alloc returns size bytes aligned to align from the current page, adding a
// page if needed. align must be a power of two.
//
// On failure an arena configured with Panic invokes its fatal handler; one
// configured with ReturnError returns nil and an *AllocError.
// Returns nil, nil if size <= 0.
func (a *Arena) Alloc(size, align int) ([]byte, error) {
	a.panicIfReleased()
	if size <= 0 {
		return nil, nil
	}
	if !isPowerOfTwo(align) {
		a.die(&AllocError{Op: "alloc", Size: size, Align: align, Err: ErrBadAlignment})
	}

	// Fast path: current page
	if n := len(a.pages); n > 0 {
		p := a.pages[n-1]
		before := p.offset
		if b := p.Alloc(size, align); b != nil {
			a.account(size, p.offset-before)
			return b, nil
		}
	}
	return a.allocSlow(size, align)
}

// allocSlow adds a page big enough for the request and allocates from it.
func (a *Arena) allocSlow(size, align int) ([]byte, error) {
	if a.maxPages > 0 && len(a.pages) >= a.maxPages {
		return nil, a.fail(&AllocError{
			Op: "alloc", Size: size, Align: align,
			Pages: len(a.pages), PageSize: a.pageSize, Err: ErrOutOfPages,
		})
	}

	p, err := a.grow(max(a.pageSize, size+align), align)
	if err != nil {
		return nil, a.fail(err)
	}
	b := p.Alloc(size, align)
	if b == nil {
		return nil, a.fail(&AllocError{Op: "alloc", Size: size, Align: align, Err: ErrOutOfMemory})
	}
	a.account(size, p.offset)
	return b, nil
}

// AllocBytes returns n bytes at the arena's default alignment.
// Returns nil if n <= 0 or if the allocation failed under ReturnError.
func (a *Arena) AllocBytes(n int) []byte {
	b, err := a.Alloc(n, a.settings.Alignment)
	if err != nil {
		return nil
	}
	return b
}

// EnsureCapacity ensures the current page has at least n free bytes.
// If not, it grows the arena with a new page.
func (a *Arena) EnsureCapacity(n int) {
	a.panicIfReleased()
	if k := len(a.pages); k > 0 && a.pages[k-1].Available() >= n {
		return
	}
	if a.maxPages > 0 && len(a.pages) >= a.maxPages {
		a.fail(&AllocError{
			Op: "reserve", Size: n,
			Pages: len(a.pages), PageSize: a.pageSize, Err: ErrOutOfPages,
		})
		return
	}
	if _, err := a.grow(max(a.pageSize, n), a.settings.Alignment); err != nil {
		a.fail(err)
	}
}

// Reset disposes registered objects newest first, frees every page except
// the first and rewinds the first page. Everything allocated before Reset
// becomes invalid.
func (a *Arena) Reset() {
	a.panicIfReleased()
	a.dispose(0)
	a.generation++

	if len(a.pages) > 0 {
		for i, p := range a.pages[1:] {
			a.capacity -= p.Size()
			p.Destroy()
			a.pages[i+1] = nil
		}
		a.pages = a.pages[:1]
		a.pages[0].rewind(0, a.settings.ZeroInitialize)
	}
	a.allocated = 0
	a.wasted = 0
	a.log.Debug("reset", "arena", a.id, "capacity", ibytes(a.capacity))
}

// Release disposes registered objects newest first and frees every page.
// Any subsequent use of the arena panics. Releasing twice is a no-op.
func (a *Arena) Release() {
	if a.released {
		return
	}
	a.dispose(0)
	for i, p := range a.pages {
		p.Destroy()
		a.pages[i] = nil
	}
	a.pages = nil
	a.allocated = 0
	a.capacity = 0
	a.wasted = 0
	a.generation++
	a.released = true
}

// Allocated returns the bytes requested since the last Reset, excluding
// alignment padding.
func (a *Arena) Allocated() int { return a.allocated }

// Capacity returns the total size of all pages.
func (a *Arena) Capacity() int { return a.capacity }

// Released reports whether Release has been called.
func (a *Arena) Released() bool { return a.released }

// Settings returns the arena configuration.
func (a *Arena) Settings() Settings { return a.settings }

// grow appends a page of size bytes and makes it current.
func (a *Arena) grow(size, align int) (*Page, error) {
	p, err := NewPage(a.sys, a.inst, size, max(align, a.pageAlign()))
	if err != nil {
		return nil, err
	}
	if a.settings.ZeroInitialize && !allocatorZeroes(a.sys) {
		clear(p.buf)
	}
	p.index = len(a.pages)
	a.pages = append(a.pages, p)
	a.capacity += p.Size()
	a.created++
	a.log.Debug("new page", "arena", a.id, "index", p.index, "size", ibytes(p.Size()))
	return p, nil
}

// pageAlign is the alignment of page buffers; cache-line aligned pages keep
// small arenas from sharing lines.
func (a *Arena) pageAlign() int {
	if a.settings.Alignment > pageAlignment {
		return a.settings.Alignment
	}
	return pageAlignment
}

var pageAlignment = CacheLineSize()

// account records an allocation of size bytes that moved a cursor by consumed.
func (a *Arena) account(size, consumed int) {
	a.allocated += size
	a.wasted += consumed - size
	a.allocs++
}

// fail applies the error behavior to err. It returns err only under ReturnError.
func (a *Arena) fail(err error) error {
	if a.settings.ErrorBehavior == Panic {
		a.die(err)
	}
	a.log.Warn("allocation failed", "arena", a.id, "err", err)
	return err
}

// die reports err through the fatal handler; it never returns.
func (a *Arena) die(err error) {
	a.log.Error("arena failure", "arena", a.id, "err", err)
	fatal(a.fatal, err)
}

// panicIfReleased panics if the arena has been released.
func (a *Arena) panicIfReleased() {
	if a.released {
		panic(ErrReleased)
	}
}

func (a *Arena) String() string {
	return fmt.Sprintf("Arena{pages: %d, capacity: %s, allocated: %s, wasted: %s, allocs: %d}",
		len(a.pages), ibytes(a.capacity), ibytes(a.allocated), ibytes(a.wasted), a.allocs)
}
