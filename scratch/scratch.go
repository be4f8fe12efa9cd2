// Package scratch provides goroutine-owned scratch arenas for short-lived
// temporaries such as formatting buffers.
//
// A Pad is taken from a pool with Acquire, used by one goroutine, and given
// back with Release. Marks roll a pad back to an earlier position:
//
//	p := scratch.Acquire()
//	defer p.Release()
//
//	m := p.Mark()
//	defer m.Release()
//	name := p.Sprintf("%s-%d", prefix, n)
//
// Pads travel through call chains in a context.Context; With reuses the pad
// already in the context under a new mark.
package scratch

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/pavanmanishd/arena/v2"
	"github.com/pavanmanishd/arena/v2/str"
)

// PageSize is the size of the page every pad starts with.
const PageSize = 4 << 10

// Pad is a scratch arena owned by one goroutine at a time.
type Pad struct {
	a     *arena.Arena
	depth int    // open marks
	fmt   []byte // heap buffer reused by Sprintf
}

var pool = sync.Pool{
	New: func() any {
		return newPad()
	},
}

func newPad() *Pad {
	a := arena.New(PageSize, arena.WithPreallocate())
	p := &Pad{a: a}
	// pads the pool drops, or callers forget to Release, free their pages
	runtime.AddCleanup(p, (*arena.Arena).Release, a)
	arena.Logger().Debug("new scratch pad", "capacity", a.Capacity())
	return p
}

// Acquire returns an empty pad. The caller owns it until Release.
func Acquire() *Pad {
	return pool.Get().(*Pad)
}

// Release disposes everything allocated from the pad, zeroes its first page
// and returns it to the pool. The pad must not be used afterwards.
func (p *Pad) Release() {
	p.depth = 0
	p.a.Reset()
	clear(p.fmt)
	p.fmt = p.fmt[:0]
	pool.Put(p)
}

// Arena returns the arena behind the pad, for use with arena.Alloc and friends.
func (p *Pad) Arena() *arena.Arena { return p.a }

// AllocBytes returns n bytes from the pad.
func (p *Pad) AllocBytes(n int) []byte {
	return p.a.AllocBytes(n)
}

// Sprintf formats into pad memory. The result views memory that is zeroed
// when the enclosing mark or the pad is released; call String on it for a
// Go string that outlives the mark.
func (p *Pad) Sprintf(format string, args ...any) str.String {
	p.fmt = fmt.Appendf(p.fmt[:0], format, args...)
	return str.FromBytes(p.a, p.fmt)
}

// Depth returns the number of open marks.
func (p *Pad) Depth() int { return p.depth }

// Mark is a position in a pad. Release rolls the pad back to it.
type Mark struct {
	p     *Pad
	m     arena.Mark
	depth int
}

// Mark records the current position of the pad. Marks nest and must be
// released innermost first, usually with defer.
func (p *Pad) Mark() Mark {
	p.depth++
	return Mark{p: p, m: p.a.Mark(), depth: p.depth}
}

// Release frees everything allocated from the pad since the mark and zeroes
// the reclaimed memory. Releasing a mark while a mark taken after it is still
// open is fatal. Releasing the zero Mark does nothing.
func (m Mark) Release() {
	if m.p == nil {
		return
	}
	if m.depth != m.p.depth {
		arena.Fatal(fmt.Errorf("%w: scratch mark %d released while %d marks are open",
			arena.ErrStaleMark, m.depth, m.p.depth))
	}
	m.p.depth--
	m.p.a.Rewind(m.m)
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying p.
func NewContext(ctx context.Context, p *Pad) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the pad carried by ctx, if any.
func FromContext(ctx context.Context) (*Pad, bool) {
	p, ok := ctx.Value(ctxKey{}).(*Pad)
	return p, ok && p != nil
}

// With runs fn with a pad. If ctx already carries one, fn gets it under a
// fresh mark; otherwise a pad is acquired for the duration of fn and passed
// down in the context. Everything fn allocates from the pad is freed when fn
// returns, including when it panics.
func With(ctx context.Context, fn func(ctx context.Context, p *Pad) error) error {
	if p, ok := FromContext(ctx); ok {
		m := p.Mark()
		defer m.Release()
		return fn(ctx, p)
	}
	p := Acquire()
	defer p.Release()
	return fn(NewContext(ctx, p), p)
}
