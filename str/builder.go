package str

import (
	"fmt"

	"github.com/pavanmanishd/arena/v2"
	"github.com/pavanmanishd/arena/v2/array"
)

// Builder accumulates bytes in arena memory. Growth follows array.Array.
//
// The first growth failure is kept: later appends are dropped, Write returns
// the error, Build is fatal and TryBuild returns it.
type Builder struct {
	buf *array.Array[byte]
	err error
}

// NewBuilder returns an empty builder with room for capacity bytes.
func NewBuilder(a *arena.Arena, capacity int) *Builder {
	return &Builder{buf: array.Make[byte](a, capacity)}
}

// Len returns the number of bytes written.
func (b *Builder) Len() int { return b.buf.Len() }

// Err returns the first growth failure, if any.
func (b *Builder) Err() error { return b.err }

// reserve makes room for n more bytes and reports whether there is room.
func (b *Builder) reserve(n int) bool {
	if b.err == nil {
		b.err = b.buf.TryReserve(b.buf.Len() + n)
	}
	return b.err == nil
}

// Write appends p.
func (b *Builder) Write(p []byte) (int, error) {
	if !b.reserve(len(p)) {
		return 0, b.err
	}
	b.buf.AddAll(p...)
	return len(p), nil
}

// WriteByte appends c.
func (b *Builder) WriteByte(c byte) error {
	if !b.reserve(1) {
		return b.err
	}
	b.buf.Add(c)
	return nil
}

// Append appends p.
func (b *Builder) Append(p []byte) *Builder {
	b.Write(p)
	return b
}

// AppendString appends s.
func (b *Builder) AppendString(s string) *Builder {
	if b.reserve(len(s)) {
		for i := 0; i < len(s); i++ {
			b.buf.Add(s[i])
		}
	}
	return b
}

// AppendStr appends s.
func (b *Builder) AppendStr(s String) *Builder {
	return b.Append(s.b)
}

// Appendf appends the formatted arguments.
func (b *Builder) Appendf(format string, args ...any) *Builder {
	fmt.Fprintf(b, format, args...)
	return b
}

// Reset empties the builder and forgets any failure. The memory is kept.
func (b *Builder) Reset() {
	b.buf.Clear()
	b.err = nil
}

// Build copies the accumulated bytes into a new string in the builder's arena.
func (b *Builder) Build() String {
	s, err := b.TryBuild()
	if err != nil {
		arena.Fatal(err)
	}
	return s
}

// TryBuild is Build, returning the first growth failure or the error from
// copying the result.
func (b *Builder) TryBuild() (String, error) {
	if b.err != nil {
		return String{}, b.err
	}
	return TryFromBytes(b.buf.Arena(), b.buf.Slice())
}

// Format formats into a new string in a.
func Format(a *arena.Arena, format string, args ...any) String {
	s, err := TryFormat(a, format, args...)
	if err != nil {
		arena.Fatal(err)
	}
	return s
}

// TryFormat is Format, returning the allocation error if a is full.
func TryFormat(a *arena.Arena, format string, args ...any) (String, error) {
	b := NewBuilder(a, 0)
	b.reserve(len(format))
	return b.Appendf(format, args...).TryBuild()
}
