// Package str implements immutable byte strings stored in an arena.
//
// Operations that produce a new string copy into an arena given by the
// caller; the receiver is never modified. Strings made by New, FromBytes and
// Builder.Build are followed by a NUL byte in memory, which Len and Bytes do
// not include.
//
// An allocation the arena cannot satisfy is fatal. TryFromBytes, TryFormat
// and Builder.TryBuild return the arena's error instead, for arenas
// configured with arena.ReturnError.
package str

import (
	"bytes"
	"fmt"
	"unsafe"

	"github.com/pavanmanishd/arena/v2"
	"github.com/pavanmanishd/arena/v2/array"
)

// String is a view of bytes, usually in arena memory. The zero value is the
// empty string. A String is valid as long as the memory it views.
type String struct {
	b []byte
}

// New copies s into a.
func New(a *arena.Arena, s string) String {
	return FromBytes(a, unsafe.Slice(unsafe.StringData(s), len(s)))
}

// FromBytes copies b into a.
func FromBytes(a *arena.Arena, b []byte) String {
	s, err := TryFromBytes(a, b)
	if err != nil {
		arena.Fatal(err)
	}
	return s
}

// TryFromBytes is FromBytes, returning the allocation error if a is full.
func TryFromBytes(a *arena.Arena, b []byte) (String, error) {
	buf, err := alloc(a, len(b))
	if err != nil {
		return String{}, err
	}
	n := copy(buf, b)
	buf[n] = 0
	return String{b: buf[:n:n]}, nil
}

// alloc returns n bytes plus a NUL slot.
func alloc(a *arena.Arena, n int) ([]byte, error) {
	buf, err := arena.MakeSlice[byte](a, n+1)
	if err != nil {
		return nil, fmt.Errorf("str: copy %d bytes: %w", n, err)
	}
	return buf, nil
}

// Wrap views b without copying. The string has no arena and no trailing NUL.
func Wrap(b []byte) String {
	return String{b: b[:len(b):len(b)]}
}

// Len returns the length in bytes, excluding the NUL.
func (s String) Len() int { return len(s.b) }

// IsEmpty reports whether s has no bytes.
func (s String) IsEmpty() bool { return len(s.b) == 0 }

// At returns the byte at i. Out of range access is fatal.
func (s String) At(i int) byte {
	if uint(i) >= uint(len(s.b)) {
		arena.Fatal(&array.IndexError{Index: i, Len: len(s.b)})
	}
	return s.b[i]
}

// Bytes returns the bytes of s. They must not be modified.
func (s String) Bytes() []byte { return s.b }

// String returns a Go copy of s.
func (s String) String() string { return string(s.b) }

// Equal reports whether s and other hold the same bytes.
func (s String) Equal(other String) bool {
	return bytes.Equal(s.b, other.b)
}

// EqualString reports whether s holds the same bytes as other.
func (s String) EqualString(other string) bool {
	return string(s.b) == other
}

// Duplicate copies s into a.
func (s String) Duplicate(a *arena.Arena) String {
	return FromBytes(a, s.b)
}

// Substr copies the bytes in [start, end) into a. end is clamped to
// [start, Len]; a start past the end is fatal.
func (s String) Substr(a *arena.Arena, start, end int) String {
	if start < 0 || start > len(s.b) {
		arena.Fatal(&array.IndexError{Index: start, Len: len(s.b)})
	}
	end = min(max(end, start), len(s.b))
	return FromBytes(a, s.b[start:end])
}

// Concat copies s followed by other into a.
func (s String) Concat(a *arena.Arena, other String) String {
	buf, err := alloc(a, len(s.b)+len(other.b))
	if err != nil {
		arena.Fatal(err)
	}
	n := copy(buf, s.b)
	n += copy(buf[n:], other.b)
	buf[n] = 0
	return String{b: buf[:n:n]}
}

// HasPrefix reports whether s begins with prefix.
func (s String) HasPrefix(prefix string) bool {
	return len(s.b) >= len(prefix) && string(s.b[:len(prefix)]) == prefix
}

// HasSuffix reports whether s ends with suffix.
func (s String) HasSuffix(suffix string) bool {
	return len(s.b) >= len(suffix) && string(s.b[len(s.b)-len(suffix):]) == suffix
}

// Find returns every index of c in s, in an array allocated from a.
func (s String) Find(a *arena.Arena, c byte) *array.Array[int] {
	idx := array.Make[int](a, 0)
	for i, b := range s.b {
		if b == c {
			idx.Add(i)
		}
	}
	return idx
}

// FindString returns every index at which sub starts in s, overlapping
// matches included. An empty sub is never found.
func (s String) FindString(a *arena.Arena, sub String) *array.Array[int] {
	idx := array.Make[int](a, 0)
	if len(sub.b) == 0 {
		return idx
	}
	for i := 0; i+len(sub.b) <= len(s.b); i++ {
		if bytes.Equal(s.b[i:i+len(sub.b)], sub.b) {
			idx.Add(i)
		}
	}
	return idx
}

// Replace copies s into a with every from byte replaced by to.
func (s String) Replace(a *arena.Arena, from, to byte) String {
	out := s.Duplicate(a)
	for i, c := range out.b {
		if c == from {
			out.b[i] = to
		}
	}
	return out
}

// Split cuts s around every sep byte. The parts are copied into a. An empty
// s gives no parts; otherwise there is always one more part than separators.
func (s String) Split(a *arena.Arena, sep byte) *array.Array[String] {
	parts := array.Make[String](a, 0)
	if len(s.b) == 0 {
		return parts
	}
	last := 0
	for i, c := range s.b {
		if c == sep {
			parts.Add(FromBytes(a, s.b[last:i]))
			last = i + 1
		}
	}
	parts.Add(FromBytes(a, s.b[last:]))
	return parts
}
