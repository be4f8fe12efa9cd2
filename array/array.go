// Package array implements a growable array whose storage lives in an arena.
//
// Growth doubles the capacity and copies the elements into new arena memory.
// The old storage is not freed; it is reclaimed when the arena is reset.
// An array made with Wrap has no arena and cannot grow past its capacity.
//
// Element types without pointers are stored in arena memory. Types with
// pointers, strings included, get storage from the Go heap instead, since the
// garbage collector does not scan arena memory.
//
// Growth that the arena cannot satisfy is fatal. The Try variants return the
// arena's error instead, for arenas configured with arena.ReturnError.
package array

import (
	"errors"
	"fmt"
	"iter"

	"github.com/pavanmanishd/arena/v2"
)

// DefaultCapacity is the capacity an empty array grows to on its first Add.
const DefaultCapacity = 16

// ErrFixedCapacity is reported when an array without an arena has to grow.
var ErrFixedCapacity = errors.New("array: can't grow an array without an arena")

// IndexError is reported for out of range access.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("array: index %d out of range [0:%d]", e.Index, e.Len)
}

// Array is a growable array backed by an arena. The zero value is an empty,
// fixed array.
type Array[T any] struct {
	a    *arena.Arena
	data []T // full storage; [0:n) is live
	n    int
}

// Make returns an empty array with room for capacity elements.
func Make[T any](a *arena.Arena, capacity int) *Array[T] {
	arr := &Array[T]{a: a}
	if capacity > 0 {
		arr.grow(capacity)
	}
	return arr
}

// From copies src into a new array in a.
func From[T any](a *arena.Arena, src []T) *Array[T] {
	arr := Make[T](a, len(src))
	arr.n = copy(arr.data, src)
	return arr
}

// Wrap uses buf as fixed storage: the array has len(buf) elements and can
// hold up to cap(buf). Growing past that is fatal.
func Wrap[T any](buf []T) *Array[T] {
	return &Array[T]{data: buf[:cap(buf)], n: len(buf)}
}

// Arena returns the arena backing the array, or nil for wrapped arrays.
func (arr *Array[T]) Arena() *arena.Arena { return arr.a }

// Len returns the number of elements.
func (arr *Array[T]) Len() int { return arr.n }

// Cap returns the number of elements the array can hold without growing.
func (arr *Array[T]) Cap() int { return len(arr.data) }

// Add appends v, growing the storage if it is full.
func (arr *Array[T]) Add(v T) {
	if arr.n == len(arr.data) {
		arr.grow(arr.n + 1)
	}
	arr.data[arr.n] = v
	arr.n++
}

// TryAdd is Add, returning the allocation error if the array could not grow.
func (arr *Array[T]) TryAdd(v T) error {
	if arr.n == len(arr.data) {
		if err := arr.tryGrow(arr.n + 1); err != nil {
			return err
		}
	}
	arr.data[arr.n] = v
	arr.n++
	return nil
}

// AddAll appends every element of vs.
func (arr *Array[T]) AddAll(vs ...T) {
	arr.Reserve(arr.n + len(vs))
	arr.n += copy(arr.data[arr.n:], vs)
}

// At returns the element at i. Out of range access is fatal.
func (arr *Array[T]) At(i int) T {
	return *arr.Ptr(i)
}

// Ptr returns a pointer to the element at i. It is invalidated by growth.
func (arr *Array[T]) Ptr(i int) *T {
	if uint(i) >= uint(arr.n) {
		arena.Fatal(&IndexError{Index: i, Len: arr.n})
	}
	return &arr.data[i]
}

// Set replaces the element at i. Out of range access is fatal.
func (arr *Array[T]) Set(i int, v T) {
	*arr.Ptr(i) = v
}

// TryGet returns the element at i and whether i was in range.
func (arr *Array[T]) TryGet(i int) (T, bool) {
	if uint(i) >= uint(arr.n) {
		var zero T
		return zero, false
	}
	return arr.data[i], true
}

// Slice returns the live elements. The slice aliases the array until it grows.
func (arr *Array[T]) Slice() []T {
	return arr.data[:arr.n:arr.n]
}

// Reserve makes room for at least n elements.
func (arr *Array[T]) Reserve(n int) {
	if n > len(arr.data) {
		arr.grow(n)
	}
}

// TryReserve is Reserve, returning the allocation error if the array could
// not grow.
func (arr *Array[T]) TryReserve(n int) error {
	if n > len(arr.data) {
		return arr.tryGrow(n)
	}
	return nil
}

// Clone copies the array into a, which may be a different arena.
func (arr *Array[T]) Clone(a *arena.Arena) *Array[T] {
	return From(a, arr.Slice())
}

// Clear sets the length to zero. The capacity is kept.
func (arr *Array[T]) Clear() {
	clear(arr.data[:arr.n])
	arr.n = 0
}

// All iterates over indexes and elements.
func (arr *Array[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := 0; i < arr.n; i++ {
			if !yield(i, arr.data[i]) {
				return
			}
		}
	}
}

func (arr *Array[T]) String() string {
	return fmt.Sprint(arr.Slice())
}

// grow doubles the capacity until it holds need elements. Failure is fatal.
func (arr *Array[T]) grow(need int) {
	if err := arr.tryGrow(need); err != nil {
		arena.Fatal(err)
	}
}

func (arr *Array[T]) tryGrow(need int) error {
	if arr.a == nil {
		return fmt.Errorf("%w: need %d, have %d", ErrFixedCapacity, need, len(arr.data))
	}
	newCap := len(arr.data) * 2
	if newCap == 0 {
		newCap = DefaultCapacity
	}
	for newCap < need {
		newCap *= 2
	}
	data, err := arena.MakeSlice[T](arr.a, newCap)
	if err != nil {
		return fmt.Errorf("array: grow to %d: %w", newCap, err)
	}
	copy(data, arr.data[:arr.n])
	arr.data = data
	return nil
}
