package arena

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShadowMemory(t *testing.T) {
	s := NewShadowMemory()
	buf := make([]byte, 64)

	s.Poison(buf)
	assert.Equal(t, uint64(64), s.PoisonedBytes())
	assert.True(t, s.IsPoisoned(unsafe.Pointer(&buf[10])))

	s.Unpoison(buf[8:16])
	assert.Equal(t, uint64(56), s.PoisonedBytes())
	assert.NoError(t, s.Check(buf[8:16]))
	assert.False(t, s.IsPoisoned(unsafe.Pointer(&buf[8])))

	err := s.Check(buf[4:12])
	assert.ErrorIs(t, err, ErrPoisoned)
	assert.Contains(t, err.Error(), "4 of 8 bytes")

	// empty ranges are ignored
	s.Poison(nil)
	assert.NoError(t, s.Check(buf[:0]))
}

func TestShadowMemoryArena(t *testing.T) {
	s := NewShadowMemory()
	a := New(1024, WithInstrumentation(s), WithAlignment(1))

	b := a.AllocBytes(100)
	require.NoError(t, s.Check(b))
	assert.Equal(t, uint64(1024-100), s.PoisonedBytes(), "the rest of the page is poisoned")

	// memory past the cursor has not been handed out
	past := unsafe.Slice((*byte)(unsafe.Add(unsafe.Pointer(&b[0]), 100)), 8)
	assert.ErrorIs(t, s.Check(past), ErrPoisoned)

	a.Reset()
	assert.ErrorIs(t, s.Check(b), ErrPoisoned, "reset poisons what was handed out")
	assert.Equal(t, uint64(1024), s.PoisonedBytes())

	m := a.Mark()
	c := a.AllocBytes(10)
	require.NoError(t, s.Check(c))
	a.Rewind(m)
	assert.ErrorIs(t, s.Check(c), ErrPoisoned)

	a.Release()
	assert.Zero(t, s.PoisonedBytes(), "released pages are forgotten")
}

func TestShadowMemoryWrapArena(t *testing.T) {
	s := NewShadowMemory()
	w := NewWrapArena(64, WithInstrumentation(s), WithAlignment(1))
	defer w.Release()

	first := w.AllocBytes(40)
	w.AllocBytes(40) // wraps; first is reclaimed and handed out again
	assert.NoError(t, s.Check(first))
	rest := unsafe.Slice((*byte)(unsafe.Add(unsafe.Pointer(&first[0]), 40)), 24)
	assert.ErrorIs(t, s.Check(rest), ErrPoisoned)
}

func TestNopInstrumentation(t *testing.T) {
	var inst Instrumentation = NopInstrumentation{}
	assert.NotPanics(t, func() {
		inst.Poison(make([]byte, 8))
		inst.Unpoison(nil)
	})
}
