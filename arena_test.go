package arena

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"unsafe"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	SetLogger(log.New(io.Discard))
	os.Exit(m.Run())
}

// requireFatal runs fn and checks that it reported target through the
// default fatal handler.
func requireFatal(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "expected a fatal error")
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		require.ErrorIs(t, err, target)
	}()
	fn()
}

func addr(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		pageSize int
		opts     []Option
		pages    int
	}{
		{"lazy", 1024, nil, 0},
		{"preallocated", 1024, []Option{WithPreallocate()}, 1},
		{"default page size", DefaultPageSize, nil, 0},
		{"odd page size", 1000, []Option{WithPreallocate()}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(tt.pageSize, tt.opts...)
			defer a.Release()
			assert.Equal(t, tt.pageSize, a.PageSize())
			assert.Equal(t, tt.pages, a.NumPages())
			assert.Equal(t, tt.pages*tt.pageSize, a.Capacity())
			assert.Zero(t, a.Allocated())
		})
	}
}

func TestNewMisconfigured(t *testing.T) {
	tests := []struct {
		name   string
		create func()
		err    error
	}{
		{"zero page size", func() { New(0) }, ErrZeroPageSize},
		{"negative page size", func() { New(-1) }, ErrZeroPageSize},
		{"zero max pages", func() { New(64, WithMaxPages(0)) }, ErrZeroMaxPages},
		{"zero max pages under ReturnError", func() { New(64, WithMaxPages(0), WithErrorBehavior(ReturnError)) }, ErrZeroMaxPages},
		{"bad alignment", func() { New(64, WithAlignment(3)) }, ErrBadAlignment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireFatal(t, tt.err, tt.create)
		})
	}
}

func TestArenaBasicBump(t *testing.T) {
	a := New(64, WithAlignment(1))
	defer a.Release()

	b1, err := a.Alloc(10, 1)
	require.NoError(t, err)
	require.Len(t, b1, 10)
	assert.Equal(t, 10, a.pages[0].Offset())

	b2, err := a.Alloc(10, 1)
	require.NoError(t, err)
	assert.Equal(t, 20, a.pages[0].Offset())
	assert.Equal(t, addr(b1)+10, addr(b2))

	// 50 does not fit in the 44 bytes left
	_, err = a.Alloc(50, 1)
	require.NoError(t, err)
	require.Equal(t, 2, a.NumPages())
	assert.Equal(t, 64, a.pages[1].Size())
	assert.Equal(t, 50, a.pages[1].Offset())
	assert.Equal(t, 20, a.pages[0].Offset(), "old page is left alone")
	assert.Equal(t, 70, a.Allocated())
	assert.Equal(t, 128, a.Capacity())
}

func TestArenaOversizedRequest(t *testing.T) {
	a := New(64)
	defer a.Release()

	b, err := a.Alloc(200, 16)
	require.NoError(t, err)
	require.Len(t, b, 200)
	require.Equal(t, 1, a.NumPages())
	assert.Equal(t, 216, a.pages[0].Size())
	assert.Zero(t, addr(b)%16)
}

func TestArenaAllocBytes(t *testing.T) {
	a := New(1024)
	defer a.Release()

	// Test normal allocation
	b1 := a.AllocBytes(100)
	assert.Len(t, b1, 100)

	// Test zero and negative allocation
	assert.Nil(t, a.AllocBytes(0))
	assert.Nil(t, a.AllocBytes(-1))

	// Test allocation that forces page growth
	b4 := a.AllocBytes(2000)
	assert.Len(t, b4, 2000)
	assert.Equal(t, 2, a.NumPages())
}

func TestArenaAlignment(t *testing.T) {
	a := New(256)
	defer a.Release()

	for _, align := range []int{1, 2, 4, 8, 16, 32, 64, 128, 256, 4096} {
		for _, size := range []int{1, 3, 7, 24, 100} {
			b, err := a.Alloc(size, align)
			require.NoError(t, err)
			assert.Zero(t, addr(b)%uintptr(align), "size %d align %d", size, align)
		}
	}
}

func TestArenaBadAlignment(t *testing.T) {
	a := New(256, WithErrorBehavior(ReturnError))
	defer a.Release()

	// a bad alignment is a programming error under either behavior
	requireFatal(t, ErrBadAlignment, func() { a.Alloc(8, 12) })
	requireFatal(t, ErrBadAlignment, func() { a.Alloc(8, 0) })
}

func TestArenaNoOverlap(t *testing.T) {
	a := New(128)
	defer a.Release()

	type span struct{ lo, hi uintptr }
	var spans []span
	for i := 1; i < 200; i++ {
		b, err := a.Alloc(i%37+1, 1<<(i%5))
		require.NoError(t, err)
		for j := range b {
			b[j] = byte(i)
		}
		spans = append(spans, span{addr(b), addr(b) + uintptr(len(b))})
	}
	for i, x := range spans {
		for _, y := range spans[i+1:] {
			require.True(t, x.hi <= y.lo || y.hi <= x.lo, "%v overlaps %v", x, y)
		}
	}
}

func TestArenaAccounting(t *testing.T) {
	a := New(128)
	defer a.Release()

	prevAlloc, prevCap := 0, 0
	for i := 1; i <= 50; i++ {
		_, err := a.Alloc(i, 8)
		require.NoError(t, err)
		require.GreaterOrEqual(t, a.Allocated(), prevAlloc+i)
		require.GreaterOrEqual(t, a.Capacity(), prevCap)
		prevAlloc, prevCap = a.Allocated(), a.Capacity()
	}
	assert.Equal(t, 50*51/2, a.Allocated())
	assert.LessOrEqual(t, a.SizeInUse(), a.Capacity())
}

func TestArenaMaxPages(t *testing.T) {
	t.Run("ReturnError", func(t *testing.T) {
		a := New(64, WithMaxPages(2), WithErrorBehavior(ReturnError))
		defer a.Release()

		_, err := a.Alloc(60, 1)
		require.NoError(t, err)
		_, err = a.Alloc(60, 1)
		require.NoError(t, err)

		b, err := a.Alloc(60, 1)
		require.ErrorIs(t, err, ErrOutOfPages)
		assert.Nil(t, b)
		var allocErr *AllocError
		require.True(t, errors.As(err, &allocErr))
		assert.Equal(t, 2, allocErr.Pages)
		assert.Contains(t, err.Error(), "2 pages")

		assert.Nil(t, a.AllocBytes(60))
		assert.Nil(t, Alloc[[60]byte](a))
		assert.Equal(t, 120, a.Allocated(), "failed requests are not counted")
	})

	t.Run("Panic", func(t *testing.T) {
		a := New(64, WithMaxPages(1))
		defer a.Release()

		_, err := a.Alloc(60, 1)
		require.NoError(t, err)
		requireFatal(t, ErrOutOfPages, func() { a.Alloc(60, 1) })
	})

	t.Run("custom fatal handler", func(t *testing.T) {
		var got error
		a := New(64, WithMaxPages(1), WithFatalHandler(func(err error) {
			got = err
			panic("handled")
		}))
		defer a.Release()

		a.AllocBytes(60)
		assert.PanicsWithValue(t, "handled", func() { a.AllocBytes(60) })
		assert.ErrorIs(t, got, ErrOutOfPages)
	})
}

func TestArenaEnsureCapacity(t *testing.T) {
	a := New(1024, WithPreallocate())
	defer a.Release()
	initialPages := a.NumPages()

	// Ensure capacity within current page
	a.EnsureCapacity(100)
	assert.Equal(t, initialPages, a.NumPages())

	// Ensure capacity that requires new page
	a.EnsureCapacity(2000)
	assert.Equal(t, initialPages+1, a.NumPages())

	b := a.AllocBytes(2000)
	assert.Len(t, b, 2000)
	assert.Equal(t, initialPages+1, a.NumPages(), "reserved page is used")
}

func TestArenaReset(t *testing.T) {
	a := New(1024)
	defer a.Release()

	// Allocate some data
	a.AllocBytes(100)
	a.AllocBytes(200)
	require.NotZero(t, a.SizeInUse())

	a.Reset()
	assert.Zero(t, a.SizeInUse())
	assert.Zero(t, a.Allocated())
	assert.Equal(t, 1, a.NumPages(), "first page survives Reset")
}

func TestArenaResetKeepsHeadPage(t *testing.T) {
	a := New(256)
	defer a.Release()

	for range 20 {
		a.AllocBytes(100)
	}
	require.Greater(t, a.NumPages(), 1)
	head := a.pages[0]

	a.Reset()
	assert.Equal(t, 1, a.NumPages())
	assert.Equal(t, head.Size(), a.Capacity())
	assert.Same(t, head, a.pages[0])

	created := a.Metrics().PagesCreated
	a.AllocBytes(200)
	assert.Equal(t, created, a.Metrics().PagesCreated, "allocation fits in the head page")
}

func TestArenaResetZeroes(t *testing.T) {
	tests := []struct {
		name string
		zero bool
	}{
		{"zero initialize", true},
		{"keep contents", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(256, WithZeroInitialize(tt.zero))
			defer a.Release()

			b := a.AllocBytes(64)
			for i := range b {
				b[i] = 0xAB
			}
			a.Reset()

			b = a.AllocBytes(64)
			if tt.zero {
				assert.Equal(t, make([]byte, 64), b)
			} else {
				assert.Equal(t, byte(0xAB), b[0])
			}
		})
	}
}

func TestArenaRelease(t *testing.T) {
	a := New(1024)
	a.AllocBytes(100)

	a.Release()
	assert.True(t, a.Released())
	assert.Nil(t, a.pages)
	assert.Zero(t, a.Capacity())

	// Releasing twice is fine
	a.Release()

	// Test panic on use after release
	assert.PanicsWithError(t, ErrReleased.Error(), func() { a.AllocBytes(100) })
	assert.Panics(t, func() { a.Reset() })
}

func TestArenaString(t *testing.T) {
	a := New(1024)
	defer a.Release()
	a.AllocBytes(100)
	assert.Equal(t, "Arena{pages: 1, capacity: 1.0 KiB, allocated: 100 B, wasted: 0 B, allocs: 1}", a.String())
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	l := log.New(&buf)
	l.SetLevel(log.DebugLevel)

	a := New(1024, WithLogger(l))
	defer a.Release()
	a.AllocBytes(100)
	a.Reset()

	assert.Contains(t, buf.String(), "new page")
	assert.Contains(t, buf.String(), "reset")
}

func TestNewFromSettings(t *testing.T) {
	s := DefaultSettings()
	s.PageSize = 512
	limit := 3
	s.MaxPages = &limit
	s.ErrorBehavior = ReturnError
	s.Preallocate = true

	a := NewFromSettings(s)
	defer a.Release()
	assert.Equal(t, 512, a.PageSize())
	assert.Equal(t, 1, a.NumPages())
	assert.Equal(t, s, a.Settings())

	for range 3 {
		_, err := a.Alloc(400, 8)
		require.NoError(t, err)
	}
	_, err := a.Alloc(400, 8)
	assert.ErrorIs(t, err, ErrOutOfPages)
}

func BenchmarkArenaAllocBytes(b *testing.B) {
	a := New(1024 * 1024) // 1MB pages
	sizes := []int{8, 64, 256, 1024}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("size-%d", size), func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				a.AllocBytes(size)
				if i%1000 == 999 { // Reset periodically to avoid growing too much
					a.Reset()
				}
			}
		})
	}
}

func BenchmarkArenaVsBuiltin(b *testing.B) {
	b.Run("arena", func(b *testing.B) {
		a := New(1024 * 1024)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			a.AllocBytes(64)
			if i%1000 == 999 {
				a.Reset()
			}
		}
	})

	b.Run("builtin", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = make([]byte, 64)
		}
	})
}
