package str

import (
	"io"
	"os"
	"testing"
	"unsafe"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavanmanishd/arena/v2"
	"github.com/pavanmanishd/arena/v2/array"
)

func TestMain(m *testing.M) {
	arena.SetLogger(log.New(io.Discard))
	os.Exit(m.Run())
}

func newArena(t testing.TB) *arena.Arena {
	a := arena.New(4096)
	t.Cleanup(a.Release)
	return a
}

// nulAfter reports whether the byte just past s is a NUL.
func nulAfter(s String) bool {
	if s.Len() == 0 {
		return true
	}
	p := unsafe.Add(unsafe.Pointer(unsafe.SliceData(s.Bytes())), s.Len())
	return *(*byte)(p) == 0
}

func texts(arr *array.Array[String]) []string {
	var out []string
	for _, s := range arr.All() {
		out = append(out, s.String())
	}
	return out
}

func TestNew(t *testing.T) {
	a := newArena(t)

	s := New(a, "hello")
	assert.Equal(t, 5, s.Len())
	assert.False(t, s.IsEmpty())
	assert.Equal(t, "hello", s.String())
	assert.Equal(t, []byte("hello"), s.Bytes())
	assert.True(t, nulAfter(s))
	assert.Equal(t, 5, cap(s.Bytes()), "appending must copy")

	assert.True(t, New(a, "").IsEmpty())
	assert.True(t, String{}.IsEmpty())
}

func TestFromBytesCopies(t *testing.T) {
	a := newArena(t)

	b := []byte("abc")
	s := FromBytes(a, b)
	b[0] = 'x'
	assert.Equal(t, "abc", s.String())
}

func TestWrap(t *testing.T) {
	b := []byte("view")
	s := Wrap(b)
	b[0] = 'V'
	assert.Equal(t, "View", s.String(), "Wrap does not copy")
}

func TestAt(t *testing.T) {
	a := newArena(t)
	s := New(a, "abc")
	assert.Equal(t, byte('b'), s.At(1))

	defer func() {
		r := recover()
		require.NotNil(t, r)
		var ie *array.IndexError
		require.ErrorAs(t, r.(error), &ie)
		assert.Equal(t, 3, ie.Index)
	}()
	s.At(3)
}

func TestEqual(t *testing.T) {
	a := newArena(t)

	assert.True(t, New(a, "abc").Equal(New(a, "abc")))
	assert.False(t, New(a, "abc").Equal(New(a, "abd")))
	assert.False(t, New(a, "abc").Equal(New(a, "ab")))
	assert.True(t, New(a, "").Equal(String{}))
	assert.True(t, New(a, "abc").EqualString("abc"))
	assert.False(t, New(a, "abc").EqualString("abcd"))
}

func TestDuplicate(t *testing.T) {
	a, b := newArena(t), newArena(t)

	s := New(a, "text")
	d := s.Duplicate(b)
	assert.True(t, s.Equal(d))
	assert.NotSame(t, unsafe.SliceData(s.Bytes()), unsafe.SliceData(d.Bytes()))
	assert.True(t, nulAfter(d))
}

func TestSubstr(t *testing.T) {
	a := newArena(t)
	s := New(a, "hello world")

	tests := []struct {
		start, end int
		want       string
	}{
		{0, 5, "hello"},
		{6, 11, "world"},
		{6, 100, "world"},
		{3, 3, ""},
		{5, 2, ""},
		{11, 11, ""},
	}
	for _, tt := range tests {
		got := s.Substr(a, tt.start, tt.end)
		assert.Equal(t, tt.want, got.String(), "Substr(%d, %d)", tt.start, tt.end)
		assert.True(t, nulAfter(got))
	}

	assert.Panics(t, func() { s.Substr(a, 12, 12) })
	assert.Panics(t, func() { s.Substr(a, -1, 2) })
}

func TestConcat(t *testing.T) {
	a := newArena(t)

	s := New(a, "foo").Concat(a, New(a, "bar"))
	assert.Equal(t, "foobar", s.String())
	assert.True(t, nulAfter(s))
	assert.Equal(t, "foo", New(a, "foo").Concat(a, String{}).String())
}

func TestPrefixSuffix(t *testing.T) {
	a := newArena(t)
	s := New(a, "archive.tar.gz")

	assert.True(t, s.HasPrefix("arch"))
	assert.True(t, s.HasPrefix(""))
	assert.False(t, s.HasPrefix("tar"))
	assert.True(t, s.HasSuffix(".gz"))
	assert.False(t, s.HasSuffix(".tar"))
	assert.False(t, New(a, "gz").HasSuffix(".gz"))
}

func TestFind(t *testing.T) {
	a := newArena(t)
	s := New(a, "a/b/c")

	assert.Equal(t, []int{1, 3}, s.Find(a, '/').Slice())
	assert.Zero(t, s.Find(a, 'x').Len())

	assert.Equal(t, []int{0, 1, 2}, New(a, "aaaa").FindString(a, New(a, "aa")).Slice())
	assert.Equal(t, []int{4}, New(a, "the cat").FindString(a, New(a, "cat")).Slice())
	assert.Zero(t, New(a, "abc").FindString(a, String{}).Len())
	assert.Zero(t, New(a, "ab").FindString(a, New(a, "abc")).Len())
}

func TestReplace(t *testing.T) {
	a := newArena(t)

	s := New(a, `C:\dir\file`)
	r := s.Replace(a, '\\', '/')
	assert.Equal(t, "C:/dir/file", r.String())
	assert.Equal(t, `C:\dir\file`, s.String(), "the receiver is unchanged")
}

func TestSplit(t *testing.T) {
	a := newArena(t)

	tests := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{"a,,b", []string{"a", "", "b"}},
		{"a,", []string{"a", ""}},
		{",a", []string{"", "a"}},
		{"abc", []string{"abc"}},
		{",", []string{"", ""}},
		{"", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, texts(New(a, tt.in).Split(a, ',')), "Split(%q)", tt.in)
	}
}

func TestStringsSurviveOnlyUntilReset(t *testing.T) {
	a := arena.New(4096)
	defer a.Release()

	s := New(a, "temporary")
	b := s.Bytes()
	a.Reset()
	// reset zeroes the memory the string viewed
	assert.Equal(t, make([]byte, len(b)), b)
}

func TestOutOfPages(t *testing.T) {
	a := arena.New(64, arena.WithMaxPages(1), arena.WithErrorBehavior(arena.ReturnError))
	defer a.Release()

	s, err := TryFromBytes(a, make([]byte, 40))
	require.NoError(t, err)
	assert.Equal(t, 40, s.Len())

	_, err = TryFromBytes(a, make([]byte, 40))
	assert.ErrorIs(t, err, arena.ErrOutOfPages)
	_, err = TryFormat(a, "%040d", 1)
	assert.ErrorIs(t, err, arena.ErrOutOfPages)

	tests := map[string]func(){
		"FromBytes": func() { FromBytes(a, make([]byte, 40)) },
		"Concat":    func() { s.Concat(a, s) },
		"Format":    func() { Format(a, "%040d", 1) },
	}
	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			defer func() {
				r := recover()
				require.NotNil(t, r, "expected a fatal error")
				require.ErrorIs(t, r.(error), arena.ErrOutOfPages)
			}()
			fn()
		})
	}
}

func BenchmarkSplit(b *testing.B) {
	a := arena.New(1 << 20)
	defer a.Release()
	s := New(a, "usr/local/share/doc/arena/README.md")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m := a.Mark()
		s.Split(a, '/')
		a.Rewind(m)
	}
}
