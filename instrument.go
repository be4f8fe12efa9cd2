package arena

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// ErrPoisoned is returned by ShadowMemory.Check for memory the arena has not
// handed out.
var ErrPoisoned = errors.New("arena: access to poisoned memory")

// Instrumentation receives the ranges an arena hands out and takes back.
type Instrumentation interface {
	// Poison marks b as not handed out.
	Poison(b []byte)
	// Unpoison marks b as handed out.
	Unpoison(b []byte)
}

// NopInstrumentation ignores all hooks.
type NopInstrumentation struct{}

func (NopInstrumentation) Poison([]byte)   {}
func (NopInstrumentation) Unpoison([]byte) {}

// ShadowMemory records poisoned bytes by address so tests and debug builds can
// catch use of memory before it was allocated or after it was reset.
// It is safe for concurrent use and may be shared between arenas.
type ShadowMemory struct {
	mu       sync.Mutex
	poisoned *roaring64.Bitmap
}

// NewShadowMemory returns an empty shadow map.
func NewShadowMemory() *ShadowMemory {
	return &ShadowMemory{poisoned: roaring64.New()}
}

func span(b []byte) (start, end uint64, ok bool) {
	if len(b) == 0 {
		return 0, 0, false
	}
	start = uint64(uintptr(unsafe.Pointer(unsafe.SliceData(b))))
	return start, start + uint64(len(b)), true
}

func (s *ShadowMemory) Poison(b []byte) {
	start, end, ok := span(b)
	if !ok {
		return
	}
	s.mu.Lock()
	s.poisoned.AddRange(start, end)
	s.mu.Unlock()
}

func (s *ShadowMemory) Unpoison(b []byte) {
	start, end, ok := span(b)
	if !ok {
		return
	}
	s.mu.Lock()
	s.poisoned.RemoveRange(start, end)
	s.mu.Unlock()
}

// Check returns ErrPoisoned if any byte of b is poisoned.
func (s *ShadowMemory) Check(b []byte) error {
	start, end, ok := span(b)
	if !ok {
		return nil
	}
	s.mu.Lock()
	n := s.poisonedIn(start, end)
	s.mu.Unlock()
	if n > 0 {
		return fmt.Errorf("%w: %d of %d bytes at %#x", ErrPoisoned, n, len(b), start)
	}
	return nil
}

// IsPoisoned reports whether the byte at p is poisoned.
func (s *ShadowMemory) IsPoisoned(p unsafe.Pointer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poisoned.Contains(uint64(uintptr(p)))
}

// PoisonedBytes returns the number of poisoned bytes being tracked.
func (s *ShadowMemory) PoisonedBytes() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poisoned.GetCardinality()
}

// poisonedIn counts poisoned bytes in [start, end).
func (s *ShadowMemory) poisonedIn(start, end uint64) uint64 {
	n := s.poisoned.Rank(end - 1)
	if start > 0 {
		n -= s.poisoned.Rank(start - 1)
	}
	return n
}
