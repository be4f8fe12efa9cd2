// Package hashmap implements an arena-backed hash map with open addressing
// and linear probing.
//
// Removed keys leave a tombstone so the probe chains running through them stay
// intact. When more than LoadFactor of the buckets are in use (tombstones
// included) the bucket array doubles and the live entries are reinserted.
// Old bucket arrays stay in the arena until it is reset.
//
// Buckets whose keys and values have no pointers live in arena memory. Keys
// or values with pointers, Go strings and str.String included, get buckets
// from the Go heap instead, since the garbage collector does not scan arena
// memory. The occupancy bitsets always live in the arena.
//
// Growth that the arena cannot satisfy is fatal; TryPut returns the error
// instead, for arenas configured with arena.ReturnError.
package hashmap

import (
	"errors"
	"fmt"
	"iter"
	"math/bits"
	"unsafe"

	"github.com/bits-and-blooms/bitset"
	"github.com/pavanmanishd/arena/v2"
	"github.com/pavanmanishd/arena/v2/str"
)

const (
	// DefaultLoadFactor is the share of used buckets that triggers growth.
	DefaultLoadFactor = 0.5
	// DefaultCapacity is the default number of buckets.
	DefaultCapacity = 256
)

var (
	// ErrKeyNotFound is reported by MustGet for missing keys.
	ErrKeyNotFound = errors.New("hashmap: key not found")
	// ErrBadSettings is reported for a load factor outside (0, 1).
	ErrBadSettings = errors.New("hashmap: load factor must be in (0, 1)")
)

// Settings tunes a Map.
type Settings[K any] struct {
	LoadFactor      float64
	InitialCapacity int // rounded up to a power of two
	Hash            func(K) uint64
	Equal           func(a, b K) bool
}

type bucket[K, V any] struct {
	key   K
	value V
}

// Map is a hash map whose buckets live in an arena.
type Map[K, V any] struct {
	a        *arena.Arena
	settings Settings[K]

	buckets  []bucket[K, V]
	occupied *bitset.BitSet // ever used, tombstones included
	dead     *bitset.BitSet // tombstones
	used     int            // occupied buckets
	n        int            // live entries
}

// New returns an empty map with the default settings, comparing keys with ==.
func New[K comparable, V any](a *arena.Arena) *Map[K, V] {
	return NewWithSettings[K, V](a, Settings[K]{
		Equal: func(a, b K) bool { return a == b },
	})
}

// NewString returns an empty map keyed by arena strings, compared and hashed
// by content.
func NewString[V any](a *arena.Arena) *Map[str.String, V] {
	return NewWithSettings[str.String, V](a, Settings[str.String]{
		Equal: str.String.Equal,
	})
}

// NewWithSettings returns an empty map. Zero fields take their defaults. A nil
// Equal compares keys with ==, which panics if K is not comparable.
func NewWithSettings[K, V any](a *arena.Arena, s Settings[K]) *Map[K, V] {
	if s.LoadFactor == 0 {
		s.LoadFactor = DefaultLoadFactor
	}
	if s.LoadFactor <= 0 || s.LoadFactor >= 1 {
		arena.Fatal(fmt.Errorf("%w: %v", ErrBadSettings, s.LoadFactor))
	}
	if s.InitialCapacity <= 0 {
		s.InitialCapacity = DefaultCapacity
	}
	s.InitialCapacity = 1 << bits.Len(uint(s.InitialCapacity-1))
	if s.Hash == nil {
		s.Hash = DefaultHash[K]
	}
	if s.Equal == nil {
		s.Equal = func(a, b K) bool { return any(a) == any(b) }
	}
	m := &Map[K, V]{a: a, settings: s}
	if err := m.alloc(s.InitialCapacity); err != nil {
		arena.Fatal(err)
	}
	return m
}

// Len returns the number of live entries.
func (m *Map[K, V]) Len() int { return m.n }

// Cap returns the number of buckets.
func (m *Map[K, V]) Cap() int { return len(m.buckets) }

// Get returns a pointer to the value stored under k, inserting a zero value
// first if k is missing. The pointer is invalidated by the next insertion.
func (m *Map[K, V]) Get(k K) *V {
	v, err := m.insert(k)
	if err != nil {
		arena.Fatal(err)
	}
	return v
}

// Put stores v under k.
func (m *Map[K, V]) Put(k K, v V) {
	*m.Get(k) = v
}

// TryPut is Put, returning the allocation error if the map had to grow and
// could not. The map is unchanged in that case.
func (m *Map[K, V]) TryPut(k K, v V) error {
	p, err := m.insert(k)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// insert returns the value slot for k, adding a zeroed entry if k is missing.
func (m *Map[K, V]) insert(k K) (*V, error) {
	i, found, tomb := m.find(k)
	if found {
		return &m.buckets[i].value, nil
	}
	if tomb < 0 {
		grown, err := m.checkGrow()
		if err != nil {
			return nil, err
		}
		if grown {
			i, _, tomb = m.find(k)
		}
	}
	if tomb >= 0 {
		i = tomb
		m.dead.Clear(uint(i))
	} else {
		m.occupied.Set(uint(i))
		m.used++
	}
	m.n++
	b := &m.buckets[i]
	b.key = k
	var zero V
	b.value = zero
	return &b.value, nil
}

// Contains reports whether k is present.
func (m *Map[K, V]) Contains(k K) bool {
	_, found, _ := m.find(k)
	return found
}

// TryGet returns the value stored under k and whether it was present.
func (m *Map[K, V]) TryGet(k K) (V, bool) {
	i, found, _ := m.find(k)
	if !found {
		var zero V
		return zero, false
	}
	return m.buckets[i].value, true
}

// MustGet returns the value stored under k. A missing key is fatal.
func (m *Map[K, V]) MustGet(k K) V {
	v, ok := m.TryGet(k)
	if !ok {
		arena.Fatal(fmt.Errorf("%w: %v", ErrKeyNotFound, k))
	}
	return v
}

// Remove deletes k and reports whether it was present.
func (m *Map[K, V]) Remove(k K) bool {
	i, found, _ := m.find(k)
	if !found {
		return false
	}
	m.dead.Set(uint(i))
	m.buckets[i] = bucket[K, V]{}
	m.n--
	return true
}

// Clear removes every entry. The buckets are kept.
func (m *Map[K, V]) Clear() {
	clear(m.buckets)
	m.occupied.ClearAll()
	m.dead.ClearAll()
	m.used = 0
	m.n = 0
}

// All iterates over the live entries in bucket order.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for i, ok := m.occupied.NextSet(0); ok; i, ok = m.occupied.NextSet(i + 1) {
			if m.dead.Test(i) {
				continue
			}
			if !yield(m.buckets[i].key, m.buckets[i].value) {
				return
			}
		}
	}
}

// find probes for k. It returns the bucket holding k, or the empty bucket
// that ends its probe chain together with the first tombstone passed, if any.
func (m *Map[K, V]) find(k K) (i int, found bool, tomb int) {
	mask := uint64(len(m.buckets) - 1)
	tomb = -1
	for p := m.settings.Hash(k) & mask; ; p = (p + 1) & mask {
		switch {
		case !m.occupied.Test(uint(p)):
			return int(p), false, tomb
		case m.dead.Test(uint(p)):
			if tomb < 0 {
				tomb = int(p)
			}
		case m.settings.Equal(m.buckets[p].key, k):
			return int(p), true, -1
		}
	}
}

// checkGrow grows the buckets before an insertion that could push them over
// the load factor. At least one bucket always stays empty to end probes.
func (m *Map[K, V]) checkGrow() (bool, error) {
	if m.used+1 < len(m.buckets) && float64(m.used)/float64(len(m.buckets)) <= m.settings.LoadFactor {
		return false, nil
	}
	return true, m.grow()
}

// grow doubles the buckets and reinserts the live entries.
func (m *Map[K, V]) grow() error {
	old, occupied, dead := m.buckets, m.occupied, m.dead
	if err := m.alloc(len(old) * 2); err != nil {
		return err
	}
	mask := uint64(len(m.buckets) - 1)
	for i, ok := occupied.NextSet(0); ok; i, ok = occupied.NextSet(i + 1) {
		if dead.Test(i) {
			continue
		}
		p := m.settings.Hash(old[i].key) & mask
		for m.occupied.Test(uint(p)) {
			p = (p + 1) & mask
		}
		m.buckets[p] = old[i]
		m.occupied.Set(uint(p))
	}
	m.used = m.n
	arena.Logger().Debug("hashmap grow", "buckets", len(m.buckets), "entries", m.n)
	return nil
}

// alloc replaces the buckets with n empty ones. On failure the map is left
// as it was.
func (m *Map[K, V]) alloc(n int) error {
	buckets, err := arena.MakeSlice[bucket[K, V]](m.a, n)
	if err != nil {
		return fmt.Errorf("hashmap: allocate %d buckets: %w", n, err)
	}
	w := wordsFor(n)
	words, err := arena.MakeSlice[uint64](m.a, 2*w)
	if err != nil {
		return fmt.Errorf("hashmap: allocate %d buckets: %w", n, err)
	}
	clear(words)
	m.buckets = buckets
	m.occupied = bitset.From(words[:w:w])
	m.dead = bitset.From(words[w:])
	m.used = 0
	return nil
}

func wordsFor(n int) int { return (n + 63) / 64 }

// String reports the map's size, for debugging.
func (m *Map[K, V]) String() string {
	var b bucket[K, V]
	return fmt.Sprintf("Map{len: %d, cap: %d, used: %d, bucket: %dB}",
		m.n, len(m.buckets), m.used, unsafe.Sizeof(b))
}
