package arena

import "fmt"

// SizeInUse returns the bytes consumed in all pages, alignment padding included.
func (a *Arena) SizeInUse() int {
	return a.allocated + a.wasted
}

// NumPages returns the number of pages currently held by the arena.
func (a *Arena) NumPages() int {
	return len(a.pages)
}

// PageSize returns the base page size used by this arena.
func (a *Arena) PageSize() int {
	return a.pageSize
}

// Utilization returns the ratio of bytes in use to total capacity (0.0 to 1.0).
// Returns 0.0 if the arena has no capacity.
func (a *Arena) Utilization() float64 {
	if a.capacity == 0 {
		return 0
	}
	return float64(a.SizeInUse()) / float64(a.capacity)
}

// Metrics returns a snapshot of arena statistics.
func (a *Arena) Metrics() Metrics {
	return Metrics{
		Allocated:    a.allocated,
		Wasted:       a.wasted,
		Capacity:     a.capacity,
		NumPages:     len(a.pages),
		PageSize:     a.pageSize,
		Utilization:  a.Utilization(),
		TotalAllocs:  a.allocs,
		PagesCreated: a.created,
		Disposers:    len(a.destructors),
		Generation:   a.generation,
	}
}

// Metrics contains statistical information about an arena.
type Metrics struct {
	Allocated    int     // Bytes requested since the last reset
	Wasted       int     // Alignment padding since the last reset
	Capacity     int     // Total capacity in bytes
	NumPages     int     // Number of pages
	PageSize     int     // Base page size
	Utilization  float64 // Ratio of used to total capacity (0.0-1.0)
	TotalAllocs  uint64  // Successful allocations over the arena's lifetime
	PagesCreated uint64  // Pages created over the arena's lifetime
	Disposers    int     // Registered cleanups
	Generation   uint32
}

func (m Metrics) String() string {
	return fmt.Sprintf("allocated %s (+%s padding) of %s in %d pages of %s, %.1f%% used, %d allocs, %d pages created",
		ibytes(m.Allocated), ibytes(m.Wasted), ibytes(m.Capacity), m.NumPages, ibytes(m.PageSize),
		m.Utilization*100, m.TotalAllocs, m.PagesCreated)
}

// Thread-safe metrics for SafeArena

// SizeInUse thread-safely returns the bytes consumed in all pages.
func (s *SafeArena) SizeInUse() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.SizeInUse()
}

// NumPages thread-safely returns the number of pages.
func (s *SafeArena) NumPages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.NumPages()
}

// Allocated thread-safely returns the bytes requested since the last reset.
func (s *SafeArena) Allocated() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Allocated()
}

// Capacity thread-safely returns the total capacity of all pages.
func (s *SafeArena) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Capacity()
}

// Utilization thread-safely returns the ratio of bytes in use to total capacity.
func (s *SafeArena) Utilization() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Utilization()
}

// Metrics thread-safely returns a snapshot of arena statistics.
func (s *SafeArena) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Metrics()
}
