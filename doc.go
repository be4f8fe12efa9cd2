// Package arena implements a paged bump allocator (memory arena) for Go.
//
// # Overview
//
// An arena hands out memory by advancing a cursor through large pages and
// only reclaims it in bulk. This is particularly useful for:
//
//   - Request-scoped or frame-scoped allocations
//   - Temporary object allocation with batch cleanup
//   - Reducing garbage collection pressure
//
// # Basic Usage
//
//	a := arena.New(arena.DefaultPageSize)
//	defer a.Release()
//
//	// Allocate raw bytes
//	buf := a.AllocBytes(1024)
//
//	// Allocate typed values
//	ptr := arena.Alloc[Vec3](a)
//	slice := arena.AllocSlice[int](a, 100)
//
//	// Keep the first page, drop the rest
//	a.Reset()
//
// # Pages
//
// Pages are never moved or resized. When the current page cannot hold a
// request the arena adds one of max(page size, request+alignment) bytes, so
// a single allocation never straddles two pages. Settings.MaxPages caps the
// number of pages; once reached, allocations fail according to
// Settings.ErrorBehavior.
//
// # Failure
//
// An arena configured with Panic reports failures through its FatalHandler,
// which must not return. One configured with ReturnError hands back an
// *AllocError instead. Misconfiguration (zero page size, a page cap of zero, a
// bad alignment) is always fatal.
//
// # Cleanup
//
// Values stored with Make whose pointer type implements Disposer, and
// functions registered with Defer, run newest first on Reset and Release.
//
// # Checked references
//
// Pointers into an arena dangle after Reset. Where that matters, AllocRef and
// NewHandle return generation-tagged references that fail with ErrStaleRef
// instead of reading reused memory.
//
// # Memory Safety
//
// The garbage collector does not scan arena memory. Types stored in an arena
// must not contain Go pointers (pointers, slices, strings, maps, interfaces,
// channels or funcs) that are the only reference to heap objects.
//
// # Thread Safety
//
// Arena is not thread-safe. Use SafeArena, or one arena per goroutine; the
// scratch package pools arenas for short-lived goroutine-owned use.
//
// # Metrics and Monitoring
//
//	m := a.Metrics()
//	fmt.Printf("Utilization: %.2f%%\n", m.Utilization*100)
//	fmt.Println(m)
package arena
