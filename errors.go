package arena

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

var (
	// ErrZeroPageSize is reported when an arena is configured with a zero page size.
	ErrZeroPageSize = errors.New("arena: page size must be nonzero")
	// ErrZeroMaxPages is reported when an arena is configured with a page cap of zero.
	ErrZeroMaxPages = errors.New("arena: max pages is set to 0, can't allocate anything")
	// ErrBadAlignment is reported for alignments that are not a positive power of two.
	ErrBadAlignment = errors.New("arena: alignment must be a power of two")
	// ErrOutOfPages is returned when the configured page cap has been reached.
	ErrOutOfPages = errors.New("arena: out of pages")
	// ErrOutOfMemory is returned when the system allocator cannot provide a page.
	ErrOutOfMemory = errors.New("arena: out of memory")
	// ErrRequestTooLarge is reported when a request can never fit in a fixed arena.
	ErrRequestTooLarge = errors.New("arena: request larger than arena capacity")
	// ErrReleased is reported on any use of an arena after Release.
	ErrReleased = errors.New("arena: use after Release()")
	// ErrStaleRef is returned when a Ref outlived the allocation it points to.
	ErrStaleRef = errors.New("arena: stale reference")
	// ErrStaleMark is reported when a Mark is rewound after the arena moved past it.
	ErrStaleMark = errors.New("arena: stale mark")
)

// AllocError describes a failed allocation.
//
// The underlying sentinel can be matched with errors.Is.
type AllocError struct {
	Op       string
	Size     int
	Align    int
	Pages    int
	PageSize int
	Err      error
}

func (e *AllocError) Error() string {
	switch {
	case errors.Is(e.Err, ErrOutOfPages):
		return fmt.Sprintf("%s: %s (%d pages * %s = %s available)", e.Op, e.Err,
			e.Pages, ibytes(e.PageSize), ibytes(e.Pages*e.PageSize))
	case e.Align > 0:
		return fmt.Sprintf("%s: %s (%s aligned to %d)", e.Op, e.Err, ibytes(e.Size), e.Align)
	default:
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Err, ibytes(e.Size))
	}
}

func (e *AllocError) Unwrap() error { return e.Err }

func ibytes(n int) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

// FatalHandler receives unrecoverable errors. It must not return.
type FatalHandler func(err error)

// DefaultFatalHandler panics with err. Callers log the diagnostic first.
func DefaultFatalHandler(err error) {
	panic(err)
}

var fatalHandler atomic.Pointer[FatalHandler]

// SetFatalHandler replaces the process-wide fatal handler used by Fatal and by
// arenas that were not given their own. A nil handler restores DefaultFatalHandler.
func SetFatalHandler(h FatalHandler) {
	if h == nil {
		fatalHandler.Store(nil)
		return
	}
	fatalHandler.Store(&h)
}

func currentFatalHandler() FatalHandler {
	if h := fatalHandler.Load(); h != nil {
		return *h
	}
	return DefaultFatalHandler
}

// Fatal reports err through the process-wide fatal handler. It never returns.
func Fatal(err error) {
	Logger().Error("fatal", "err", err)
	fatal(currentFatalHandler(), err)
}

func fatal(h FatalHandler, err error) {
	h(err)
	// the handler broke its contract
	panic(err)
}
