package arena

import "fmt"

// Mark is a saved arena position. Rewinding to it gives back everything
// allocated since, like popping a stack frame.
type Mark struct {
	arena       uint32
	gen         uint32
	pages       int
	offset      int
	allocated   int
	wasted      int
	destructors int
}

// Mark records the current position.
func (a *Arena) Mark() Mark {
	a.panicIfReleased()
	m := Mark{
		arena:       a.id,
		gen:         a.generation,
		pages:       len(a.pages),
		allocated:   a.allocated,
		wasted:      a.wasted,
		destructors: len(a.destructors),
	}
	if n := len(a.pages); n > 0 {
		m.offset = a.pages[n-1].offset
	}
	return m
}

// Rewind rolls the arena back to m. Objects registered since m are disposed
// newest first, pages created since m are freed and the reclaimed part of the
// mark's page is zeroed. Marks must be rewound in LIFO order; a mark from
// before a Reset or Release, or one already rewound past, is fatal.
func (a *Arena) Rewind(m Mark) {
	a.panicIfReleased()
	if err := a.checkMark(m); err != nil {
		a.die(err)
	}
	a.dispose(m.destructors)

	// an arena marked before its first page keeps that page
	keep := max(m.pages, 1)
	for i := len(a.pages) - 1; i >= keep; i-- {
		p := a.pages[i]
		a.capacity -= p.Size()
		p.Destroy()
		a.pages[i] = nil
		a.log.Debug("free page", "arena", a.id, "index", i)
	}
	if len(a.pages) > keep {
		a.pages = a.pages[:keep]
	}
	if len(a.pages) > 0 {
		a.pages[keep-1].rewind(m.offset, true)
	}
	a.allocated = m.allocated
	a.wasted = m.wasted
}

func (a *Arena) checkMark(m Mark) error {
	switch {
	case m.arena != a.id:
		return fmt.Errorf("%w: taken on arena %d, not %d", ErrStaleMark, m.arena, a.id)
	case m.gen != a.generation:
		return fmt.Errorf("%w: generation %d, arena is at %d", ErrStaleMark, m.gen, a.generation)
	case m.pages > len(a.pages):
		return fmt.Errorf("%w: %d pages, arena has %d", ErrStaleMark, m.pages, len(a.pages))
	case m.pages > 0 && m.pages == len(a.pages) && m.offset > a.pages[m.pages-1].offset:
		return fmt.Errorf("%w: offset %d is past the cursor", ErrStaleMark, m.offset)
	case m.destructors > len(a.destructors):
		return fmt.Errorf("%w: %d disposers, arena has %d", ErrStaleMark, m.destructors, len(a.destructors))
	}
	return nil
}
