package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/maruel/subcommands"
	"golang.org/x/sync/errgroup"

	"github.com/pavanmanishd/arena/v2"
	"github.com/pavanmanishd/arena/v2/array"
	"github.com/pavanmanishd/arena/v2/hashmap"
	"github.com/pavanmanishd/arena/v2/scratch"
	"github.com/pavanmanishd/arena/v2/str"
)

func cmdRun() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "run [flags]",
		ShortDesc: "runs a synthetic request workload",
		LongDesc: `Runs requests on a set of workers. Each worker owns an arena and resets
it after every request, the way a server would.`,
		CommandRun: func() subcommands.CommandRun {
			r := &runRun{}
			r.init()
			return r
		},
	}
}

type runRun struct {
	subcommands.CommandRunBase
	path      string
	workers   int
	requests  int
	objects   int
	size      int
	allocator string
	budget    string
	shadow    bool
	verbose   bool
}

func (c *runRun) init() {
	c.Flags.StringVar(&c.path, "config", "", "YAML settings file")
	c.Flags.IntVar(&c.workers, "workers", 4, "concurrent workers, one arena each")
	c.Flags.IntVar(&c.requests, "requests", 1000, "requests per worker")
	c.Flags.IntVar(&c.objects, "objects", 64, "objects allocated per request")
	c.Flags.IntVar(&c.size, "size", 128, "bytes per object")
	c.Flags.StringVar(&c.allocator, "allocator", "heap", "page memory: heap or mmap")
	c.Flags.StringVar(&c.budget, "budget", "", "limit on page memory across all workers, e.g. 64MiB")
	c.Flags.BoolVar(&c.shadow, "shadow", false, "track poisoned memory and check every object")
	c.Flags.BoolVar(&c.verbose, "v", false, "debug logging")
}

func (c *runRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	if len(args) != 0 {
		fmt.Fprintf(a.GetErr(), "%s: position arguments not expected\n", a.GetName())
		return 1
	}
	if c.verbose {
		log.SetLevel(log.DebugLevel)
		arena.Logger().SetLevel(log.DebugLevel)
	}
	if err := c.run(context.Background(), a.GetOut()); err != nil {
		log.Error("run", "err", err)
		return 1
	}
	return 0
}

// workload is what every worker shares.
type workload struct {
	settings arena.Settings
	opts     []arena.Option
	shadow   *arena.ShadowMemory
	budget   *arena.BudgetAllocator
	objects  int
	size     int
}

func (c *runRun) run(ctx context.Context, out io.Writer) error {
	s, err := loadSettings(c.path)
	if err != nil {
		return err
	}
	w := &workload{settings: s, objects: c.objects, size: c.size}

	var sys arena.SystemAllocator
	switch c.allocator {
	case "heap":
		sys = arena.Heap
	case "mmap":
		sys = arena.MmapAllocator{}
	default:
		return fmt.Errorf("unknown allocator %q", c.allocator)
	}
	if c.budget != "" {
		n, err := humanize.ParseBytes(c.budget)
		if err != nil {
			return fmt.Errorf("budget: %w", err)
		}
		w.budget = arena.NewBudgetAllocator(int64(n), sys)
		sys = w.budget
	}
	w.opts = append(w.opts, arena.WithSystemAllocator(sys))
	if c.shadow {
		w.shadow = arena.NewShadowMemory()
		w.opts = append(w.opts, arena.WithInstrumentation(w.shadow))
	}

	log.Info("starting", "workers", c.workers, "requests", c.requests,
		"page_size", s.PageSize, "allocator", c.allocator)
	start := time.Now()

	results := make([]arena.Metrics, c.workers)
	failed := make([]int, c.workers)
	eg, ctx := errgroup.WithContext(ctx)
	for i := range c.workers {
		eg.Go(func() error {
			var err error
			results[i], failed[i], err = w.worker(ctx, i, c.requests)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	var total arena.Metrics
	var totalFailed int
	for i, m := range results {
		fmt.Fprintf(out, "worker %d: %s\n", i, m)
		total.TotalAllocs += m.TotalAllocs
		total.PagesCreated += m.PagesCreated
		totalFailed += failed[i]
	}
	elapsed := time.Since(start)
	fmt.Fprintf(out, "total: %d allocs, %d pages created, %d failed requests in %s\n",
		total.TotalAllocs, total.PagesCreated, totalFailed, elapsed.Round(time.Millisecond))
	if w.shadow != nil {
		fmt.Fprintf(out, "shadow: %s poisoned\n", humanize.IBytes(w.shadow.PoisonedBytes()))
	}
	return nil
}

// worker serves requests on its own arena and returns the arena's final metrics.
func (w *workload) worker(ctx context.Context, id, requests int) (arena.Metrics, int, error) {
	a := arena.NewFromSettings(w.settings, w.opts...)
	defer a.Release()

	failed := 0
	for req := range requests {
		if err := ctx.Err(); err != nil {
			return a.Metrics(), failed, err
		}
		if w.budget != nil {
			// don't start a request until a page could be had
			wctx, cancel := context.WithTimeout(ctx, time.Second)
			err := w.budget.Wait(wctx, int64(a.PageSize()))
			cancel()
			if err != nil {
				return a.Metrics(), failed, fmt.Errorf("worker %d: budget: %w", id, err)
			}
		}
		err := w.serve(ctx, a, req)
		switch {
		case errors.Is(err, arena.ErrOutOfPages), errors.Is(err, arena.ErrOutOfMemory):
			failed++
			log.Warn("request failed", "worker", id, "request", req, "err", err)
		case err != nil:
			return a.Metrics(), failed, fmt.Errorf("worker %d request %d: %w", id, req, err)
		}
		if req < requests-1 {
			a.Reset()
		}
	}
	return a.Metrics(), failed, nil
}

// serve builds an index of named objects in a and checks it back.
func (w *workload) serve(ctx context.Context, a *arena.Arena, req int) error {
	index := hashmap.NewString[int](a)
	names := array.Make[str.String](a, 0)
	for i := range w.objects {
		name, err := str.TryFormat(a, "req-%d/obj-%d.bin", req, i)
		if err != nil {
			return err
		}
		if err := names.TryAdd(name); err != nil {
			return err
		}
		if err := index.TryPut(name, i); err != nil {
			return err
		}

		obj, err := a.Alloc(w.size, 8)
		if err != nil {
			return err
		}
		obj[0] = byte(i)
		if w.shadow != nil {
			if err := w.shadow.Check(obj); err != nil {
				return err
			}
		}
	}
	for i, name := range names.All() {
		if got := index.MustGet(name); got != i {
			return fmt.Errorf("%s: got %d, want %d", name, got, i)
		}
	}
	return scratch.With(ctx, func(ctx context.Context, p *scratch.Pad) error {
		log.Debug(p.Sprintf("request %d: %d names in %d buckets, %s", req, index.Len(), index.Cap(), a).String())
		return nil
	})
}
