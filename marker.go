package exttable

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// MarkTarget is implemented by PointerTable and DispatchTable.
type MarkTarget interface {
	Mark(s *Space, h Handle, loc *Handle)
}

// DefaultMarkBatchSize is the number of slots one worker marks before
// checking for cancellation.
const DefaultMarkBatchSize = 1024

// Marker marks handle slots of one space on a bounded pool of goroutines.
type Marker struct {
	target    MarkTarget
	space     *Space
	workers   int
	batchSize int
}

// NewMarker creates a Marker. workers <= 0 selects GOMAXPROCS.
func NewMarker(target MarkTarget, s *Space, workers int) *Marker {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Marker{
		target:    target,
		space:     s,
		workers:   workers,
		batchSize: DefaultMarkBatchSize,
	}
}

// WithBatchSize returns a copy of m that hands out batches of n slots.
func (m *Marker) WithBatchSize(n int) *Marker {
	c := *m
	if n > 0 {
		c.batchSize = n
	}
	return &c
}

// MarkSlots marks the handle stored in every slot. Slots may be patched by a
// later sweep. Cancellation is observed between batches; slots already marked
// stay marked.
func (m *Marker) MarkSlots(ctx context.Context, slots []*Handle) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	for start := 0; start < len(slots); start += m.batchSize {
		if gctx.Err() != nil {
			break
		}
		batch := slots[start:min(start+m.batchSize, len(slots))]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for _, loc := range batch {
				if loc == nil {
					continue
				}
				m.target.Mark(m.space, LoadHandle(loc), loc)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
