// Package parallel runs data-parallel passes. Each call to For is one pass:
// every element of the domain is visited exactly once by some lane, in no
// particular order, and For returns only after every lane has finished. The
// return of For is the barrier between consecutive passes.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Body processes the half-open element range [lo, hi) on the given lane.
// Lane ids are in [0, lanes) and no two concurrent calls share a lane, so a
// lane id may index per-worker scratch space such as traversal stacks.
type Body func(lane, lo, hi int) error

// DefaultLanes returns the lane count used when a caller passes zero.
func DefaultLanes() int {
	return runtime.GOMAXPROCS(0)
}

// Lanes resolves a requested lane count: non-positive means DefaultLanes.
// Callers size per-lane scratch space with it.
func Lanes(requested int) int {
	if requested <= 0 {
		return DefaultLanes()
	}
	return requested
}

// chunksPerLane trades scheduling overhead against load balance.
const chunksPerLane = 8

// For runs body over [0, n) split into chunks handed out to lanes workers.
// The first error cancels the remaining chunks and is returned. A cancelled
// ctx stops the pass between chunks.
func For(ctx context.Context, n, lanes int, body Body) error {
	if n <= 0 {
		return ctx.Err()
	}
	lanes = min(Lanes(lanes), n)

	chunk := max(1, n/(lanes*chunksPerLane))
	next := make(chan int, lanes)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(next)
		for lo := 0; lo < n; lo += chunk {
			select {
			case next <- lo:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for lane := range lanes {
		g.Go(func() error {
			for lo := range next {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := body(lane, lo, min(lo+chunk, n)); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return g.Wait()
}

// Grid runs body once per row of a width x height grid; lo and hi are pixel
// indices of whole rows.
func Grid(ctx context.Context, width, height, lanes int, body Body) error {
	return For(ctx, height, lanes, func(lane, lo, hi int) error {
		return body(lane, lo*width, hi*width)
	})
}
