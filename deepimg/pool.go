package deepimg

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// Options configures the parallel image operations.
type Options struct {
	// Workers bounds the number of scanlines processed at once.
	// 0 means runtime.GOMAXPROCS(0).
	Workers int
}

func (o Options) workers() int {
	if o.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return o.Workers
}

// forEachRow calls fn for every row index in [0, rows) on a bounded pool.
// The first error cancels the remaining rows and is returned.
func forEachRow(ctx context.Context, op string, rows int, opts Options, fn func(y int) error) error {
	workers := opts.workers()
	start := time.Now()
	logger().Debug("deepimg: pool start", "op", op, "rows", rows, "workers", workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for y := 0; y < rows; y++ {
		if gctx.Err() != nil {
			break
		}
		y := y
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(y)
		})
	}
	err := g.Wait()
	if err == nil {
		// Rows skipped after the parent was canceled report no error.
		err = ctx.Err()
	}

	logger().Debug("deepimg: pool done", "op", op, "rows", rows, "elapsed", time.Since(start), "err", err)
	return err
}
