package raster

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/roadgrid/internal/city"
	"github.com/wegman-software/roadgrid/internal/grid"
	"github.com/wegman-software/roadgrid/internal/logger"
)

// workerResult is what one worker hands back for the final merge
type workerResult struct {
	cells *grid.CellSet
	stats Stats
}

// RasterizeParallel is Rasterize with segments spread over workers.
// Each worker fills a private set; the sets are merged once all workers
// finish, so the cells equal those of a sequential pass. The filter runs
// on the calling goroutine before any worker starts. workers <= 0 uses one
// worker per CPU. The only error returned is ctx's.
func RasterizeParallel(ctx context.Context, c *city.City, opts Options, workers int) (*Result, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers == 1 {
		return Rasterize(c, opts), nil
	}

	log := logger.Get()
	start := time.Now()

	p := newPass(opts)
	res := &Result{Cells: grid.NewCellSet(), State: StateValidating, Stats: p.stats()}

	if c.IsEmpty() {
		res.State = StateEmpty
		log.Warn("No segments to rasterize")
		return res, nil
	}

	// Filters may hold state that is not safe for concurrent use (Lua)
	segments := make([]city.Segment, 0, len(c.Segments))
	for _, seg := range c.Segments {
		if p.usable(seg, &res.Stats) {
			segments = append(segments, seg)
		}
	}

	if workers > len(segments) {
		workers = len(segments)
	}
	log.Debug("Starting parallel rasterization",
		zap.Int("workers", workers),
		zap.Int("segments", len(segments)))

	res.State = StateRasterizing
	results := make([]workerResult, workers)
	g, gctx := errgroup.WithContext(ctx)

	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			set := grid.NewCellSet()
			var stats Stats
			// Strided assignment keeps long and short segments mixed
			for i := w; i < len(segments); i += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				p.segment(segments[i], set, &stats)
			}
			results[w] = workerResult{cells: set, stats: stats}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range results {
		res.Cells.Merge(r.cells)
		res.Stats.Segments += r.stats.Segments
		res.Stats.Samples += r.stats.Samples
		res.Stats.DegenerateEdges += r.stats.DegenerateEdges
	}

	res.State = StateDone
	res.Stats.Cells = res.Cells.Len()
	res.Stats.Duration = time.Since(start)
	logDone(res)
	return res, nil
}
