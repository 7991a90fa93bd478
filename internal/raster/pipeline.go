// Package raster turns a City into the set of grid cells covered by its
// roads.
//
// A pass walks every segment, samples each edge at a fixed metric step,
// maps the samples to cells and stamps a disk of cells around each one to
// give the road its width. Nothing in a pass is fatal: bad input shrinks
// the result instead of aborting it.
package raster

import (
	"math"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/wegman-software/roadgrid/internal/city"
	"github.com/wegman-software/roadgrid/internal/grid"
	"github.com/wegman-software/roadgrid/internal/logger"
)

// DefaultCellSize is used when Options.CellSize is unusable
const DefaultCellSize = 5.0

// State is the stage a rasterization pass is in
type State int

const (
	StateIdle State = iota
	StateValidating
	// Sampling and stamping are interleaved sample by sample
	StateRasterizing
	StateDone
	StateEmpty
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateRasterizing:
		return "rasterizing"
	case StateDone:
		return "done"
	case StateEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// SegmentFilter decides whether a segment takes part in a pass
type SegmentFilter interface {
	Accept(seg city.Segment) bool
}

// Options holds the grid settings for one pass
type Options struct {
	CellSize         float64 // meters per cell
	SampleStepFactor float64 // sample step relative to CellSize
	MinStepMeters    float64 // floor on the sample step
	RoadWidthMeters  float64 // full road width

	// Filter, if set, can veto segments before they are sampled
	Filter SegmentFilter
}

// normalize replaces settings that would break the grid math
func (o Options) normalize() Options {
	log := logger.Get()
	if !(o.CellSize > 0) || math.IsInf(o.CellSize, 1) {
		log.Warn("Unusable cell size, falling back to default",
			zap.Float64("cell_size", o.CellSize),
			zap.Float64("default", DefaultCellSize))
		o.CellSize = DefaultCellSize
	}
	if !(o.MinStepMeters > 0) || math.IsInf(o.MinStepMeters, 1) {
		o.MinStepMeters = grid.DefaultMinStep
	}
	if math.IsInf(o.SampleStepFactor, 0) || math.IsInf(o.CellSize*o.SampleStepFactor, 0) {
		log.Warn("Unusable sample step factor, falling back to default",
			zap.Float64("sample_step_factor", o.SampleStepFactor),
			zap.Float64("default", grid.DefaultStepFactor))
		o.SampleStepFactor = grid.DefaultStepFactor
	}
	if math.IsInf(o.RoadWidthMeters, 0) || math.IsNaN(o.RoadWidthMeters) {
		log.Warn("Unusable road width, stamping single cells",
			zap.Float64("road_width_meters", o.RoadWidthMeters))
		o.RoadWidthMeters = 0
	}
	return o
}

// Stats describes what a pass did
type Stats struct {
	Segments         int // segments that were sampled
	SkippedSegments  int // segments with fewer than two points
	FilteredSegments int // segments vetoed by the filter
	DegenerateEdges  int
	Samples          int
	Cells            int
	RadiusCells      int
	DiskCells        int // cells stamped around each sample
	StepMeters       float64
	CellSize         float64 // after normalization
	Duration         time.Duration
}

// Result is the outcome of a pass. Cells is never nil.
type Result struct {
	Cells *grid.CellSet
	State State
	Stats Stats
}

// Empty reports whether the pass ended without any input to work on
func (r *Result) Empty() bool {
	return r.State == StateEmpty
}

// pass holds the shared, per-run state of one rasterization
type pass struct {
	opts    Options
	sampler *grid.Sampler
	stamper *grid.Stamper
}

func newPass(opts Options) *pass {
	opts = opts.normalize()
	return &pass{
		opts:    opts,
		sampler: grid.NewSampler(opts.CellSize, opts.SampleStepFactor, opts.MinStepMeters),
		stamper: grid.NewStamper(grid.RadiusCells(opts.RoadWidthMeters, opts.CellSize)),
	}
}

func (p *pass) stats() Stats {
	return Stats{
		RadiusCells: p.stamper.Radius(),
		DiskCells:   p.stamper.Area(),
		StepMeters:  p.sampler.Step(),
		CellSize:    p.opts.CellSize,
	}
}

// segment rasterizes one segment into set and records what happened.
// The caller has already checked that seg has at least two points.
func (p *pass) segment(seg city.Segment, set *grid.CellSet, stats *Stats) {
	cellSize := p.opts.CellSize
	samples, degenerate := p.sampler.SampleLine(seg.Pts, func(pt orb.Point) {
		p.stamper.Stamp(grid.WorldToCell(pt, cellSize), set)
	})

	// Every edge collapsed onto one spot: the segment is a single point
	if samples == 0 {
		p.stamper.Stamp(grid.WorldToCell(seg.Pts[0], cellSize), set)
		samples = 1
	}

	stats.Segments++
	stats.Samples += samples
	stats.DegenerateEdges += degenerate
}

// usable reports whether seg can be sampled, counting it otherwise
func (p *pass) usable(seg city.Segment, stats *Stats) bool {
	if len(seg.Pts) < 2 {
		stats.SkippedSegments++
		logger.Get().Debug("Skipping segment with too few points",
			zap.Int("segment", seg.ID), zap.Int("points", len(seg.Pts)))
		return false
	}
	if p.opts.Filter != nil && !p.opts.Filter.Accept(seg) {
		stats.FilteredSegments++
		return false
	}
	return true
}

// Rasterize runs one sequential pass over c.
// A nil or empty city gives an empty result in StateEmpty.
func Rasterize(c *city.City, opts Options) *Result {
	log := logger.Get()
	start := time.Now()

	p := newPass(opts)
	res := &Result{Cells: grid.NewCellSet(), State: StateValidating, Stats: p.stats()}

	if c.IsEmpty() {
		res.State = StateEmpty
		log.Warn("No segments to rasterize")
		return res
	}

	res.State = StateRasterizing
	for _, seg := range c.Segments {
		if !p.usable(seg, &res.Stats) {
			continue
		}
		p.segment(seg, res.Cells, &res.Stats)
	}

	res.State = StateDone
	res.Stats.Cells = res.Cells.Len()
	res.Stats.Duration = time.Since(start)
	logDone(res)
	return res
}

func logDone(res *Result) {
	logger.Get().Info("Rasterization complete",
		zap.Int("segments", res.Stats.Segments),
		zap.Int("skipped", res.Stats.SkippedSegments),
		zap.Int("filtered", res.Stats.FilteredSegments),
		zap.Int("degenerate_edges", res.Stats.DegenerateEdges),
		zap.Int("samples", res.Stats.Samples),
		zap.Int("cells", res.Stats.Cells),
		zap.Int("radius_cells", res.Stats.RadiusCells),
		zap.Int("disk_cells", res.Stats.DiskCells),
		zap.Float64("step_m", res.Stats.StepMeters),
		zap.Duration("duration", res.Stats.Duration),
	)
}
