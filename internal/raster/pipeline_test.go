package raster

import (
	"context"
	"math"
	"testing"

	"github.com/paulmach/orb"

	"github.com/wegman-software/roadgrid/internal/city"
	"github.com/wegman-software/roadgrid/internal/grid"
)

func defaultOptions() Options {
	return Options{
		CellSize:         5,
		SampleStepFactor: 0.5,
		MinStepMeters:    0.01,
		RoadWidthMeters:  10,
	}
}

func straightCity() *city.City {
	return &city.City{Segments: []city.Segment{
		{ID: 1, Pts: []orb.Point{{0, 0}, {20, 0}}},
	}}
}

func TestRasterizeStraightRoad(t *testing.T) {
	res := Rasterize(straightCity(), defaultOptions())

	if res.State != StateDone {
		t.Fatalf("state = %v, want done", res.State)
	}
	if res.Stats.Samples != 9 {
		t.Errorf("samples = %d, want 9", res.Stats.Samples)
	}
	if res.Stats.RadiusCells != 1 || res.Stats.StepMeters != 2.5 {
		t.Errorf("radius/step = %d/%v, want 1/2.5", res.Stats.RadiusCells, res.Stats.StepMeters)
	}
	if res.Stats.DiskCells != 5 {
		t.Errorf("disk cells = %d, want 5", res.Stats.DiskCells)
	}

	// Columns 0-4 on rows -1..1, plus the plus-shaped disk arms that
	// reach column -1 and column 5 on row 0
	want := grid.NewCellSet()
	for col := 0; col <= 4; col++ {
		for row := -1; row <= 1; row++ {
			want.Add(grid.Cell{Col: col, Row: row})
		}
	}
	want.Add(grid.Cell{Col: -1, Row: 0})
	want.Add(grid.Cell{Col: 5, Row: 0})

	if res.Cells.Len() != 17 {
		t.Errorf("cell count = %d, want 17", res.Cells.Len())
	}
	if !res.Cells.Equal(want) {
		t.Errorf("cells = %v, want %v", res.Cells.Cells(), want.Cells())
	}
	if res.Cells.Contains(grid.Cell{Col: -1, Row: 1}) {
		t.Error("disk corner (-1,1) must not be stamped")
	}
}

func TestRasterizeEmpty(t *testing.T) {
	tests := []struct {
		name string
		city *city.City
	}{
		{"nil city", nil},
		{"no segments", &city.City{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Rasterize(tt.city, defaultOptions())
			if !res.Empty() {
				t.Errorf("state = %v, want empty", res.State)
			}
			if res.Cells == nil || res.Cells.Len() != 0 {
				t.Error("expected a non-nil empty cell set")
			}
		})
	}
}

func TestRasterizeSkipsShortSegments(t *testing.T) {
	c := &city.City{Segments: []city.Segment{
		{ID: 1},
		{ID: 2, Pts: []orb.Point{{3, 3}}},
		{ID: 3, Pts: []orb.Point{{0, 0}, {20, 0}}},
	}}

	res := Rasterize(c, defaultOptions())

	if res.State != StateDone {
		t.Fatalf("state = %v, want done", res.State)
	}
	if res.Stats.SkippedSegments != 2 || res.Stats.Segments != 1 {
		t.Errorf("skipped/used = %d/%d, want 2/1", res.Stats.SkippedSegments, res.Stats.Segments)
	}
	if res.Cells.Len() != 17 {
		t.Errorf("cell count = %d, want 17", res.Cells.Len())
	}
}

func TestRasterizeAllSkipped(t *testing.T) {
	c := &city.City{Segments: []city.Segment{{ID: 1, Pts: []orb.Point{{1, 1}}}}}

	res := Rasterize(c, defaultOptions())
	if res.State != StateDone || res.Cells.Len() != 0 {
		t.Errorf("state=%v cells=%d, want done with no cells", res.State, res.Cells.Len())
	}
}

func TestRasterizeDegenerateEdge(t *testing.T) {
	opts := defaultOptions()
	opts.RoadWidthMeters = 20 // radius 2

	t.Run("repeated point only", func(t *testing.T) {
		c := &city.City{Segments: []city.Segment{
			{ID: 1, Pts: []orb.Point{{12, 7}, {12, 7}}},
		}}
		res := Rasterize(c, opts)

		want := grid.NewCellSet()
		grid.Stamp(grid.Cell{Col: 2, Row: 1}, 2, want)
		if !res.Cells.Equal(want) {
			t.Errorf("cells = %v, want the single disk %v", res.Cells.Cells(), want.Cells())
		}
		if res.Stats.DegenerateEdges != 1 {
			t.Errorf("degenerate edges = %d, want 1", res.Stats.DegenerateEdges)
		}
	})

	t.Run("repeated point inside a line", func(t *testing.T) {
		plain := Rasterize(&city.City{Segments: []city.Segment{
			{ID: 1, Pts: []orb.Point{{0, 0}, {12, 7}, {30, 7}}},
		}}, opts)
		repeated := Rasterize(&city.City{Segments: []city.Segment{
			{ID: 1, Pts: []orb.Point{{0, 0}, {12, 7}, {12, 7}, {30, 7}}},
		}}, opts)

		if !plain.Cells.Equal(repeated.Cells) {
			t.Error("a repeated vertex must not add cells")
		}
		if repeated.Stats.Samples != plain.Stats.Samples {
			t.Errorf("samples = %d, want %d", repeated.Stats.Samples, plain.Stats.Samples)
		}
	})
}

func TestRasterizeDeterministic(t *testing.T) {
	c := &city.City{Segments: []city.Segment{
		{ID: 1, Pts: []orb.Point{{0, 0}, {40, 13}, {41, 60}}},
		{ID: 2, Pts: []orb.Point{{-30, 5}, {15, -22}}},
	}}
	opts := defaultOptions()

	first := Rasterize(c, opts)
	second := Rasterize(c, opts)

	if !first.Cells.Equal(second.Cells) {
		t.Error("two runs over the same input differ")
	}
	if first.Stats.Samples != second.Stats.Samples {
		t.Errorf("sample counts differ: %d vs %d", first.Stats.Samples, second.Stats.Samples)
	}
}

func TestRasterizeGapFree(t *testing.T) {
	c := &city.City{Segments: []city.Segment{
		{ID: 1, Pts: []orb.Point{{0, 0}, {97, 53}, {20, 140}}},
	}}
	opts := Options{CellSize: 5, SampleStepFactor: 1, RoadWidthMeters: 0}

	res := Rasterize(c, opts)
	if res.Stats.RadiusCells != 0 {
		t.Fatalf("radius = %d, want 0", res.Stats.RadiusCells)
	}

	// With radius 0 every cell must be reachable through its 8 neighbours
	cells := res.Cells.Cells()
	seen := map[grid.Cell]bool{cells[0]: true}
	queue := []grid.Cell{cells[0]}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				n := grid.Cell{Col: cur.Col + dx, Row: cur.Row + dy}
				if res.Cells.Contains(n) && !seen[n] {
					seen[n] = true
					queue = append(queue, n)
				}
			}
		}
	}

	if len(seen) != len(cells) {
		t.Errorf("path has gaps: reached %d of %d cells", len(seen), len(cells))
	}
	for _, end := range []orb.Point{{0, 0}, {97, 53}, {20, 140}} {
		if !res.Cells.Contains(grid.WorldToCell(end, 5)) {
			t.Errorf("vertex %v not covered", end)
		}
	}
}

func TestRasterizeNormalizesOptions(t *testing.T) {
	opts := Options{CellSize: 0, SampleStepFactor: 0, MinStepMeters: -1, RoadWidthMeters: -3}

	res := Rasterize(straightCity(), opts)

	if res.Stats.StepMeters != 0.01 {
		t.Errorf("step = %v, want the 0.01 floor", res.Stats.StepMeters)
	}
	if res.Stats.RadiusCells != 0 {
		t.Errorf("radius = %d, want 0", res.Stats.RadiusCells)
	}
	if res.Stats.CellSize != DefaultCellSize {
		t.Errorf("cell size = %v, want %v", res.Stats.CellSize, DefaultCellSize)
	}
	// Default 5 m cells along a 20 m road: columns 0-4
	if res.Cells.Len() != 5 {
		t.Errorf("cell count = %d, want 5", res.Cells.Len())
	}
}

func TestRasterizeNonFiniteOptions(t *testing.T) {
	endpoints := func(t *testing.T, res *Result) {
		t.Helper()
		for _, end := range []orb.Point{{0, 0}, {20, 0}} {
			if !res.Cells.Contains(grid.WorldToCell(end, 5)) {
				t.Errorf("endpoint %v not covered", end)
			}
		}
		r, ok := res.Cells.Bounds()
		if !ok {
			t.Fatal("no cells")
		}
		if r.MinCol < -5 || r.MaxCol > 10 || r.MinRow < -5 || r.MaxRow > 5 {
			t.Errorf("cells spread to %+v, want a box around the road", r)
		}
		if res.Stats.Samples < 2 {
			t.Errorf("samples = %d, want at least the two endpoints", res.Stats.Samples)
		}
	}

	tests := []struct {
		name   string
		modify func(*Options)
		step   float64
		radius int
	}{
		{"infinite step factor", func(o *Options) { o.SampleStepFactor = math.Inf(1) }, 2.5, 1},
		{"negative infinite step factor", func(o *Options) { o.SampleStepFactor = math.Inf(-1) }, 2.5, 1},
		{"overflowing step factor", func(o *Options) { o.SampleStepFactor = 1e308 }, 2.5, 1},
		{"infinite min step", func(o *Options) { o.MinStepMeters = math.Inf(1) }, 2.5, 1},
		{"infinite road width", func(o *Options) { o.RoadWidthMeters = math.Inf(1) }, 2.5, 0},
		{"NaN road width", func(o *Options) { o.RoadWidthMeters = math.NaN() }, 2.5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOptions()
			tt.modify(&opts)

			res := Rasterize(straightCity(), opts)
			if res.Stats.StepMeters != tt.step {
				t.Errorf("step = %v, want %v", res.Stats.StepMeters, tt.step)
			}
			if res.Stats.RadiusCells != tt.radius {
				t.Errorf("radius = %d, want %d", res.Stats.RadiusCells, tt.radius)
			}
			endpoints(t, res)
		})
	}
}

type idFilter map[int]bool

func (f idFilter) Accept(seg city.Segment) bool {
	return f[seg.ID]
}

func TestRasterizeFilter(t *testing.T) {
	c := &city.City{Segments: []city.Segment{
		{ID: 1, Pts: []orb.Point{{0, 0}, {20, 0}}},
		{ID: 2, Pts: []orb.Point{{0, 100}, {20, 100}}},
	}}
	opts := defaultOptions()
	opts.Filter = idFilter{1: true}

	res := Rasterize(c, opts)

	if res.Stats.FilteredSegments != 1 || res.Stats.Segments != 1 {
		t.Errorf("filtered/used = %d/%d, want 1/1", res.Stats.FilteredSegments, res.Stats.Segments)
	}
	if res.Cells.Contains(grid.Cell{Col: 0, Row: 20}) {
		t.Error("filtered segment was rasterized")
	}
}

func TestRasterizeParallelMatchesSequential(t *testing.T) {
	c := &city.City{}
	for i := 0; i < 25; i++ {
		off := float64(i * 7)
		c.Segments = append(c.Segments, city.Segment{
			ID:  i,
			Pts: []orb.Point{{off, 0}, {off + 30, off}, {off + 30, off + 45}},
		})
	}
	c.Segments = append(c.Segments, city.Segment{ID: 99, Pts: []orb.Point{{1, 1}}})
	opts := defaultOptions()

	seq := Rasterize(c, opts)

	for _, workers := range []int{0, 2, 3, 8, 64} {
		par, err := RasterizeParallel(context.Background(), c, opts, workers)
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		if !par.Cells.Equal(seq.Cells) {
			t.Errorf("workers=%d: %d cells, sequential has %d", workers, par.Cells.Len(), seq.Cells.Len())
		}
		if par.Stats.Samples != seq.Stats.Samples || par.Stats.SkippedSegments != 1 {
			t.Errorf("workers=%d: stats %+v, sequential %+v", workers, par.Stats, seq.Stats)
		}
	}
}

func TestRasterizeParallelEmptyAndCancelled(t *testing.T) {
	res, err := RasterizeParallel(context.Background(), &city.City{}, defaultOptions(), 4)
	if err != nil || !res.Empty() {
		t.Errorf("empty city: res=%v err=%v", res.State, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &city.City{Segments: []city.Segment{
		{ID: 1, Pts: []orb.Point{{0, 0}, {20, 0}}},
		{ID: 2, Pts: []orb.Point{{0, 10}, {20, 10}}},
	}}
	if _, err := RasterizeParallel(ctx, c, defaultOptions(), 2); err == nil {
		t.Error("expected cancellation error")
	}
}

func TestStateString(t *testing.T) {
	if StateEmpty.String() != "empty" || StateDone.String() != "done" || State(42).String() != "unknown" {
		t.Error("unexpected state names")
	}
}
