// Package tiles hands rasterized road cells to whatever places the visual
// tiles: files, images or a database.
package tiles

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/wegman-software/roadgrid/internal/grid"
)

// Placement turns cells into renderer tiles
type Placement struct {
	CellSize  float64 // meters per cell, as used for rasterization
	Scale     float64 // output scale factor
	YOffset   float64
	Thickness float64 // tile height
}

// TileSize returns the tile edge length in output units
func (p Placement) TileSize() float64 {
	return p.CellSize * p.Scale
}

// Tile returns the tile for cell c
func (p Placement) Tile(c grid.Cell) Tile {
	return Tile{
		Cell:      c,
		Center:    grid.CellToWorld(c, p.CellSize, p.Scale, p.YOffset),
		Size:      p.TileSize(),
		Thickness: p.Thickness,
	}
}

// Tile is one flat road tile ready to be placed
type Tile struct {
	Cell      grid.Cell
	Center    grid.Point3
	Size      float64 // edge length on the X/Z plane
	Thickness float64
}

// Footprint returns the tile square on the X/Z plane as a closed polygon
func (t Tile) Footprint() orb.Polygon {
	h := t.Size / 2
	minX, maxX := t.Center.X-h, t.Center.X+h
	minZ, maxZ := t.Center.Z-h, t.Center.Z+h
	return orb.Polygon{orb.Ring{
		{minX, minZ}, {maxX, minZ}, {maxX, maxZ}, {minX, maxZ}, {minX, minZ},
	}}
}

// Sink receives tiles in batches. Close flushes whatever is buffered.
type Sink interface {
	WriteTiles(ctx context.Context, tiles []Tile) error
	Close() error
}

// Emit writes every cell of cells to sink in row-major order, batchSize
// tiles at a time. It does not close the sink. It returns the number of
// tiles written.
func Emit(ctx context.Context, cells *grid.CellSet, place Placement, sink Sink, batchSize int) (int, error) {
	if batchSize < 1 {
		batchSize = 1
	}

	batch := make([]Tile, 0, batchSize)
	written := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := sink.WriteTiles(ctx, batch); err != nil {
			return fmt.Errorf("failed to write tiles: %w", err)
		}
		written += len(batch)
		batch = batch[:0]
		return nil
	}

	for _, c := range cells.Cells() {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		batch = append(batch, place.Tile(c))
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return written, err
			}
		}
	}

	if err := flush(); err != nil {
		return written, err
	}
	return written, nil
}
