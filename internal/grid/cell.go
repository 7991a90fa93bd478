// Package grid maps metric road geometry onto a uniform grid of cells.
//
// Grid resolution is expressed entirely in input meters. The output scale
// used by CellToWorld only changes the coordinates handed to a renderer and
// never which cells are produced.
package grid

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Cell is one square of the grid, addressed by column and row
type Cell struct {
	Col int
	Row int
}

// String returns the cell in col/row format
func (c Cell) String() string {
	return fmt.Sprintf("%d/%d", c.Col, c.Row)
}

// Point3 is a position in the renderer's world space (Y is up)
type Point3 struct {
	X, Y, Z float64
}

// WorldToCell returns the cell containing p
func WorldToCell(p orb.Point, cellSize float64) Cell {
	return Cell{
		Col: int(math.Floor(p.X() / cellSize)),
		Row: int(math.Floor(p.Y() / cellSize)),
	}
}

// CellToWorld returns the center of c in renderer coordinates.
// Grid X maps to world X and grid Y maps to world Z.
func CellToWorld(c Cell, cellSize, scale, yOffset float64) Point3 {
	return Point3{
		X: (float64(c.Col) + 0.5) * cellSize * scale,
		Y: yOffset,
		Z: (float64(c.Row) + 0.5) * cellSize * scale,
	}
}

// MaxRadiusCells caps the stamping radius. A disk of this radius already
// holds about 52 million cells.
const MaxRadiusCells = 4096

// RadiusCells converts a road width in meters to a stamping radius in cells.
// Non-finite or non-positive results give 0; larger ones are capped at
// MaxRadiusCells.
func RadiusCells(roadWidthMeters, cellSize float64) int {
	r := math.Ceil((roadWidthMeters * 0.5) / cellSize)
	if !(r > 0) || math.IsInf(r, 1) {
		return 0
	}
	if r > MaxRadiusCells {
		return MaxRadiusCells
	}
	return int(r)
}
