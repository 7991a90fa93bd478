package grid

import (
	"sort"
)

// CellSet is the deduplicated set of road cells produced by one
// rasterization pass. It only grows. A CellSet is not safe for concurrent
// use; parallel producers each fill their own set and Merge them.
type CellSet struct {
	cells map[Cell]struct{}
}

// NewCellSet creates an empty set
func NewCellSet() *CellSet {
	return &CellSet{cells: make(map[Cell]struct{})}
}

// Add inserts c. Adding a cell twice has no further effect.
func (s *CellSet) Add(c Cell) {
	s.cells[c] = struct{}{}
}

// Contains reports whether c is in the set
func (s *CellSet) Contains(c Cell) bool {
	_, ok := s.cells[c]
	return ok
}

// Len returns the number of unique cells
func (s *CellSet) Len() int {
	return len(s.cells)
}

// Merge adds every cell of other to s
func (s *CellSet) Merge(other *CellSet) {
	for c := range other.cells {
		s.cells[c] = struct{}{}
	}
}

// Equal reports whether both sets hold the same cells
func (s *CellSet) Equal(other *CellSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	for c := range s.cells {
		if !other.Contains(c) {
			return false
		}
	}
	return true
}

// Cells returns all cells sorted by row, then column
func (s *CellSet) Cells() []Cell {
	cells := make([]Cell, 0, len(s.cells))
	for c := range s.cells {
		cells = append(cells, c)
	}

	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Row != cells[j].Row {
			return cells[i].Row < cells[j].Row
		}
		return cells[i].Col < cells[j].Col
	})
	return cells
}

// Range is an inclusive rectangle of cells
type Range struct {
	MinCol, MaxCol int
	MinRow, MaxRow int
}

// Width returns the number of columns in the range
func (r Range) Width() int {
	return r.MaxCol - r.MinCol + 1
}

// Height returns the number of rows in the range
func (r Range) Height() int {
	return r.MaxRow - r.MinRow + 1
}

// Bounds returns the smallest range holding every cell.
// ok is false for an empty set.
func (s *CellSet) Bounds() (r Range, ok bool) {
	for c := range s.cells {
		if !ok {
			r = Range{MinCol: c.Col, MaxCol: c.Col, MinRow: c.Row, MaxRow: c.Row}
			ok = true
			continue
		}
		if c.Col < r.MinCol {
			r.MinCol = c.Col
		}
		if c.Col > r.MaxCol {
			r.MaxCol = c.Col
		}
		if c.Row < r.MinRow {
			r.MinRow = c.Row
		}
		if c.Row > r.MaxRow {
			r.MaxRow = c.Row
		}
	}
	return r, ok
}
