package grid

// Offset is a cell displacement relative to a disk center
type Offset struct {
	DX, DY int
}

// Disk returns every offset with DX²+DY² <= radius², row by row.
// A non-positive radius yields the single zero offset.
func Disk(radius int) []Offset {
	if radius <= 0 {
		return []Offset{{}}
	}

	footprint := make([]Offset, 0, (2*radius+1)*(2*radius+1))
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= r2 {
				footprint = append(footprint, Offset{DX: dx, DY: dy})
			}
		}
	}
	return footprint
}

// Stamper adds a precomputed disk of cells around each center it is given
type Stamper struct {
	radius    int
	footprint []Offset
}

// NewStamper precomputes the disk footprint for radius
func NewStamper(radius int) *Stamper {
	if radius < 0 {
		radius = 0
	}
	return &Stamper{radius: radius, footprint: Disk(radius)}
}

// Radius returns the stamping radius in cells
func (s *Stamper) Radius() int {
	return s.radius
}

// Area returns the number of cells in one disk
func (s *Stamper) Area() int {
	return len(s.footprint)
}

// Stamp adds the disk around center to set
func (s *Stamper) Stamp(center Cell, set *CellSet) {
	for _, o := range s.footprint {
		set.Add(Cell{Col: center.Col + o.DX, Row: center.Row + o.DY})
	}
}

// Stamp adds the disk of radiusCells around center to set without
// keeping a footprint around. Use a Stamper when stamping many centers.
func Stamp(center Cell, radiusCells int, set *CellSet) {
	if radiusCells <= 0 {
		set.Add(center)
		return
	}
	r2 := radiusCells * radiusCells
	for dy := -radiusCells; dy <= radiusCells; dy++ {
		for dx := -radiusCells; dx <= radiusCells; dx++ {
			if dx*dx+dy*dy <= r2 {
				set.Add(Cell{Col: center.Col + dx, Row: center.Row + dy})
			}
		}
	}
}
