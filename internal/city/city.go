package city

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Segment is one road centerline: an id and its points in meters
type Segment struct {
	ID  int         `json:"id"`
	Pts []orb.Point `json:"pts"`
}

// Length returns the planar length of the polyline in meters
func (s Segment) Length() float64 {
	return planar.Length(orb.LineString(s.Pts))
}

// City is the road network handed to the rasterizer
type City struct {
	Segments []Segment `json:"segments"`
}

// IsEmpty reports whether there is nothing to rasterize
func (c *City) IsEmpty() bool {
	return c == nil || len(c.Segments) == 0
}

// PointCount returns the total number of points across all segments
func (c *City) PointCount() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, seg := range c.Segments {
		n += len(seg.Pts)
	}
	return n
}

// Bound returns the bounding box of every point in the city.
// An empty city returns an empty bound at the origin.
func (c *City) Bound() orb.Bound {
	if c == nil {
		return orb.Bound{}
	}

	var (
		bound orb.Bound
		seen  bool
	)
	for _, seg := range c.Segments {
		for _, p := range seg.Pts {
			if !seen {
				bound = p.Bound()
				seen = true
				continue
			}
			bound = bound.Extend(p)
		}
	}
	return bound
}
