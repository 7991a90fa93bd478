// Package proj turns WGS84 lon/lat into the planar meters the rasterizer
// works in.
package proj

import (
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// SRID constants for common projections
const (
	SRIDLocal = 0    // local tangent plane, no EPSG code
	SRID3857  = 3857 // Web Mercator
)

// Semi-major axis of WGS84 ellipsoid in meters
const earthRadius = 6378137.0

// Projector maps lon/lat degrees to planar meters
type Projector interface {
	Project(lon, lat float64) orb.Point
	// SRID is the spatial reference of the projected coordinates
	SRID() int
}

// WebMercator projects to EPSG:3857. Distances are stretched by
// 1/cos(lat), so road widths only match at the equator.
type WebMercator struct{}

// Project converts lon/lat to Web Mercator meters
func (WebMercator) Project(lon, lat float64) orb.Point {
	return project.WGS84.ToMercator(orb.Point{lon, lat})
}

// SRID returns 3857
func (WebMercator) SRID() int { return SRID3857 }

// Local is an equirectangular projection around an origin. It keeps
// distances close to true meters for city sized extents, which is what
// the grid needs.
type Local struct {
	originLon, originLat float64
	kx, ky               float64 // meters per degree
}

// NewLocal creates a local projection centered on lat/lon
func NewLocal(lat, lon float64) *Local {
	rad := math.Pi / 180
	return &Local{
		originLon: lon,
		originLat: lat,
		kx:        earthRadius * rad * math.Cos(lat*rad),
		ky:        earthRadius * rad,
	}
}

// Project returns meters east and north of the origin
func (l *Local) Project(lon, lat float64) orb.Point {
	return orb.Point{(lon - l.originLon) * l.kx, (lat - l.originLat) * l.ky}
}

// Unproject is the inverse of Project
func (l *Local) Unproject(p orb.Point) (lon, lat float64) {
	lat = l.originLat + p[1]/l.ky
	if l.kx == 0 {
		return l.originLon, lat
	}
	return l.originLon + p[0]/l.kx, lat
}

// Origin returns the lat/lon the projection is centered on
func (l *Local) Origin() (lat, lon float64) {
	return l.originLat, l.originLon
}

// SRID returns SRIDLocal
func (l *Local) SRID() int { return SRIDLocal }

// Kind names a supported projection
type Kind string

const (
	KindLocal       Kind = "local"
	KindWebMercator Kind = "3857"
)

// ParseKind parses a projection name.
// Accepts: "local", "3857", "EPSG:3857"
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "LOCAL":
		return KindLocal, nil
	case "3857", "EPSG:3857":
		return KindWebMercator, nil
	default:
		return "", fmt.Errorf("unsupported projection: %s (supported: local, 3857)", s)
	}
}

// New builds the projector for kind. The origin is only used by local.
func New(kind Kind, originLat, originLon float64) (Projector, error) {
	switch kind {
	case KindLocal:
		return NewLocal(originLat, originLon), nil
	case KindWebMercator:
		return WebMercator{}, nil
	default:
		return nil, fmt.Errorf("unsupported projection: %s", kind)
	}
}
