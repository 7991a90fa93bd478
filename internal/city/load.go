package city

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// mapFile maps path read-only and passes the bytes to fn.
// The mapping is released when fn returns, so fn must not retain data.
func mapFile(path string, fn func(data []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open city document: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat city document: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("city document %s is empty", path)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to mmap city document: %w", err)
	}
	defer m.Unmap()

	return fn(m)
}

// Load reads a JSON city document ({"segments":[{"id":..,"pts":[[x,y],..]}]}).
// A document without a segments array yields an empty City.
func Load(path string) (*City, error) {
	var c City
	err := mapFile(path, func(data []byte) error {
		if err := json.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("failed to parse city document: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadGeoJSON reads a GeoJSON FeatureCollection and turns every LineString
// and MultiLineString feature into segments. Numeric feature ids are kept,
// otherwise ids are assigned in file order starting at 1.
func LoadGeoJSON(path string) (*City, error) {
	var c City
	err := mapFile(path, func(data []byte) error {
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return fmt.Errorf("failed to parse GeoJSON: %w", err)
		}

		nextID := 1
		for _, f := range fc.Features {
			id, ok := featureID(f)
			if !ok {
				id = nextID
			}

			switch g := f.Geometry.(type) {
			case orb.LineString:
				c.Segments = append(c.Segments, Segment{ID: id, Pts: clonePoints(g)})
			case orb.MultiLineString:
				for _, ls := range g {
					c.Segments = append(c.Segments, Segment{ID: id, Pts: clonePoints(ls)})
				}
			default:
				continue
			}
			nextID++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func featureID(f *geojson.Feature) (int, bool) {
	switch v := f.ID.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	if v, ok := f.Properties["id"].(float64); ok {
		return int(v), true
	}
	return 0, false
}

func clonePoints(ls orb.LineString) []orb.Point {
	return append([]orb.Point(nil), ls...)
}

// Save writes c as a JSON city document
func Save(path string, c *City) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create city document: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to encode city document: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write city document: %w", err)
	}
	return f.Close()
}
