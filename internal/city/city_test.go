package city

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "city.json", `{
		"segments": [
			{"id": 1, "pts": [[0, 0], [20, 0]]},
			{"id": 2, "pts": [[5, 5]]},
			{"id": 3}
		]
	}`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(c.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(c.Segments))
	}
	if c.Segments[0].ID != 1 || len(c.Segments[0].Pts) != 2 {
		t.Errorf("segment 0 = %+v", c.Segments[0])
	}
	if got := c.Segments[0].Pts[1]; got != (orb.Point{20, 0}) {
		t.Errorf("segment 0 point 1 = %v, want [20 0]", got)
	}
	if c.Segments[2].Pts != nil {
		t.Errorf("segment 3 should have no points, got %v", c.Segments[2].Pts)
	}
	if c.PointCount() != 3 {
		t.Errorf("PointCount() = %d, want 3", c.PointCount())
	}
}

func TestLoadMissingSegments(t *testing.T) {
	path := writeFile(t, "city.json", `{"name": "nowhere"}`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !c.IsEmpty() {
		t.Errorf("expected empty city, got %d segments", len(c.Segments))
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"invalid json", `{"segments": [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "city.json", tt.content)
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadGeoJSON(t *testing.T) {
	path := writeFile(t, "roads.geojson", `{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "id": 42, "properties": {},
			 "geometry": {"type": "LineString", "coordinates": [[0, 0], [10, 0]]}},
			{"type": "Feature", "properties": {"name": "plaza"},
			 "geometry": {"type": "Point", "coordinates": [1, 1]}},
			{"type": "Feature", "properties": {},
			 "geometry": {"type": "MultiLineString", "coordinates": [[[0, 0], [0, 10]], [[5, 5], [6, 6]]]}}
		]
	}`)

	c, err := LoadGeoJSON(path)
	if err != nil {
		t.Fatalf("LoadGeoJSON failed: %v", err)
	}

	if len(c.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(c.Segments))
	}
	if c.Segments[0].ID != 42 {
		t.Errorf("first segment id = %d, want 42", c.Segments[0].ID)
	}
	if c.Segments[1].ID != c.Segments[2].ID {
		t.Errorf("multilinestring parts should share an id, got %d and %d",
			c.Segments[1].ID, c.Segments[2].ID)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	in := &City{Segments: []Segment{
		{ID: 7, Pts: []orb.Point{{1.5, 2.5}, {3, 4}}},
	}}
	path := filepath.Join(t.TempDir(), "out.json")

	if err := Save(path, in); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(out.Segments) != 1 || out.Segments[0].ID != 7 || out.Segments[0].Pts[0] != (orb.Point{1.5, 2.5}) {
		t.Errorf("round trip mismatch: %+v", out.Segments)
	}
}

func TestBoundAndLength(t *testing.T) {
	c := &City{Segments: []Segment{
		{ID: 1, Pts: []orb.Point{{-5, 2}, {10, 2}}},
		{ID: 2, Pts: []orb.Point{{0, -3}, {0, 4}}},
	}}

	b := c.Bound()
	want := orb.Bound{Min: orb.Point{-5, -3}, Max: orb.Point{10, 4}}
	if b != want {
		t.Errorf("Bound() = %v, want %v", b, want)
	}

	if l := c.Segments[0].Length(); math.Abs(l-15) > 1e-9 {
		t.Errorf("Length() = %f, want 15", l)
	}

	var nilCity *City
	if !nilCity.IsEmpty() {
		t.Error("nil city should be empty")
	}
}
