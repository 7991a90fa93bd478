// Package osmroads builds city documents from OpenStreetMap PBF extracts.
//
// Extraction takes two passes over the file. The first reads ways only and
// keeps those the road style accepts, remembering the node ids they use.
// The second reads nodes only and resolves those ids to coordinates.
// Coordinates are then projected to meters and every way becomes one or
// more segments.
package osmroads

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"go.uber.org/zap"

	"github.com/wegman-software/roadgrid/internal/city"
	"github.com/wegman-software/roadgrid/internal/config"
	"github.com/wegman-software/roadgrid/internal/logger"
	"github.com/wegman-software/roadgrid/internal/proj"
	"github.com/wegman-software/roadgrid/internal/style"
)

// Options configures an extraction
type Options struct {
	Style      *style.Filter
	BBox       *config.BBox
	Projection proj.Kind
	Workers    int // decoder goroutines, 0 means NumCPU
}

// Stats holds extraction statistics
type Stats struct {
	Ways         int64 // ways seen
	RoadWays     int64 // ways accepted by the style
	Nodes        int64 // nodes resolved
	MissingNodes int64 // referenced but absent from the file
	Clipped      int64 // node references outside the bbox
	Segments     int64
}

// Extractor reads road ways from a PBF file
type Extractor struct {
	opts  Options
	stats Stats
}

// roadWay is a way accepted in pass 1
type roadWay struct {
	id    osm.WayID
	nodes []osm.NodeID
}

// NewExtractor creates an extractor. A nil style uses the default road
// rules and an empty projection means local.
func NewExtractor(opts Options) *Extractor {
	if opts.Style == nil {
		opts.Style = style.NewFilter(style.DefaultConfig().Roads)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Projection == "" {
		opts.Projection = proj.KindLocal
	}
	return &Extractor{opts: opts}
}

// Stats returns the statistics of the last run
func (e *Extractor) Stats() Stats {
	return e.stats
}

// ExtractFile runs the extraction on the PBF file at path
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*city.City, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PBF file: %w", err)
	}
	defer f.Close()
	return e.Extract(ctx, f)
}

// Extract runs both passes over r
func (e *Extractor) Extract(ctx context.Context, r io.ReadSeeker) (*city.City, error) {
	log := logger.Get()
	e.stats = Stats{}

	log.Info("Pass 1: Collecting road ways")
	start := time.Now()
	ways, needed, err := e.scanWays(ctx, r)
	if err != nil {
		return nil, err
	}
	log.Info("Pass 1 complete",
		zap.Int64("ways", e.stats.Ways),
		zap.Int64("road_ways", e.stats.RoadWays),
		zap.Int("nodes_needed", len(needed)),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)))

	if len(ways) == 0 {
		log.Warn("No road ways found")
		return &city.City{}, nil
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	log.Info("Pass 2: Resolving node coordinates")
	start = time.Now()
	coords, err := e.scanNodes(ctx, r, needed)
	if err != nil {
		return nil, err
	}
	e.stats.Nodes = int64(len(coords))
	log.Info("Pass 2 complete",
		zap.Int64("nodes", e.stats.Nodes),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)))

	lat, lon, ok := origin(ways, coords, e.opts.BBox)
	if !ok {
		log.Warn("None of the road nodes were found")
		return &city.City{}, nil
	}
	projector, err := proj.New(e.opts.Projection, lat, lon)
	if err != nil {
		return nil, err
	}

	b := assemble(ways, coords, e.opts.BBox, projector)
	e.stats.MissingNodes = b.missing
	e.stats.Clipped = b.clipped
	e.stats.Segments = int64(len(b.segments))

	log.Info("Roads assembled",
		zap.Int64("segments", e.stats.Segments),
		zap.Int64("missing_nodes", b.missing),
		zap.Int64("clipped_nodes", b.clipped),
		zap.Float64("origin_lat", lat),
		zap.Float64("origin_lon", lon))

	return &city.City{Segments: b.segments}, nil
}

func (e *Extractor) scanWays(ctx context.Context, r io.Reader) ([]roadWay, map[osm.NodeID]struct{}, error) {
	scanner := osmpbf.New(ctx, r, e.opts.Workers)
	defer scanner.Close()
	scanner.SkipNodes = true
	scanner.SkipRelations = true

	var ways []roadWay
	needed := make(map[osm.NodeID]struct{})

	for scanner.Scan() {
		w, ok := scanner.Object().(*osm.Way)
		if !ok {
			continue
		}
		e.stats.Ways++
		if len(w.Nodes) < 2 || !e.opts.Style.Match(w.Tags) {
			continue
		}
		e.stats.RoadWays++

		ids := w.Nodes.NodeIDs()
		for _, id := range ids {
			needed[id] = struct{}{}
		}
		ways = append(ways, roadWay{id: w.ID, nodes: ids})
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("failed to scan ways: %w", err)
	}
	return ways, needed, nil
}

func (e *Extractor) scanNodes(ctx context.Context, r io.Reader, needed map[osm.NodeID]struct{}) (map[osm.NodeID]orb.Point, error) {
	scanner := osmpbf.New(ctx, r, e.opts.Workers)
	defer scanner.Close()
	scanner.SkipWays = true
	scanner.SkipRelations = true

	coords := make(map[osm.NodeID]orb.Point, len(needed))
	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, want := needed[n.ID]; !want {
			continue
		}
		coords[n.ID] = orb.Point{n.Lon, n.Lat}
		if len(coords) == len(needed) {
			break
		}
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to scan nodes: %w", err)
	}
	return coords, nil
}

// origin picks the projection center: the bbox center when one is set,
// otherwise the first resolved node of the first way.
func origin(ways []roadWay, coords map[osm.NodeID]orb.Point, bbox *config.BBox) (lat, lon float64, ok bool) {
	if bbox != nil && bbox.IsSet {
		lat, lon = bbox.Center()
		return lat, lon, true
	}
	for _, w := range ways {
		for _, id := range w.nodes {
			if p, found := coords[id]; found {
				return p.Lat(), p.Lon(), true
			}
		}
	}
	return 0, 0, false
}

type assembly struct {
	segments []city.Segment
	missing  int64
	clipped  int64
}

// assemble projects the ways. A way is cut wherever a node is missing or
// outside the bbox; each run of two or more usable nodes becomes a segment
// carrying the way id.
func assemble(ways []roadWay, coords map[osm.NodeID]orb.Point, bbox *config.BBox, projector proj.Projector) assembly {
	var a assembly

	for _, w := range ways {
		var run []orb.Point
		flush := func() {
			if len(run) >= 2 {
				a.segments = append(a.segments, city.Segment{ID: int(w.id), Pts: run})
			}
			run = nil
		}

		for _, id := range w.nodes {
			ll, found := coords[id]
			switch {
			case !found:
				a.missing++
				flush()
			case !bbox.Contains(ll.Lat(), ll.Lon()):
				a.clipped++
				flush()
			default:
				run = append(run, projector.Project(ll.Lon(), ll.Lat()))
			}
		}
		flush()
	}
	return a
}
