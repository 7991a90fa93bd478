package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BBox is a lon/lat bounding box used to clip OSM extraction
type BBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
	IsSet                          bool
}

// Contains checks if a point is within the bounding box
func (b *BBox) Contains(lat, lon float64) bool {
	if b == nil || !b.IsSet {
		return true
	}
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// Center returns the middle of the box
func (b *BBox) Center() (lat, lon float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLon + b.MaxLon) / 2
}

// ParseBBox parses a bbox string in format "minlon,minlat,maxlon,maxlat"
func ParseBBox(s string) (*BBox, error) {
	if s == "" {
		return &BBox{}, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must have 4 values: minlon,minlat,maxlon,maxlat")
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid bbox coordinate %q: %w", p, err)
		}
		v[i] = f
	}

	bbox := &BBox{MinLon: v[0], MinLat: v[1], MaxLon: v[2], MaxLat: v[3], IsSet: true}
	if bbox.MinLon > bbox.MaxLon {
		return nil, fmt.Errorf("minlon (%f) must be <= maxlon (%f)", bbox.MinLon, bbox.MaxLon)
	}
	if bbox.MinLat > bbox.MaxLat {
		return nil, fmt.Errorf("minlat (%f) must be <= maxlat (%f)", bbox.MinLat, bbox.MaxLat)
	}
	return bbox, nil
}

// Config holds everything a roadgrid run needs
type Config struct {
	// Grid settings
	CellSize         float64 `yaml:"cell_size"`          // meters per cell
	SampleStepFactor float64 `yaml:"sample_step_factor"` // sample step relative to cell size
	MinStepMeters    float64 `yaml:"min_step_meters"`    // floor on the sample step
	RoadWidthMeters  float64 `yaml:"road_width_meters"`

	// Tile output settings (never affect which cells are produced)
	Scale         float64 `yaml:"scale"`
	YOffset       float64 `yaml:"y_offset"`
	TileThickness float64 `yaml:"tile_thickness"`

	// Input and output
	InputFile     string `yaml:"input"`
	InputFormat   string `yaml:"input_format"` // json or geojson
	OutputFile    string `yaml:"output"`
	OutputFormat  string `yaml:"format"` // text, parquet, png or postgis
	FilterScript  string `yaml:"filter_script"`
	PixelsPerCell int    `yaml:"pixels_per_cell"`

	// OSM extraction
	StyleFile  string `yaml:"style"`
	Projection string `yaml:"projection"` // local or 3857
	BBox       *BBox  `yaml:"-"`

	// Processing
	Workers   int `yaml:"workers"`
	BatchSize int `yaml:"batch_size"`

	// PostGIS sink
	DBHost     string `yaml:"db_host"`
	DBPort     int    `yaml:"db_port"`
	DBName     string `yaml:"db_name"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBSchema   string `yaml:"db_schema"`
	DBTable    string `yaml:"db_table"`
	SRID       int    `yaml:"srid"`

	// Logging and metrics
	Verbose         bool          `yaml:"verbose"`
	LogFile         string        `yaml:"log_file"`
	MetricsInterval time.Duration `yaml:"metrics_interval"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		CellSize:         5,
		SampleStepFactor: 0.5,
		MinStepMeters:    0.01,
		RoadWidthMeters:  12,
		Scale:            0.01,
		YOffset:          0,
		TileThickness:    0.2,
		InputFormat:      "json",
		OutputFile:       "road_cells.txt",
		OutputFormat:     "text",
		PixelsPerCell:    2,
		Projection:       "local",
		Workers:          1,
		BatchSize:        10000,
		DBHost:           "localhost",
		DBPort:           5432,
		DBName:           "roads",
		DBUser:           "postgres",
		DBSchema:         "public",
		DBTable:          "road_tiles",
		SRID:             0,
		MetricsInterval:  0, // disabled
	}
}

// LoadFile overlays the YAML file at path onto c.
// Keys missing from the file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string
func (c *Config) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBName, c.DBUser,
	)
	if c.DBPassword != "" {
		connStr += fmt.Sprintf(" password=%s", c.DBPassword)
	}
	return connStr
}

// Validate checks the settings the CLI cannot recover from.
// Grid settings the rasterizer can clamp on its own are not rejected here.
func (c *Config) Validate() error {
	if c.InputFile == "" {
		return fmt.Errorf("input file is required")
	}
	switch c.InputFormat {
	case "json", "geojson":
	default:
		return fmt.Errorf("unknown input format %q (want json or geojson)", c.InputFormat)
	}
	switch c.OutputFormat {
	case "text", "parquet", "png", "postgis":
	default:
		return fmt.Errorf("unknown output format %q (want text, parquet, png or postgis)", c.OutputFormat)
	}
	if c.OutputFormat != "postgis" && c.OutputFile == "" {
		return fmt.Errorf("output file is required for format %s", c.OutputFormat)
	}
	if c.Scale == 0 {
		return fmt.Errorf("scale must not be zero")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1")
	}
	return nil
}
