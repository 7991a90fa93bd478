package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wegman-software/roadgrid/internal/city"
	"github.com/wegman-software/roadgrid/internal/logger"
	"github.com/wegman-software/roadgrid/internal/raster"
	"github.com/wegman-software/roadgrid/internal/script"
	"github.com/wegman-software/roadgrid/internal/tiles"
)

var dropExisting bool

var rasterizeCmd = &cobra.Command{
	Use:   "rasterize [city.json]",
	Short: "Rasterize a city's roads into grid tiles",
	Long: `Sample every road segment at a fixed step in meters, map the samples to
grid cells, widen each cell into a disk matching the road width and write
one tile per unique cell.

Input is a city document (JSON) or a GeoJSON FeatureCollection of
LineStrings. Output formats:
  - text     one "col/row x y z" line per tile
  - parquet  col, row, x, y, z, size, thickness columns
  - png      top-down preview image
  - postgis  table with center points and footprint polygons`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRasterize,
}

func init() {
	rootCmd.AddCommand(rasterizeCmd)

	f := rasterizeCmd.Flags()
	f.StringVar(&cfg.InputFormat, "input-format", cfg.InputFormat, "Input format: json or geojson")
	f.StringVarP(&cfg.OutputFile, "output", "o", cfg.OutputFile, "Output file (text, parquet, png)")
	f.StringVarP(&cfg.OutputFormat, "format", "f", cfg.OutputFormat, "Output format: text, parquet, png or postgis")
	f.StringVar(&cfg.FilterScript, "filter", cfg.FilterScript, "Lua script deciding which segments are rasterized")

	f.Float64Var(&cfg.CellSize, "cell-size", cfg.CellSize, "Grid cell size in meters")
	f.Float64Var(&cfg.SampleStepFactor, "step-factor", cfg.SampleStepFactor, "Sample step as a fraction of the cell size")
	f.Float64Var(&cfg.MinStepMeters, "min-step", cfg.MinStepMeters, "Smallest sample step in meters")
	f.Float64Var(&cfg.RoadWidthMeters, "road-width", cfg.RoadWidthMeters, "Road width in meters")

	f.Float64Var(&cfg.Scale, "scale", cfg.Scale, "Output scale factor (does not change which cells are produced)")
	f.Float64Var(&cfg.YOffset, "y-offset", cfg.YOffset, "Output Y coordinate of the tiles")
	f.Float64Var(&cfg.TileThickness, "thickness", cfg.TileThickness, "Tile thickness")
	f.IntVar(&cfg.PixelsPerCell, "pixels-per-cell", cfg.PixelsPerCell, "Preview pixels per cell (png)")
	f.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Tiles per output batch")

	f.StringVar(&cfg.DBTable, "db-table", cfg.DBTable, "Target table (postgis)")
	f.IntVar(&cfg.SRID, "srid", cfg.SRID, "SRID stored with tile geometries (postgis)")
	f.BoolVar(&dropExisting, "drop-existing", false, "Drop the target table first (postgis)")
}

func runRasterize(cmd *cobra.Command, args []string) {
	if len(args) == 1 {
		cfg.InputFile = args[0]
	}
	log := logger.Get()

	if err := cfg.Validate(); err != nil {
		exitWithError("invalid configuration", err)
	}

	ctx := cmd.Context()
	stopMetrics := startMetrics(ctx)
	totalStart := time.Now()

	c, err := loadCity(cfg.InputFile, cfg.InputFormat)
	if err != nil {
		exitWithError("failed to load city", err)
	}
	log.Info("City loaded",
		zap.String("input", cfg.InputFile),
		zap.Int("segments", len(c.Segments)),
		zap.Int("points", c.PointCount()))

	opts := raster.Options{
		CellSize:         cfg.CellSize,
		SampleStepFactor: cfg.SampleStepFactor,
		MinStepMeters:    cfg.MinStepMeters,
		RoadWidthMeters:  cfg.RoadWidthMeters,
	}

	var filter *script.Filter
	if cfg.FilterScript != "" {
		filter = script.NewFilter()
		defer filter.Close()
		if err := filter.LoadFile(cfg.FilterScript); err != nil {
			exitWithError("failed to load filter script", err)
		}
		if filter.HasCallback() {
			opts.Filter = filter
		} else {
			log.Warn("Filter script defines no accept_segment callback", zap.String("script", cfg.FilterScript))
		}
	}

	res, err := raster.RasterizeParallel(ctx, c, opts, cfg.Workers)
	if err != nil {
		exitWithError("rasterization failed", err)
	}

	sink, err := openSink(ctx)
	if err != nil {
		exitWithError("failed to open output", err)
	}

	place := tiles.Placement{
		CellSize:  res.Stats.CellSize,
		Scale:     cfg.Scale,
		YOffset:   cfg.YOffset,
		Thickness: cfg.TileThickness,
	}
	written, err := tiles.Emit(ctx, res.Cells, place, sink, cfg.BatchSize)
	if err != nil {
		sink.Close()
		exitWithError("failed to write tiles", err)
	}
	if err := sink.Close(); err != nil {
		exitWithError("failed to finish output", err)
	}

	stopMetrics()

	if filter != nil && filter.Errors() > 0 {
		log.Warn("Filter script failed on some segments, they were kept",
			zap.String("script", cfg.FilterScript),
			zap.Int("errors", filter.Errors()))
	}

	log.Info("Rasterization complete",
		zap.String("state", res.State.String()),
		zap.Int("tiles", written),
		zap.String("format", cfg.OutputFormat),
		zap.String("output", outputName()),
		zap.Float64("tile_size", place.TileSize()),
		zap.Duration("total_time", time.Since(totalStart).Round(time.Millisecond)),
	)
}

// loadCity reads the input in the given format. An empty format is
// guessed from the file extension.
func loadCity(path, format string) (*city.City, error) {
	if format == "" {
		format = "json"
		lower := strings.ToLower(path)
		if strings.HasSuffix(lower, ".geojson") {
			format = "geojson"
		}
	}

	switch format {
	case "json":
		return city.Load(path)
	case "geojson":
		return city.LoadGeoJSON(path)
	default:
		return nil, fmt.Errorf("unknown input format %q", format)
	}
}

func openSink(ctx context.Context) (tiles.Sink, error) {
	switch cfg.OutputFormat {
	case "text":
		return tiles.NewTextSink(cfg.OutputFile)
	case "parquet":
		return tiles.NewParquetSink(cfg.OutputFile)
	case "png":
		return tiles.NewPNGSink(cfg.OutputFile, cfg.PixelsPerCell), nil
	case "postgis":
		return tiles.NewPostGISSink(ctx, tiles.PostGISOptions{
			ConnString:   cfg.ConnectionString(),
			Schema:       cfg.DBSchema,
			Table:        cfg.DBTable,
			SRID:         cfg.SRID,
			MaxConns:     cfg.Workers,
			DropExisting: dropExisting,
		})
	default:
		return nil, fmt.Errorf("unknown output format %q", cfg.OutputFormat)
	}
}

func outputName() string {
	if cfg.OutputFormat == "postgis" {
		return fmt.Sprintf("%s:%d/%s.%s", cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBTable)
	}
	return cfg.OutputFile
}
