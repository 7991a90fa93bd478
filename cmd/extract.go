package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wegman-software/roadgrid/internal/city"
	"github.com/wegman-software/roadgrid/internal/config"
	"github.com/wegman-software/roadgrid/internal/logger"
	"github.com/wegman-software/roadgrid/internal/osmroads"
	"github.com/wegman-software/roadgrid/internal/proj"
	"github.com/wegman-software/roadgrid/internal/style"
)

var (
	cityOutput string
	bboxStr    string
)

var extractCmd = &cobra.Command{
	Use:   "extract <input.osm.pbf>",
	Short: "Extract roads from an OSM PBF file into a city document",
	Long: `Read an OSM PBF file and write the ways accepted by the road style as
segments of a city document (JSON), ready for rasterize.

Coordinates are projected to meters, either on a local plane centered on
the bbox (or the first road node) or in Web Mercator (--projection 3857).
Ways leaving the bbox are cut at its edge.`,
	Args: cobra.ExactArgs(1),
	Run:  runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVarP(&cityOutput, "output", "o", "city.json", "City document to write")
	extractCmd.Flags().StringVarP(&bboxStr, "bbox", "b", "", "Bounding box filter: minlon,minlat,maxlon,maxlat")
	extractCmd.Flags().StringVarP(&cfg.StyleFile, "style", "S", cfg.StyleFile, "Road style YAML file")
	extractCmd.Flags().StringVarP(&cfg.Projection, "projection", "E", cfg.Projection, "Target projection: local or 3857")
}

func runExtract(cmd *cobra.Command, args []string) {
	input := args[0]
	log := logger.Get()

	if bboxStr != "" {
		bbox, err := config.ParseBBox(bboxStr)
		if err != nil {
			exitWithError("invalid bbox", err)
		}
		cfg.BBox = bbox
	}

	kind, err := proj.ParseKind(cfg.Projection)
	if err != nil {
		exitWithError("invalid projection", err)
	}

	roadStyle := style.DefaultConfig()
	if cfg.StyleFile != "" {
		roadStyle, err = style.LoadConfig(cfg.StyleFile)
		if err != nil {
			exitWithError("failed to load style", err)
		}
	}

	logFields := []zap.Field{
		zap.String("input", input),
		zap.String("output", cityOutput),
		zap.String("projection", string(kind)),
	}
	if cfg.BBox != nil && cfg.BBox.IsSet {
		logFields = append(logFields, zap.String("bbox",
			fmt.Sprintf("%.4f,%.4f,%.4f,%.4f", cfg.BBox.MinLon, cfg.BBox.MinLat, cfg.BBox.MaxLon, cfg.BBox.MaxLat)))
	}
	if cfg.StyleFile != "" {
		logFields = append(logFields, zap.String("style", cfg.StyleFile))
	}
	log.Info("Starting road extraction", logFields...)

	ctx := cmd.Context()
	stopMetrics := startMetrics(ctx)
	start := time.Now()

	extractor := osmroads.NewExtractor(osmroads.Options{
		Style:      style.NewFilter(roadStyle.Roads),
		BBox:       cfg.BBox,
		Projection: kind,
		Workers:    cfg.Workers,
	})
	c, err := extractor.ExtractFile(ctx, input)
	if err != nil {
		exitWithError("extraction failed", err)
	}

	if err := city.Save(cityOutput, c); err != nil {
		exitWithError("failed to write city", err)
	}
	stopMetrics()

	stats := extractor.Stats()
	log.Info("Extraction complete",
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)),
		zap.Int64("ways", stats.Ways),
		zap.Int64("road_ways", stats.RoadWays),
		zap.Int64("segments", stats.Segments),
		zap.Int64("missing_nodes", stats.MissingNodes),
	)
}
