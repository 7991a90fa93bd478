package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wegman-software/roadgrid/internal/logger"
	"github.com/wegman-software/roadgrid/internal/raster"
)

var (
	inspectFormat string
	inspectCells  bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <city.json>",
	Short: "Print statistics about a city document",
	Long: `Load a city document and report its segments, points, extent and total
road length. With --cells the roads are also rasterized using the grid
settings and the cell count and grid extent are reported; nothing is
written.`,
	Args: cobra.ExactArgs(1),
	Run:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVar(&inspectFormat, "input-format", "", "Input format: json or geojson (default from extension)")
	inspectCmd.Flags().BoolVar(&inspectCells, "cells", false, "Rasterize and report the cell count")
	inspectCmd.Flags().Float64Var(&cfg.CellSize, "cell-size", cfg.CellSize, "Grid cell size in meters")
	inspectCmd.Flags().Float64Var(&cfg.RoadWidthMeters, "road-width", cfg.RoadWidthMeters, "Road width in meters")
}

func runInspect(cmd *cobra.Command, args []string) {
	log := logger.Get()

	c, err := loadCity(args[0], inspectFormat)
	if err != nil {
		exitWithError("failed to load city", err)
	}

	var length float64
	short := 0
	for _, seg := range c.Segments {
		length += seg.Length()
		if len(seg.Pts) < 2 {
			short++
		}
	}

	fields := []zap.Field{
		zap.String("input", args[0]),
		zap.Int("segments", len(c.Segments)),
		zap.Int("too_short", short),
		zap.Int("points", c.PointCount()),
		zap.Float64("length_m", length),
	}
	if !c.IsEmpty() {
		b := c.Bound()
		fields = append(fields, zap.String("extent",
			fmt.Sprintf("%.2f,%.2f,%.2f,%.2f", b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y())))
	}
	log.Info("City", fields...)

	if !inspectCells {
		return
	}

	res, err := raster.RasterizeParallel(cmd.Context(), c, raster.Options{
		CellSize:         cfg.CellSize,
		SampleStepFactor: cfg.SampleStepFactor,
		MinStepMeters:    cfg.MinStepMeters,
		RoadWidthMeters:  cfg.RoadWidthMeters,
	}, cfg.Workers)
	if err != nil {
		exitWithError("rasterization failed", err)
	}

	cellFields := []zap.Field{
		zap.String("state", res.State.String()),
		zap.Int("cells", res.Cells.Len()),
		zap.Int("radius_cells", res.Stats.RadiusCells),
	}
	if r, ok := res.Cells.Bounds(); ok {
		cellFields = append(cellFields,
			zap.String("cols", fmt.Sprintf("%d..%d", r.MinCol, r.MaxCol)),
			zap.String("rows", fmt.Sprintf("%d..%d", r.MinRow, r.MaxRow)))
	}
	log.Info("Grid", cellFields...)
}
