package tiles

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	"golang.org/x/image/colornames"

	"github.com/wegman-software/roadgrid/internal/grid"
)

// maxPreviewSide caps the preview image size in pixels per side
const maxPreviewSide = 16384

// PNGSink draws a top-down preview with one square per tile.
// Row numbers grow upwards in the grid and downwards in the image.
type PNGSink struct {
	path          string
	pixelsPerCell int
	cells         *grid.CellSet

	Road       color.Color
	Background color.Color
}

// NewPNGSink creates a preview sink; pixelsPerCell below 1 is raised to 1
func NewPNGSink(path string, pixelsPerCell int) *PNGSink {
	if pixelsPerCell < 1 {
		pixelsPerCell = 1
	}
	return &PNGSink{
		path:          path,
		pixelsPerCell: pixelsPerCell,
		cells:         grid.NewCellSet(),
		Road:          colornames.Darkslategray,
		Background:    colornames.Whitesmoke,
	}
}

// WriteTiles collects tiles; the image is drawn on Close
func (s *PNGSink) WriteTiles(_ context.Context, tiles []Tile) error {
	for _, t := range tiles {
		s.cells.Add(t.Cell)
	}
	return nil
}

// Image draws the collected tiles. It returns nil when there are none.
func (s *PNGSink) Image() (*image.RGBA, error) {
	r, ok := s.cells.Bounds()
	if !ok {
		return nil, nil
	}

	ppc := s.pixelsPerCell
	w, h := r.Width()*ppc, r.Height()*ppc
	if w > maxPreviewSide || h > maxPreviewSide {
		return nil, fmt.Errorf("preview would be %dx%d pixels (max %d per side), lower pixels_per_cell",
			w, h, maxPreviewSide)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(s.Background), image.Point{}, draw.Src)

	road := image.NewUniform(s.Road)
	for _, c := range s.cells.Cells() {
		x := (c.Col - r.MinCol) * ppc
		y := (r.MaxRow - c.Row) * ppc
		draw.Draw(img, image.Rect(x, y, x+ppc, y+ppc), road, image.Point{}, draw.Src)
	}
	return img, nil
}

// Close draws the preview and writes it as PNG. Nothing is written
// when no tiles were received.
func (s *PNGSink) Close() error {
	img, err := s.Image()
	if err != nil {
		return err
	}
	if img == nil {
		return nil
	}

	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("failed to create preview: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode preview: %w", err)
	}
	return f.Close()
}
