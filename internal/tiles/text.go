package tiles

import (
	"bufio"
	"context"
	"fmt"
	"os"
)

// TextSink writes one "col/row x y z" line per tile, after a header line
// with the tile size and thickness
type TextSink struct {
	file   *os.File
	w      *bufio.Writer
	header bool
	count  int
}

// NewTextSink creates (or truncates) path
func NewTextSink(path string) (*TextSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create tile file: %w", err)
	}
	return &TextSink{file: f, w: bufio.NewWriter(f)}, nil
}

// WriteTiles appends tiles to the file
func (s *TextSink) WriteTiles(_ context.Context, tiles []Tile) error {
	if len(tiles) == 0 {
		return nil
	}
	if !s.header {
		fmt.Fprintf(s.w, "# size=%g thickness=%g\n", tiles[0].Size, tiles[0].Thickness)
		s.header = true
	}
	for _, t := range tiles {
		fmt.Fprintf(s.w, "%s %g %g %g\n", t.Cell, t.Center.X, t.Center.Y, t.Center.Z)
	}
	s.count += len(tiles)
	return nil
}

// Count returns the number of tiles written so far
func (s *TextSink) Count() int {
	return s.count
}

// Close flushes and closes the file
func (s *TextSink) Close() error {
	if err := s.w.Flush(); err != nil {
		s.file.Close()
		return fmt.Errorf("failed to write tile file: %w", err)
	}
	return s.file.Close()
}
