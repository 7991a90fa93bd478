package tiles

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
)

// tileSchema is the column layout of tile Parquet files
var tileSchema = arrow.NewSchema([]arrow.Field{
	{Name: "col", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
	{Name: "row", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
	{Name: "x", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	{Name: "y", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	{Name: "z", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	{Name: "size", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	{Name: "thickness", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
}, nil)

// ParquetSink writes tiles to a zstd compressed Parquet file, one row
// group per batch
type ParquetSink struct {
	file    *os.File
	writer  *pqarrow.FileWriter
	builder *array.RecordBuilder
	count   int
}

// NewParquetSink creates a new tile Parquet writer
func NewParquetSink(path string) (*ParquetSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet file: %w", err)
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithDictionaryDefault(false),
	)

	writer, err := pqarrow.NewFileWriter(tileSchema, f, props, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	return &ParquetSink{
		file:    f,
		writer:  writer,
		builder: array.NewRecordBuilder(memory.DefaultAllocator, tileSchema),
	}, nil
}

// WriteTiles writes tiles as one record batch
func (s *ParquetSink) WriteTiles(_ context.Context, tiles []Tile) error {
	if len(tiles) == 0 {
		return nil
	}

	cols := s.builder.Field(0).(*array.Int64Builder)
	rows := s.builder.Field(1).(*array.Int64Builder)
	xs := s.builder.Field(2).(*array.Float64Builder)
	ys := s.builder.Field(3).(*array.Float64Builder)
	zs := s.builder.Field(4).(*array.Float64Builder)
	sizes := s.builder.Field(5).(*array.Float64Builder)
	thick := s.builder.Field(6).(*array.Float64Builder)

	for _, t := range tiles {
		cols.Append(int64(t.Cell.Col))
		rows.Append(int64(t.Cell.Row))
		xs.Append(t.Center.X)
		ys.Append(t.Center.Y)
		zs.Append(t.Center.Z)
		sizes.Append(t.Size)
		thick.Append(t.Thickness)
	}

	rec := s.builder.NewRecord()
	defer rec.Release()
	if err := s.writer.Write(rec); err != nil {
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	s.count += len(tiles)
	return nil
}

// Count returns the number of tiles written so far
func (s *ParquetSink) Count() int {
	return s.count
}

// Close writes the footer and closes the file
func (s *ParquetSink) Close() error {
	s.builder.Release()
	if err := s.writer.Close(); err != nil {
		s.file.Close()
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	// The writer may already have closed the file
	if err := s.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}
