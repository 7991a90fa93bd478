package tiles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"go.uber.org/zap"

	"github.com/wegman-software/roadgrid/internal/logger"
)

const stagingTable = "road_tiles_load_tmp"

// copyColumns is the COPY layout of the staging table
var copyColumns = []string{
	"grid_col", "grid_row", "x", "y", "z", "size", "thickness", "center_wkb", "footprint_wkb",
}

// PostGISOptions configures the PostGIS sink
type PostGISOptions struct {
	ConnString   string
	Schema       string
	Table        string
	SRID         int
	MaxConns     int
	DropExisting bool
}

// PostGISSink loads tiles into a PostGIS table with COPY. Each batch goes
// through a staging table so WKB can be turned into geometries server-side.
type PostGISSink struct {
	ctx   context.Context
	pool  *pgxpool.Pool
	opts  PostGISOptions
	table string
	count int64
}

// NewPostGISSink connects and creates the target table
func NewPostGISSink(ctx context.Context, opts PostGISOptions) (*PostGISSink, error) {
	poolConfig, err := pgxpool.ParseConfig(opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	s := &PostGISSink{
		ctx:   ctx,
		pool:  pool,
		opts:  opts,
		table: qualifiedTable(opts.Schema, opts.Table),
	}
	if err := s.prepare(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func qualifiedTable(schema, table string) string {
	if schema == "" {
		return pgx.Identifier{table}.Sanitize()
	}
	return pgx.Identifier{schema, table}.Sanitize()
}

func (s *PostGISSink) prepare(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS postgis"); err != nil {
		return fmt.Errorf("failed to create PostGIS extension: %w", err)
	}
	if s.opts.Schema != "" && s.opts.Schema != "public" {
		sql := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{s.opts.Schema}.Sanitize())
		if _, err := s.pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	if s.opts.DropExisting {
		if _, err := s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", s.table)); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}

	createSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			grid_col BIGINT NOT NULL,
			grid_row BIGINT NOT NULL,
			x DOUBLE PRECISION NOT NULL,
			y DOUBLE PRECISION NOT NULL,
			z DOUBLE PRECISION NOT NULL,
			size DOUBLE PRECISION NOT NULL,
			thickness DOUBLE PRECISION NOT NULL,
			center GEOMETRY(Point, %d),
			footprint GEOMETRY(Polygon, %d),
			PRIMARY KEY (grid_col, grid_row)
		)
	`, s.table, s.opts.SRID, s.opts.SRID)

	if _, err := s.pool.Exec(ctx, createSQL); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// tileRow builds the COPY row for t
func tileRow(t Tile) ([]interface{}, error) {
	center, err := wkb.Marshal(orb.Point{t.Center.X, t.Center.Z})
	if err != nil {
		return nil, fmt.Errorf("failed to encode center of %s: %w", t.Cell, err)
	}
	footprint, err := wkb.Marshal(t.Footprint())
	if err != nil {
		return nil, fmt.Errorf("failed to encode footprint of %s: %w", t.Cell, err)
	}
	return []interface{}{
		int64(t.Cell.Col), int64(t.Cell.Row),
		t.Center.X, t.Center.Y, t.Center.Z,
		t.Size, t.Thickness,
		center, footprint,
	}, nil
}

// WriteTiles copies one batch inside its own transaction
func (s *PostGISSink) WriteTiles(ctx context.Context, tiles []Tile) error {
	if len(tiles) == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(tiles))
	for _, t := range tiles {
		row, err := tileRow(t)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stagingSQL := fmt.Sprintf(`
		CREATE TEMP TABLE IF NOT EXISTS %s (
			grid_col BIGINT,
			grid_row BIGINT,
			x DOUBLE PRECISION,
			y DOUBLE PRECISION,
			z DOUBLE PRECISION,
			size DOUBLE PRECISION,
			thickness DOUBLE PRECISION,
			center_wkb BYTEA,
			footprint_wkb BYTEA
		) ON COMMIT DROP
	`, stagingTable)
	if _, err := tx.Exec(ctx, stagingSQL); err != nil {
		return fmt.Errorf("failed to create staging table: %w", err)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{stagingTable}, copyColumns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("COPY failed: %w", err)
	}

	insertSQL := fmt.Sprintf(`
		INSERT INTO %s (grid_col, grid_row, x, y, z, size, thickness, center, footprint)
		SELECT
			grid_col, grid_row, x, y, z, size, thickness,
			ST_SetSRID(ST_GeomFromWKB(center_wkb), %d),
			ST_SetSRID(ST_GeomFromWKB(footprint_wkb), %d)
		FROM %s
		ON CONFLICT (grid_col, grid_row) DO NOTHING
	`, s.table, s.opts.SRID, s.opts.SRID, stagingTable)
	tag, err := tx.Exec(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("failed to insert from staging table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	s.count += tag.RowsAffected()
	return nil
}

// Count returns the number of rows inserted so far
func (s *PostGISSink) Count() int64 {
	return s.count
}

// Close indexes the table and closes the pool
func (s *PostGISSink) Close() error {
	defer s.pool.Close()

	log := logger.Get()
	idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING GIST (footprint)",
		pgx.Identifier{s.opts.Table + "_footprint_idx"}.Sanitize(), s.table)
	if _, err := s.pool.Exec(s.ctx, idx); err != nil {
		return fmt.Errorf("failed to create spatial index: %w", err)
	}
	if _, err := s.pool.Exec(s.ctx, fmt.Sprintf("ANALYZE %s", s.table)); err != nil {
		return fmt.Errorf("failed to analyze table: %w", err)
	}

	log.Info("PostGIS load complete", zap.String("table", s.table), zap.Int64("rows", s.count))
	return nil
}
