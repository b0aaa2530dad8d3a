package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/mastr-ingest/internal/logging"
)

// Coordinate columns that qualify a table for a geometry column.
const (
	ColumnLongitude = "Laengengrad"
	ColumnLatitude  = "Breitengrad"
	geomColumn      = "geom"
)

// DefaultSRID is WGS 84.
const DefaultSRID = 4326

// SpatialIndexer adds point geometries and GiST indexes to loaded tables.
type SpatialIndexer struct {
	db     DBTX
	schema string
}

// NewSpatialIndexer returns a SpatialIndexer working in schema.
func NewSpatialIndexer(db DBTX, schema string) *SpatialIndexer {
	if schema == "" {
		schema = "public"
	}
	return &SpatialIndexer{db: db, schema: schema}
}

// EnableSpatialSupport installs PostGIS if the server offers it.
// Returns false, and logs a warning, when it is unavailable or cannot be
// installed.
func (s *SpatialIndexer) EnableSpatialSupport(ctx context.Context) bool {
	log := logging.FromContext(ctx)

	var available bool
	err := s.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_available_extensions WHERE name = 'postgis')",
	).Scan(&available)
	if err != nil {
		log.Warn("could not query available extensions", "error", err)
		return false
	}
	if !available {
		log.Warn("PostGIS is not available on this server")
		return false
	}

	if _, err := s.db.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS postgis"); err != nil {
		log.Warn("could not enable PostGIS", "error", err)
		return false
	}

	log.Info("PostGIS enabled")
	return true
}

// BuildIndexes adds geom (Point, srid), fills it from the coordinate columns
// and creates a GiST index on every table of the schema that has both
// coordinate columns. Safe to run repeatedly. Returns the tables processed.
func (s *SpatialIndexer) BuildIndexes(ctx context.Context, srid int) ([]string, error) {
	if srid <= 0 {
		srid = DefaultSRID
	}

	var installed bool
	err := s.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'postgis')",
	).Scan(&installed)
	if err != nil {
		return nil, fmt.Errorf("check postgis: %w: %w", ErrFatalInfrastructure, err)
	}
	if !installed {
		return nil, ErrSpatialUnavailable
	}

	tables, err := s.coordinateTables(ctx)
	if err != nil {
		return nil, err
	}

	for _, table := range tables {
		if err := s.indexTable(ctx, table, srid); err != nil {
			return nil, err
		}
	}
	return tables, nil
}

// coordinateTables lists tables of the schema exposing both coordinate columns.
func (s *SpatialIndexer) coordinateTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT table_name FROM information_schema.columns
		 WHERE table_schema = $1 AND column_name IN ($2, $3)
		 GROUP BY table_name
		 HAVING COUNT(DISTINCT column_name) = 2
		 ORDER BY table_name`,
		s.schema, ColumnLongitude, ColumnLatitude)
	if err != nil {
		return nil, fmt.Errorf("find coordinate tables: %w", err)
	}
	tables, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("find coordinate tables: %w", err)
	}
	return tables, nil
}

func (s *SpatialIndexer) indexTable(ctx context.Context, table string, srid int) error {
	log := logging.WithFields(ctx, "table", table)
	qt := qualifiedName(s.schema, table)
	lon, lat, geom := quoteIdentifier(ColumnLongitude), quoteIdentifier(ColumnLatitude), quoteIdentifier(geomColumn)

	stmts := []string{
		fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s geometry(Point, %d)", qt, geom, srid),
		fmt.Sprintf(
			"UPDATE %s SET %s = ST_SetSRID(ST_MakePoint(%s::double precision, %s::double precision), %d) "+
				"WHERE %s IS NOT NULL AND %s IS NOT NULL AND %s IS NULL",
			qt, geom, lon, lat, srid, lon, lat, geom),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING GIST (%s)",
			quoteIdentifier(table+"_geom_idx"), qt, geom),
	}

	for _, stmt := range stmts {
		tag, err := s.db.Exec(ctx, stmt)
		if err != nil {
			return fmt.Errorf("spatial index %s: %w", table, err)
		}
		if tag.Update() {
			log.Info("geometries populated", "rows", tag.RowsAffected())
		}
	}
	log.Info("spatial index ready", "index", table+"_geom_idx")
	return nil
}
