package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Service binds the pool-backed components to one destination schema.
type Service struct {
	pool   *pgxpool.Pool
	schema string
}

// NewService creates a new Service instance.
func NewService(pool *pgxpool.Pool, schema string) *Service {
	if schema == "" {
		schema = "public"
	}
	return &Service{pool: pool, schema: schema}
}

// Schema returns the destination schema.
func (s *Service) Schema() string { return s.schema }

// EnsureSchema creates the destination schema when it does not exist.
func (s *Service) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoteIdentifier(s.schema)); err != nil {
		return fmt.Errorf("create schema %s: %w", s.schema, err)
	}
	return nil
}

// Coordinator returns a Coordinator drawing connections from the pool.
func (s *Service) Coordinator(state *RunState, transformer *Transformer, workers int) *Coordinator {
	return NewCoordinator(PoolSource{Pool: s.pool}, s.schema, state, transformer, workers)
}

// Spatial returns a SpatialIndexer on the pool.
func (s *Service) Spatial() *SpatialIndexer {
	return NewSpatialIndexer(s.pool, s.schema)
}

// RunLog returns the run log on the pool.
func (s *Service) RunLog() *RunLog {
	return NewRunLog(s.pool, s.schema)
}

// TableRowCount returns the number of rows in table. exists is false when
// the table is missing from the schema.
func (s *Service) TableRowCount(ctx context.Context, table string) (count int64, exists bool, err error) {
	return tableRowCount(ctx, s.pool, s.schema, table)
}

func tableRowCount(ctx context.Context, db DBTX, schema, table string) (int64, bool, error) {
	var exists bool
	err := db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2)",
		schema, table,
	).Scan(&exists)
	if err != nil {
		return 0, false, fmt.Errorf("check table %s: %w", table, err)
	}
	if !exists {
		return 0, false, nil
	}

	var n int64
	if err := db.QueryRow(ctx, "SELECT COUNT(*) FROM "+qualifiedName(schema, table)).Scan(&n); err != nil {
		return 0, true, fmt.Errorf("count %s: %w", table, err)
	}
	return n, true, nil
}
