package pipeline

import (
	"context"
	"errors"

	"github.com/JonMunkholm/mastr-ingest/internal/core"
	"github.com/JonMunkholm/mastr-ingest/internal/storage"
)

// Store is the database side of a run.
type Store interface {
	EnsureSchema(ctx context.Context) error
	TableRowCount(ctx context.Context, table string) (int64, bool, error)
	Load(ctx context.Context, state *core.RunState, tr *core.Transformer, parts []core.Partition, workers int, observe func(core.PartitionResult)) (core.Outcome, error)
	// BuildSpatial installs PostGIS and builds geometry indexes. available is
	// false when the server cannot provide PostGIS.
	BuildSpatial(ctx context.Context, srid int) (available bool, tables []string, err error)
	RecordRun(ctx context.Context, rec core.RunRecord) error
}

// Fetcher downloads the newest archive into a directory.
type Fetcher interface {
	Fetch(ctx context.Context, outDir string) (string, error)
}

// Mirror is the object storage copy of published archives.
type Mirror interface {
	Latest(ctx context.Context) (storage.Object, error)
	Download(ctx context.Context, obj storage.Object, dir string) (string, error)
	Upload(ctx context.Context, localPath string) error
}

// Observer receives progress of a run. metrics.Recorder implements it.
type Observer interface {
	ObservePartition(core.PartitionResult)
	SetStage(stage string)
}

// ServiceStore implements Store on a core.Service.
type ServiceStore struct {
	Service     *core.Service
	ChunkRows   int
	MaxAttempts int
}

func (s ServiceStore) EnsureSchema(ctx context.Context) error {
	if err := s.Service.EnsureSchema(ctx); err != nil {
		return err
	}
	return s.Service.RunLog().Ensure(ctx)
}

func (s ServiceStore) TableRowCount(ctx context.Context, table string) (int64, bool, error) {
	return s.Service.TableRowCount(ctx, table)
}

func (s ServiceStore) Load(ctx context.Context, state *core.RunState, tr *core.Transformer, parts []core.Partition, workers int, observe func(core.PartitionResult)) (core.Outcome, error) {
	c := s.Service.Coordinator(state, tr, workers)
	if s.ChunkRows > 0 {
		c.ChunkRows = s.ChunkRows
	}
	if s.MaxAttempts > 0 {
		c.MaxAttempts = s.MaxAttempts
	}
	c.Observe = observe
	return c.Run(ctx, parts)
}

func (s ServiceStore) BuildSpatial(ctx context.Context, srid int) (bool, []string, error) {
	idx := s.Service.Spatial()
	if !idx.EnableSpatialSupport(ctx) {
		return false, nil, nil
	}
	tables, err := idx.BuildIndexes(ctx, srid)
	if errors.Is(err, core.ErrSpatialUnavailable) {
		return false, nil, nil
	}
	return true, tables, err
}

func (s ServiceStore) RecordRun(ctx context.Context, rec core.RunRecord) error {
	return s.Service.RunLog().Record(ctx, rec)
}
