package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/mastr-ingest/internal/logging"
)

// Conn is a dedicated database connection held by one task.
type Conn interface {
	TxBeginner
	Release()
}

// ConnSource hands out dedicated connections.
type ConnSource interface {
	Acquire(ctx context.Context) (Conn, error)
}

// PoolSource adapts a pgxpool.Pool to ConnSource.
type PoolSource struct {
	Pool *pgxpool.Pool
}

// Acquire implements ConnSource.
func (s PoolSource) Acquire(ctx context.Context) (Conn, error) {
	c, err := s.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Coordinator runs the transform and load of many partitions with bounded
// parallelism. A failing partition never stops its siblings.
type Coordinator struct {
	conns       ConnSource
	schema      string
	state       *RunState
	transformer *Transformer
	workers     int

	ChunkRows   int
	MaxAttempts int

	// Observe, when set, is called once per finished partition.
	Observe func(PartitionResult)
}

// NewCoordinator returns a Coordinator. workers <= 0 means sequential
// execution in schedule order.
func NewCoordinator(conns ConnSource, schema string, state *RunState, transformer *Transformer, workers int) *Coordinator {
	return &Coordinator{
		conns:       conns,
		schema:      schema,
		state:       state,
		transformer: transformer,
		workers:     workers,
		ChunkRows:   DefaultChunkRows,
		MaxAttempts: DefaultMaxInsertAttempts,
	}
}

// Run ensures each scheduled table exists exactly once, then processes parts
// in the given order and waits for all of them. The returned error is
// reserved for failures that prevent scheduling at all; per-partition errors
// are reported in the Outcome.
func (c *Coordinator) Run(ctx context.Context, parts []Partition) (Outcome, error) {
	start := time.Now()
	log := logging.FromContext(ctx)

	var (
		mu      sync.Mutex
		outcome Outcome
	)
	record := func(r PartitionResult) {
		mu.Lock()
		outcome.add(r)
		mu.Unlock()
		if c.Observe != nil {
			c.Observe(r)
		}
	}

	failedTypes, err := c.ensureTables(ctx, parts)
	if err != nil {
		return outcome, err
	}

	g := new(errgroup.Group)
	if c.workers > 0 {
		g.SetLimit(c.workers)
	} else {
		g.SetLimit(1)
	}

	log.Info("dispatching partitions", "partitions", len(parts), "workers", c.workers)
	for _, p := range parts {
		if cause, ok := failedTypes[p.EntityType]; ok {
			record(PartitionResult{Partition: p.Name, Table: p.Table, Err: cause})
			continue
		}
		p := p
		g.Go(func() error {
			record(c.process(ctx, p))
			return nil
		})
	}
	_ = g.Wait()

	outcome.Duration = time.Since(start)
	log.Info("partitions processed",
		"attempted", outcome.Attempted,
		"succeeded", outcome.Succeeded,
		"failed", outcome.Failed,
		"rows", outcome.RowsInserted,
		"duration_ms", outcome.Duration.Milliseconds(),
	)
	return outcome, nil
}

// ensureTables creates the table of every scheduled entity type before any
// partition is dispatched, on behalf of the partition marked First. Types whose table cannot be created are returned
// with their cause so their partitions are reported as failed.
func (c *Coordinator) ensureTables(ctx context.Context, parts []Partition) (map[string]error, error) {
	failed := make(map[string]error)
	if len(parts) == 0 {
		return failed, nil
	}

	conn, err := c.conns.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w: %w", ErrFatalInfrastructure, err)
	}
	defer conn.Release()

	schema := NewSchemaManager(conn, c.schema)
	for _, owner := range tableOwners(parts) {
		key := owner.EntityType
		et, ok := Get(key)
		if !ok {
			failed[key] = fmt.Errorf("unknown entity type %q", key)
			continue
		}
		if _, err := schema.EnsureTable(ctx, c.state, et); err != nil {
			logging.WithFields(ctx, "table", et.Table, "partition", owner.Name).Error("table creation failed", "error", err)
			failed[key] = err
		}
	}
	return failed, nil
}

// process runs one partition end to end on its own connection.
func (c *Coordinator) process(ctx context.Context, p Partition) (res PartitionResult) {
	start := time.Now()
	res = PartitionResult{Partition: p.Name, Table: p.Table}
	log := logging.WithFields(ctx, "partition", p.Name, "table", p.Table)

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic processing %s: %v", p.Name, r)
			log.Error("partition panicked", "panic", r, "stack", string(debug.Stack()))
		}
		res.Duration = time.Since(start)
		if res.Err != nil {
			log.Error("error processing partition", "error", res.Err, "code", CodeOf(res.Err))
			return
		}
		log.Info("partition loaded",
			"rows", res.Load.Inserted,
			"duplicates", res.Load.DuplicatesDropped,
			"null_keys", res.Load.NullKeysDropped,
			"nulled", res.Load.ValuesNulled,
			"duration_ms", res.Duration.Milliseconds(),
		)
	}()

	log.Info("processing partition")

	et, ok := Get(p.EntityType)
	if !ok {
		res.Err = fmt.Errorf("unknown entity type %q", p.EntityType)
		return res
	}

	if p.Open == nil {
		res.Err = fmt.Errorf("partition %s has no payload", p.Name)
		return res
	}
	rc, err := p.Open()
	if err != nil {
		res.Err = fmt.Errorf("open %s: %w: %w", p.Name, ErrCorruptArchive, err)
		return res
	}
	batch, stats, err := c.transformer.Transform(ctx, p, rc)
	rc.Close()
	res.Repairs = stats.Repairs
	if err != nil {
		res.Err = err
		return res
	}
	res.Rows = batch.Len()

	conn, err := c.conns.Acquire(ctx)
	if err != nil {
		res.Err = fmt.Errorf("acquire connection: %w: %w", ErrFatalInfrastructure, err)
		return res
	}
	defer conn.Release()

	added, err := NewSchemaManager(conn, c.schema).EvolveColumns(ctx, et, batch.Columns)
	res.ColumnsAdded = added
	if err != nil {
		res.Err = err
		return res
	}

	loader := NewLoader(conn, c.schema)
	if c.ChunkRows > 0 {
		loader.ChunkRows = c.ChunkRows
	}
	if c.MaxAttempts > 0 {
		loader.MaxAttempts = c.MaxAttempts
	}
	res.Load, res.Err = loader.Load(ctx, et, batch)
	return res
}
