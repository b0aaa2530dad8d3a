// Package pipeline drives one ingestion run from archive acquisition to
// spatial indexing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/mastr-ingest/internal/archive"
	"github.com/JonMunkholm/mastr-ingest/internal/core"
	"github.com/JonMunkholm/mastr-ingest/internal/logging"
	"github.com/JonMunkholm/mastr-ingest/internal/storage"
)

// SentinelTable is checked by Options.IfEmpty to detect a populated database.
const SentinelTable = "wind_extended"

// Options are the per-run settings.
type Options struct {
	ArchivePath string // Pinned archive; skips acquisition
	DownloadDir string
	Reuse       bool // Permit reusing the newest archive in DownloadDir
	Data        []string
	Cleansing   bool
	Workers     int
	Spatial     bool
	SRID        int
	SourceTag   string
	MaxRepairs  int
	IfEmpty     bool // Skip the run when SentinelTable already has rows
}

// Orchestrator runs the ingestion state machine.
type Orchestrator struct {
	store    Store
	fetcher  Fetcher
	mirror   Mirror
	observer Observer
	now      func() time.Time

	mu      sync.RWMutex
	current Report
}

// New returns an Orchestrator. mirror and observer may be nil.
func New(store Store, fetcher Fetcher, mirror Mirror, observer Observer) *Orchestrator {
	return &Orchestrator{
		store:    store,
		fetcher:  fetcher,
		mirror:   mirror,
		observer: observer,
		now:      time.Now,
	}
}

// Snapshot returns the report of the current or last run.
func (o *Orchestrator) Snapshot() Report {
	o.mu.RLock()
	defer o.mu.RUnlock()
	r := o.current
	r.Failures = append([]Failure(nil), r.Failures...)
	r.IndexedTables = append([]string(nil), r.IndexedTables...)
	return r
}

func (o *Orchestrator) publish(r *Report) {
	o.mu.Lock()
	o.current = *r
	o.mu.Unlock()
}

// transition moves the run to stage, logs it and publishes the report.
func (o *Orchestrator) transition(ctx context.Context, r *Report, stage Stage) {
	logging.FromContext(ctx).Info("pipeline stage", "from", r.Stage, "to", stage)
	r.Stage = stage
	if o.observer != nil {
		o.observer.SetStage(string(stage))
	}
	o.publish(r)
}

// Run executes one ingestion. The report is complete whether or not an error
// is returned; a non-nil error means the run ended in StageFailed.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (Report, error) {
	rep := Report{RunID: uuid.NewString(), StartedAt: o.now()}
	ctx = logging.WithRunID(ctx, rep.RunID)
	log := logging.FromContext(ctx)
	log.Info("ingestion run started", "archive", opts.ArchivePath, "data", opts.Data, "workers", opts.Workers)

	err := o.run(ctx, opts, &rep)

	rep.FinishedAt = o.now()
	rep.Duration = rep.FinishedAt.Sub(rep.StartedAt)
	if err != nil {
		rep.Err = err
		rep.Error = err.Error()
		o.transition(ctx, &rep, StageFailed)
		log.Error("ingestion run failed", "error", err, "code", core.CodeOf(err))
	} else {
		o.transition(ctx, &rep, StageDone)
		log.Info("ingestion run finished",
			"partitions", rep.Partitions,
			"failed", rep.Failed,
			"rows", rep.RowsInserted,
			"spatial_tables", len(rep.IndexedTables),
			"duration_ms", rep.Duration.Milliseconds(),
		)
	}

	if rerr := o.store.RecordRun(context.WithoutCancel(ctx), rep.Record()); rerr != nil {
		log.Warn("run log not written", "error", rerr)
	}
	return rep, err
}

func (o *Orchestrator) run(ctx context.Context, opts Options, rep *Report) error {
	log := logging.FromContext(ctx)

	o.transition(ctx, rep, StageResolveConfig)
	sel := core.Select(opts.Data)
	if err := o.store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("prepare schema: %w: %w", core.ErrFatalInfrastructure, err)
	}
	if opts.IfEmpty {
		n, exists, err := o.store.TableRowCount(ctx, SentinelTable)
		if err != nil {
			return fmt.Errorf("check %s: %w: %w", SentinelTable, core.ErrFatalInfrastructure, err)
		}
		if exists && n > 0 {
			log.Info("database already populated, run skipped", "table", SentinelTable, "rows", n)
			rep.Skipped = true
			return nil
		}
	}

	o.transition(ctx, rep, StageAcquireArchive)
	path, source, err := o.acquire(ctx, opts)
	if err != nil {
		return err
	}

	o.transition(ctx, rep, StageValidate)
	arc, err := openValid(ctx, path)
	if errors.Is(err, core.ErrCorruptArchive) && source != SourceExplicit {
		log.Warn("archive is corrupt, downloading a fresh copy", "path", path, "error", err)
		if rerr := archive.Remove(path); rerr != nil {
			log.Warn("corrupt archive not removed", "error", rerr)
		}
		o.transition(ctx, rep, StageAcquireArchive)
		path, err = o.download(ctx, opts)
		if err != nil {
			return err
		}
		source = SourceDownload
		o.transition(ctx, rep, StageValidate)
		arc, err = openValid(ctx, path)
	}
	if err != nil {
		return err
	}
	defer arc.Close()

	rep.Archive = filepath.Base(path)
	rep.Source = source
	rep.PublishDate = arc.PublishDate
	if source == SourceDownload && o.mirror != nil {
		if err := o.mirror.Upload(ctx, path); err != nil {
			log.Warn("archive not mirrored", "error", err)
		}
	}

	o.transition(ctx, rep, StageTransformLoad)
	parts := core.Interleave(arc.Index(ctx, sel))
	if len(parts) == 0 {
		log.Warn("no partitions selected", "data", opts.Data)
	}

	tr := core.NewTransformer(opts.SourceTag, o.downloadDate(arc), o.cleanser(ctx, arc, opts))
	tr.MaxRepairs = opts.MaxRepairs

	outcome, err := o.store.Load(ctx, core.NewRunState(), tr, parts, opts.Workers, o.observe)
	rep.applyOutcome(outcome)
	o.publish(rep)
	if err != nil {
		return err
	}

	if !opts.Spatial {
		log.Info("spatial indexing disabled")
		return nil
	}
	o.transition(ctx, rep, StageSpatialIndex)
	available, tables, err := o.store.BuildSpatial(ctx, opts.SRID)
	rep.SpatialAvailable = available
	rep.IndexedTables = tables
	if err != nil {
		return fmt.Errorf("spatial index: %w", err)
	}
	if !available {
		log.Warn("PostGIS unavailable, spatial indexing skipped", "code", core.ErrSpatialUnavailable.Code)
	}
	return nil
}

// observe forwards a partition result and folds it into the live report.
func (o *Orchestrator) observe(r core.PartitionResult) {
	if o.observer != nil {
		o.observer.ObservePartition(r)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.current.Partitions++
	o.current.RowsInserted += r.Load.Inserted
	o.current.DuplicatesDropped += r.Load.DuplicatesDropped
	o.current.NullKeysDropped += r.Load.NullKeysDropped
	o.current.ValuesNulled += r.Load.ValuesNulled
	o.current.ColumnsAdded += len(r.ColumnsAdded)
	if r.Err != nil {
		o.current.Failed++
		o.current.Failures = append(o.current.Failures, Failure{
			Partition: r.Partition, Table: r.Table, Code: core.CodeOf(r.Err), Error: r.Err.Error(),
		})
		return
	}
	o.current.Succeeded++
}

// acquire resolves the archive of the run: a pinned path, the newest local
// archive, the mirror, and finally a fresh download.
func (o *Orchestrator) acquire(ctx context.Context, opts Options) (path, source string, err error) {
	log := logging.FromContext(ctx)

	if opts.ArchivePath != "" {
		if _, err := os.Stat(opts.ArchivePath); err != nil {
			return "", "", fmt.Errorf("archive %s: %w", opts.ArchivePath, err)
		}
		log.Info("using pinned archive", "path", opts.ArchivePath)
		return opts.ArchivePath, SourceExplicit, nil
	}

	if opts.Reuse {
		newest, err := archive.FindNewest(opts.DownloadDir)
		if err != nil {
			log.Warn("local archives not readable", "dir", opts.DownloadDir, "error", err)
		}
		if newest != "" {
			log.Info("reusing local archive", "path", newest)
			return newest, SourceReused, nil
		}
	}

	if o.mirror != nil {
		if path, ok := o.fromMirror(ctx, opts.DownloadDir); ok {
			return path, SourceMirror, nil
		}
	}

	path, err = o.download(ctx, opts)
	return path, SourceDownload, err
}

func (o *Orchestrator) fromMirror(ctx context.Context, dir string) (string, bool) {
	log := logging.FromContext(ctx)

	obj, err := o.mirror.Latest(ctx)
	if errors.Is(err, storage.ErrObjectNotFound) {
		log.Info("mirror holds no archive")
		return "", false
	}
	if err != nil {
		log.Warn("mirror not reachable", "error", err)
		return "", false
	}
	path, err := o.mirror.Download(ctx, obj, dir)
	if err != nil {
		log.Warn("mirror download failed", "key", obj.Key, "error", err)
		return "", false
	}
	return path, true
}

func (o *Orchestrator) download(ctx context.Context, opts Options) (string, error) {
	if o.fetcher == nil {
		return "", fmt.Errorf("no downloader configured: %w", core.ErrNetwork)
	}
	return o.fetcher.Fetch(ctx, opts.DownloadDir)
}

// cleanser builds the catalog cleanser, or nil when cleansing is off or the
// catalog cannot be read.
func (o *Orchestrator) cleanser(ctx context.Context, arc *archive.Archive, opts Options) *core.Cleanser {
	if !opts.Cleansing {
		return nil
	}
	cat, err := arc.Catalog(ctx)
	if err != nil {
		logging.FromContext(ctx).Warn("catalog unreadable, loading without cleansing", "error", err)
		return nil
	}
	return core.NewCleanser(cat)
}

// downloadDate is the publication date of the archive, or today when the
// file name carries none.
func (o *Orchestrator) downloadDate(arc *archive.Archive) time.Time {
	if !arc.PublishDate.IsZero() {
		return arc.PublishDate
	}
	y, m, d := o.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func openValid(ctx context.Context, path string) (*archive.Archive, error) {
	arc, err := archive.Open(path)
	if err != nil {
		return nil, err
	}
	if err := arc.Validate(ctx); err != nil {
		arc.Close()
		return nil, err
	}
	return arc, nil
}
