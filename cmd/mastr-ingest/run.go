package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/mastr-ingest/internal/core"
	"github.com/JonMunkholm/mastr-ingest/internal/metrics"
	"github.com/JonMunkholm/mastr-ingest/internal/pipeline"
	"github.com/JonMunkholm/mastr-ingest/internal/storage"
	"github.com/JonMunkholm/mastr-ingest/internal/web"
)

// runFlags are the per-invocation overrides of the run command.
type runFlags struct {
	archive     string
	data        []string
	noCleansing bool
	noReuse     bool
	workers     int
	skipSpatial bool
	downloadDir string
	ifEmpty     bool
}

func newRunCommand(a *app) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Acquire the newest export and load it into the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), cmd, f)
		},
	}

	bindRunFlags(cmd, &f)
	return cmd
}

func bindRunFlags(cmd *cobra.Command, f *runFlags) {
	flags := cmd.Flags()
	flags.StringVar(&f.archive, "archive", "", "load this archive instead of acquiring one")
	flags.StringSliceVar(&f.data, "data", nil, "categories or entity types to load (default: all)")
	flags.BoolVar(&f.noCleansing, "no-cleansing", false, "skip catalog replacement and value normalization")
	flags.BoolVar(&f.noReuse, "no-reuse", false, "always download instead of reusing a local archive")
	flags.IntVar(&f.workers, "workers", -1, "parallel workers, 0 for sequential (default: from environment)")
	flags.BoolVar(&f.skipSpatial, "skip-spatial", false, "skip the PostGIS geometry stage")
	flags.StringVar(&f.downloadDir, "download-dir", "", "directory for downloaded archives")
	flags.BoolVar(&f.ifEmpty, "if-empty", false, "skip the run when the database is already populated")
}

// options merges flags over the loaded configuration.
func (a *app) options(cmd *cobra.Command, f runFlags) pipeline.Options {
	cfg := a.cfg
	opts := pipeline.Options{
		ArchivePath: cfg.Download.ArchivePath,
		DownloadDir: cfg.Download.Dir,
		Reuse:       cfg.Download.ReuseArchive,
		Data:        cfg.Ingest.Data,
		Cleansing:   cfg.Ingest.Cleansing,
		Spatial:     cfg.Spatial.Enabled,
		SRID:        cfg.Spatial.SRID,
		SourceTag:   cfg.Ingest.SourceTag,
		MaxRepairs:  cfg.Ingest.MaxRepairAttempts,
		IfEmpty:     f.ifEmpty,
	}

	if f.archive != "" {
		opts.ArchivePath = f.archive
	}
	if cmd.Flags().Changed("data") {
		opts.Data = f.data
	}
	if f.noCleansing {
		opts.Cleansing = false
	}
	if f.noReuse {
		opts.Reuse = false
	}
	if f.skipSpatial {
		opts.Spatial = false
	}
	if f.downloadDir != "" {
		opts.DownloadDir = f.downloadDir
	}

	if f.workers >= 0 {
		opts.Workers = f.workers
	} else {
		opts.Workers = a.workers()
	}
	return opts
}

func (a *app) run(ctx context.Context, cmd *cobra.Command, f runFlags) error {
	cfg := a.cfg
	opts := a.options(cmd, f)

	pool, err := a.connect(ctx, opts.Workers)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc := core.NewService(pool, cfg.Database.Schema)
	store := pipeline.ServiceStore{
		Service:     svc,
		ChunkRows:   cfg.Ingest.ChunkRows,
		MaxAttempts: cfg.Ingest.MaxInsertAttempts,
	}

	fetcher, err := a.downloader()
	if err != nil {
		return err
	}

	var mirror pipeline.Mirror
	if cfg.Mirror.Enabled() {
		m, err := storage.NewMirror(ctx, cfg.Mirror)
		if err != nil {
			slog.Warn("archive mirror disabled", "bucket", cfg.Mirror.Bucket, "error", err)
		} else {
			mirror = m
		}
	}

	rec := metrics.NewRecorder()
	orch := pipeline.New(store, fetcher, mirror, rec)

	if cfg.Metrics.Addr != "" {
		srv := web.NewServer(orch, svc.RunLog(), rec.Registry, web.Options{
			APIKeys:        cfg.Metrics.APIKeys,
			TrustedProxies: cfg.Metrics.TrustedProxies,
		})
		go func() {
			if err := srv.Start(cfg.Metrics.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("status server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("status server shutdown", "error", err)
			}
		}()
	}

	rep, runErr := orch.Run(ctx, opts)
	rec.FinishRun(rep.OK(), rep.FinishedAt)

	if url := cfg.Metrics.PushgatewayURL; url != "" {
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		if err := rec.Push(pushCtx, url, cfg.Metrics.Job, rep.RunID); err != nil {
			slog.Warn("metrics push failed", "error", err)
		}
		cancel()
	}

	printReport(a.stdout, rep)
	return runErr
}

func printReport(w io.Writer, rep pipeline.Report) {
	if rep.Skipped {
		fmt.Fprintf(w, "run %s skipped: %s already populated\n", rep.RunID, pipeline.SentinelTable)
		return
	}

	fmt.Fprintf(w, "run %s %s in %s\n", rep.RunID, rep.Stage, rep.Duration.Round(time.Second))
	if rep.Archive != "" {
		fmt.Fprintf(w, "  archive:    %s (%s)\n", rep.Archive, rep.Source)
	}
	fmt.Fprintf(w, "  partitions: %d loaded, %d failed of %d\n", rep.Succeeded, rep.Failed, rep.Partitions)
	fmt.Fprintf(w, "  rows:       %s inserted, %s duplicates dropped, %s values nulled\n",
		humanize.Comma(int64(rep.RowsInserted)), humanize.Comma(int64(rep.DuplicatesDropped)), humanize.Comma(int64(rep.ValuesNulled)))
	if rep.NullKeysDropped > 0 {
		fmt.Fprintf(w, "  dropped:    %s rows without primary key\n", humanize.Comma(int64(rep.NullKeysDropped)))
	}
	if rep.ColumnsAdded > 0 {
		fmt.Fprintf(w, "  columns:    %d added\n", rep.ColumnsAdded)
	}
	if len(rep.IndexedTables) > 0 {
		fmt.Fprintf(w, "  spatial:    %d tables indexed\n", len(rep.IndexedTables))
	}
	for _, f := range rep.Failures {
		fmt.Fprintf(w, "  failed %s [%s] %s\n", f.Partition, f.Code, f.Error)
	}
	if rep.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", rep.Error)
	}
}
