package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/mastr-ingest/internal/config"
	"github.com/JonMunkholm/mastr-ingest/internal/core"
	"github.com/JonMunkholm/mastr-ingest/internal/download"
	"github.com/JonMunkholm/mastr-ingest/internal/logging"
)

// app carries the configuration shared by all subcommands.
type app struct {
	cfg    *config.Config
	stdout io.Writer
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout}

	rc := &cobra.Command{
		Use:   "mastr-ingest",
		Short: "Load the Marktstammdatenregister bulk export into PostgreSQL.",
		Long: `mastr-ingest downloads the latest Gesamtdatenexport of the
Marktstammdatenregister, validates it and loads every selected entity type
into one PostgreSQL table, adding PostGIS geometry where coordinates exist.

Configuration is read from the environment and an optional .env file.
Flags override the environment for a single invocation.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
			slog.Debug("configuration loaded", "config", cfg.String())
			slog.Debug("entity types registered", "count", core.Count(), "categories", len(core.Categories()))
			a.cfg = cfg
			return nil
		},
	}

	rc.AddCommand(newRunCommand(a))
	rc.AddCommand(newDownloadCommand(a))
	rc.AddCommand(newIndexCommand(a))
	rc.AddCommand(newSpatialCommand(a))

	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

// workers resolves the worker count and warns about oversubscription.
func (a *app) workers() int {
	n := a.cfg.Ingest.Workers(runtime.NumCPU())
	if n >= runtime.NumCPU() {
		slog.Warn("worker count is at least the number of CPUs", "workers", n, "cpus", runtime.NumCPU())
	}
	return n
}

// connect opens the pool. MaxConns is raised to workers+1 so every worker
// holds its own connection next to the orchestrator's.
func (a *app) connect(ctx context.Context, workers int) (*pgxpool.Pool, error) {
	db := a.cfg.Database

	poolConfig, err := pgxpool.ParseConfig(db.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(max(db.MaxConns, workers+1))
	poolConfig.MinConns = int32(db.MinConns)
	poolConfig.MaxConnLifetime = db.MaxConnLifetime
	poolConfig.MaxConnIdleTime = db.MaxConnIdleTime
	if db.Schema != "public" {
		poolConfig.ConnConfig.RuntimeParams["search_path"] = db.Schema + ",public"
	}

	connectCtx, cancel := context.WithTimeout(ctx, db.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w: %w", core.ErrFatalInfrastructure, err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w: %w", core.ErrFatalInfrastructure, err)
	}

	slog.Info("connected to database",
		"database", poolConfig.ConnConfig.Database,
		"schema", db.Schema,
		"max_conns", poolConfig.MaxConns,
	)
	return pool, nil
}

func (a *app) downloader() (*download.Downloader, error) {
	d := a.cfg.Download
	return download.New(download.Options{
		PageURL:          d.PageURL,
		BaseURL:          d.BaseURL,
		PageTimeout:      d.PageTimeout,
		RetryMax:         d.RetryMax,
		ProgressInterval: d.ProgressInterval,
	})
}

// shutdownTimeout bounds the status server shutdown after a run.
const shutdownTimeout = 5 * time.Second
