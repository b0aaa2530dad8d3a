package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/mastr-ingest/internal/core"
)

func newSpatialCommand(a *app) *cobra.Command {
	var srid int

	cmd := &cobra.Command{
		Use:   "spatial",
		Short: "Add geometry columns and GiST indexes to loaded tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if srid == 0 {
				srid = a.cfg.Spatial.SRID
			}

			pool, err := a.connect(ctx, 0)
			if err != nil {
				return err
			}
			defer pool.Close()

			indexer := core.NewService(pool, a.cfg.Database.Schema).Spatial()
			if !indexer.EnableSpatialSupport(ctx) {
				return core.ErrSpatialUnavailable
			}
			tables, err := indexer.BuildIndexes(ctx, srid)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "indexed %d tables: %s\n", len(tables), strings.Join(tables, ", "))
			return nil
		},
	}
	cmd.Flags().IntVar(&srid, "srid", 0, "spatial reference id of the geometry columns (default: from environment)")
	return cmd
}
