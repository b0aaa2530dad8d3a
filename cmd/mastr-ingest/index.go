package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/mastr-ingest/internal/archive"
	"github.com/JonMunkholm/mastr-ingest/internal/core"
)

func newIndexCommand(a *app) *cobra.Command {
	var data []string

	cmd := &cobra.Command{
		Use:   "index <archive>",
		Short: "Print the load schedule of an archive without touching the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("data") {
				data = a.cfg.Ingest.Data
			}

			arc, err := archive.Open(args[0])
			if err != nil {
				return err
			}
			defer arc.Close()

			parts := core.Interleave(arc.Index(cmd.Context(), core.Select(data)))
			return printSchedule(a.stdout, parts)
		},
	}
	cmd.Flags().StringSliceVar(&data, "data", nil, "categories or entity types to include (default: all)")
	return cmd
}

func printSchedule(w io.Writer, parts []core.Partition) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tMEMBER\tENTITY\tTABLE\tSEQ\tFIRST")
	for i, p := range parts {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%v\n", i+1, p.Name, p.EntityType, p.Table, p.Sequence, p.First)
	}
	return tw.Flush()
}
