package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDownloadCommand(a *app) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the newest export archive and print its path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := a.downloader()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = a.cfg.Download.Dir
			}
			path, err := d.Fetch(cmd.Context(), dir)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "download-dir", "", "directory for the archive (default: from environment)")
	return cmd
}
